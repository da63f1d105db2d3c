package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

// --- mocks ---

type mockSources struct {
	inputs *pipeline.Inputs
	err    error
	calls  int
}

func (m *mockSources) Load(_ context.Context) (*pipeline.Inputs, error) {
	m.calls++
	return m.inputs, m.err
}

type mockLocator map[[2]float64]string

func (m mockLocator) Locate(lat, lon float64) (string, bool) {
	fips, ok := m[[2]float64{lat, lon}]
	return fips, ok
}

type mockBatchLoader struct {
	name     string
	batches  [][]domain.EnrichedEvent
	runIDs   []string
	failures int
	err      error
}

func (m *mockBatchLoader) Name() string { return m.name }

func (m *mockBatchLoader) LoadBatch(_ context.Context, runID string, events []domain.EnrichedEvent) error {
	if m.failures > 0 {
		m.failures--
		return errors.New("broker unavailable")
	}
	if m.err != nil {
		return m.err
	}
	m.runIDs = append(m.runIDs, runID)
	m.batches = append(m.batches, events)
	return nil
}

type mockRunLoader struct {
	events []domain.EnrichedEvent
	states []domain.StateAggregate
	calls  int
}

func (m *mockRunLoader) Name() string { return "run" }

func (m *mockRunLoader) LoadRun(_ context.Context, _ string, events []domain.EnrichedEvent, states []domain.StateAggregate) error {
	m.calls++
	m.events = events
	m.states = states
	return nil
}

type nameOnly struct{}

func (nameOnly) Name() string { return "bogus" }

func ptr[T any](v T) *T { return &v }

func testInputs() *pipeline.Inputs {
	return &pipeline.Inputs{
		Events: []domain.Event{
			{ID: "1", State: "WA", County: "Mason", Race: "W", ThreatType: "shoot", ArmedWith: "gun",
				Latitude: ptr(47.2), Longitude: ptr(-123.1), Age: ptr(53.0)},
			{ID: "2", State: "WA", County: "Mason County", Race: "B", ThreatType: "point", ArmedWith: "knife"},
			{ID: "3", State: "WA", County: "King", Race: "H", ThreatType: "move", ArmedWith: "unarmed"},
			{ID: "4", State: "Washington", Race: "A", ArmedWith: "undetermined"},
		},
		Facts: []domain.CountyFacts{
			{Fips: "0", AreaName: "United States", Values: map[string]float64{"PST045214": 318857056, "INC110213": 53046}},
			{Fips: "53000", AreaName: "Washington", Values: map[string]float64{
				"PST045214": 7061530, "INC110213": 59478, "RHI125214": 80.7, "RHI225214": 4.1,
			}},
			{Fips: "53045", AreaName: "Mason County", StateAbbr: "WA", JoinKey: domain.JoinKey("WA", "Mason County"),
				Values: map[string]float64{"PST045214": 61023, "INC110213": 50069}},
		},
		Homicides: []domain.HomicideRecord{
			{Year: 2021, State: "WA", Homicides: 325},
			{Year: 2020, State: "WA", Homicides: 303},
		},
		Locator: mockLocator{{47.2, -123.1}: "053045"},
	}
}

func newTestPipeline(t *testing.T, sources pipeline.Sources, sinks []pipeline.Sink, metrics *observability.Metrics) *pipeline.Pipeline {
	t.Helper()
	ref, err := reference.Default()
	require.NoError(t, err)
	p, err := pipeline.New(sources, ref, sinks, pipeline.Options{BatchSize: 3, HomicideYear: 2021}, slog.Default(), metrics)
	require.NoError(t, err)
	return p
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	batch := &mockBatchLoader{name: "batch"}
	run := &mockRunLoader{}
	metrics := observability.NewMetricsForTesting()
	p := newTestPipeline(t, &mockSources{inputs: testInputs()}, []pipeline.Sink{batch, run}, metrics)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Events, 4)
	want := map[string]domain.MatchSource{
		"1": domain.MatchSpatial,
		"2": domain.MatchKey,
		"3": domain.MatchNone,
		"4": domain.MatchNone,
	}
	for _, ev := range res.Events {
		assert.Equal(t, want[ev.ID], ev.MatchSource, "event %s", ev.ID)
		assert.Equal(t, fake.Now(), ev.ProcessedAt)
	}
	assert.Equal(t, "53045", *res.Events[0].Fips)
	assert.Equal(t, "53045", *res.Events[1].Fips)
	assert.Nil(t, res.Events[2].Fips)

	// County income for matched events, the state row for the unmatched one.
	assert.InDelta(t, 50069.0, *res.Events[0].Income, 0)
	assert.Nil(t, res.Events[2].IncomeCounty)
	assert.InDelta(t, 59478.0, *res.Events[2].Income, 0)

	assert.Equal(t, 4, res.Report.Total)
	assert.Equal(t, []string{"3", "4"}, res.Report.Unmatched)
	assert.Equal(t, 1, res.Report.IncomeBackfills)

	require.Len(t, res.States, 1)
	wa := res.States[0]
	assert.Equal(t, "WA", wa.State)
	assert.Equal(t, 7061530, wa.Population)
	require.NotNil(t, wa.AvgHomicides)
	assert.InDelta(t, 325.0, *wa.AvgHomicides, 0)
	assert.InDelta(t, 325.0/7061530*1e6, *wa.HomicidesPerMillion, 1e-9)

	require.Len(t, res.Issues, 1, "full state name fails the len=2 rule but is kept")
	assert.Equal(t, "4", res.Issues[0].EventID)

	// Batch sink sees events in batches of 3, in order, tagged with one run id.
	require.Len(t, batch.batches, 2)
	assert.Len(t, batch.batches[0], 3)
	assert.Len(t, batch.batches[1], 1)
	assert.Equal(t, []string{res.RunID, res.RunID}, batch.runIDs)

	// Run sink gets everything at once.
	assert.Equal(t, 1, run.calls)
	if diff := cmp.Diff(res.Events, run.events); diff != "" {
		t.Errorf("run sink events mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, run.states, 1)

	assert.NoError(t, p.CheckReadiness(context.Background()))
	report, ok := p.LatestReport()
	require.True(t, ok)
	assert.Equal(t, res.Report, report)

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.EventsReconciled.WithLabelValues("spatial")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.EventsReconciled.WithLabelValues("none")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.ValidationIssues), 0)
	assert.InDelta(t, 4.0, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("batch")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.LastRunSuccess), 0)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_NilLocatorFallsBackToKey(t *testing.T) {
	in := testInputs()
	in.Locator = nil
	p := newTestPipeline(t, &mockSources{inputs: in}, nil, observability.NewMetricsForTesting())

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.MatchKey, res.Events[0].MatchSource)
	assert.Equal(t, 0, res.Report.BySource[domain.MatchSpatial])
	assert.Equal(t, 2, res.Report.BySource[domain.MatchKey])
}

func TestPipeline_Run_SourceError(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	p := newTestPipeline(t, &mockSources{err: errors.New("load events: boom")}, nil, metrics)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LatestReport()
	assert.False(t, ok)
	assert.InDelta(t, 0.0, testutil.ToFloat64(metrics.LastRunSuccess), 0)
}

func TestPipeline_Run_SinkRetriesThenSucceeds(t *testing.T) {
	batch := &mockBatchLoader{name: "flaky", failures: 1}
	p := newTestPipeline(t, &mockSources{inputs: testInputs()}, []pipeline.Sink{batch}, observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, batch.batches, 2)
}

func TestPipeline_Run_SinkFailureFailsRun(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	batch := &mockBatchLoader{name: "down", err: errors.New("broker unavailable")}
	ref, err := reference.Default()
	require.NoError(t, err)
	p, err := pipeline.New(&mockSources{inputs: testInputs()}, ref, []pipeline.Sink{batch},
		pipeline.Options{BatchSize: 10, HomicideYear: 2021, SinkAttempts: 1}, slog.Default(), metrics)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink down")
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.SinkErrors.WithLabelValues("down")), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_SeededChooserIsReproducible(t *testing.T) {
	in := testInputs()
	in.Events = append(in.Events, domain.Event{ID: "5", State: "WA", ArmedWith: "gun;knife;taser"})
	ref, err := reference.Default()
	require.NoError(t, err)

	pick := func() string {
		p, err := pipeline.New(&mockSources{inputs: in}, ref, nil,
			pipeline.Options{HomicideYear: 2021, Choose: domain.NewRandomChooser(7)},
			slog.Default(), observability.NewMetricsForTesting())
		require.NoError(t, err)
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		return res.Events[4].WeaponGroup
	}

	first := pick()
	assert.Contains(t, []string{"gun", "knife", "taser"}, first)
	assert.Equal(t, first, pick())
}

func TestNew_RejectsUnknownSink(t *testing.T) {
	ref, err := reference.Default()
	require.NoError(t, err)
	_, err = pipeline.New(&mockSources{}, ref, []pipeline.Sink{nameOnly{}}, pipeline.Options{}, slog.Default(), observability.NewMetricsForTesting())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
}

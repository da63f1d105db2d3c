package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "out", "run.db"), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEvents() []domain.EnrichedEvent {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return []domain.EnrichedEvent{
		{
			Event: domain.Event{
				ID: "1", State: "WA", County: "King", Race: "W",
				Date:     time.Date(2015, 1, 2, 0, 0, 0, 0, time.UTC),
				Age:      ptr(53.0),
				Latitude: ptr(47.2), Longitude: ptr(-123.1),
			},
			Features:     domain.Features{AgeBracket: "50-64", RaceGroup: "White", ThreatGroup: "Attack", WeaponGroup: "gun"},
			JoinKey:      "wa, king",
			Fips:         ptr("53033"),
			MatchSource:  domain.MatchSpatial,
			IncomeCounty: ptr(71811.0),
			Income:       ptr(71811.0),
			ProcessedAt:  at,
		},
		{
			Event:       domain.Event{ID: "2", State: "OR", County: "Lane"},
			JoinKey:     "or, lane",
			Fips:        ptr("41039"),
			MatchSource: domain.MatchKey,
			Income:      ptr(50000.0),
			ProcessedAt: at,
		},
		{
			Event:       domain.Event{ID: "3", State: "TX"},
			JoinKey:     "tx, ",
			MatchSource: domain.MatchNone,
			ProcessedAt: at,
		},
	}
}

func TestStore_LoadRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	states := []domain.StateAggregate{
		{State: "WA", AreaName: "Washington", Population: 7061530, PopulationByRace: map[string]int{"W": 5500000}, AvgHomicides: ptr(250.0), HomicidesPerMillion: ptr(35.4)},
		{State: "TX", AreaName: "Texas", Population: 26956958},
	}

	require.NoError(t, s.LoadRun(ctx, "run-1", testEvents(), states))

	counts, err := s.MatchCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.MatchSource]int{
		domain.MatchSpatial: 1,
		domain.MatchKey:     1,
		domain.MatchNone:    1,
	}, counts)

	var fips sql.NullString
	var income sql.NullFloat64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT fips, income FROM events WHERE id = '3'").Scan(&fips, &income))
	assert.False(t, fips.Valid, "unmatched event stores NULL fips")
	assert.False(t, income.Valid)

	var date string
	var age float64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT date, age FROM events WHERE id = '1'").Scan(&date, &age))
	assert.Equal(t, "2015-01-02", date)
	assert.InDelta(t, 53.0, age, 0)

	var rate sql.NullFloat64
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT homicides_per_million FROM state_aggregates WHERE state = 'TX'").Scan(&rate))
	assert.False(t, rate.Valid)
}

func TestStore_LoadRunReplacesPreviousRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.LoadRun(ctx, "run-1", testEvents(), nil))
	require.NoError(t, s.LoadRun(ctx, "run-2", testEvents()[:1], nil))

	var n int
	var runID string
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*), MAX(run_id) FROM events").Scan(&n, &runID))
	assert.Equal(t, 1, n)
	assert.Equal(t, "run-2", runID)
}

func TestStore_LoadRunRollsBackOnDuplicate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.LoadRun(ctx, "run-1", testEvents(), nil))

	dup := append(testEvents()[:1], testEvents()[0])
	err := s.LoadRun(ctx, "run-2", dup, nil)
	require.Error(t, err)

	counts, err := s.MatchCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[domain.MatchSpatial]+counts[domain.MatchKey]+counts[domain.MatchNone], "failed run leaves previous contents")
}

// Command validate re-runs the reconciliation over the configured datasets and
// checks the result for internal consistency: event integrity, county match
// coverage, income backfill and state aggregates. When a JSON Lines export of
// a previous etl run is given it is compared against the fresh result.
//
// Usage:
//
//	go run ./cmd/validate -jsonl out/enriched.jsonl -max-unmatched 0.02
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/qwyt/wp-police-shooting/internal/adapter/csvsource"
	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	jsonlPath := flag.String("jsonl", "", "JSON Lines export of a previous etl run to compare against")
	maxUnmatched := flag.Float64("max-unmatched", 0.05, "largest tolerated share of events without a county")
	flag.Parse()

	if *maxUnmatched < 0 || *maxUnmatched > 1 {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*jsonlPath, *maxUnmatched); code != 0 {
		os.Exit(code)
	}
}

func run(jsonlPath string, maxUnmatched float64) int {
	fmt.Println("=== Police Shootings Reconciliation Validation ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		return 1
	}
	ref, err := reference.Load(cfg.ReferencePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetricsForTesting()
	p, err := pipeline.New(pipeline.NewFileSources(cfg, ref, logger, metrics), ref, nil, pipeline.Options{
		HomicideYear: cfg.HomicideYear,
		Choose:       domain.FirstChooser,
	}, logger, metrics)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	res, err := p.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: run pipeline: %v\n", err)
		return 1
	}

	idx := domain.NewFactsIndex(res.Facts, ref.StateNames)
	phases := []*phase{
		validateEventIntegrity(res.Events, res.Issues),
		validateCoverage(res, idx, maxUnmatched),
		validateIncome(res.Events, idx, ref.IncomeCode),
		validateStates(res.States, ref),
	}
	if jsonlPath != "" {
		exported, err := loadJSONL(jsonlPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load JSONL export: %v\n", err)
			return 1
		}
		phases = append(phases, validateExport(exported, res.Events))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d events (%d spatial, %d key, %d unmatched), %d facts rows, %d states\n",
		res.Report.Total, res.Report.BySource[domain.MatchSpatial], res.Report.BySource[domain.MatchKey],
		res.Report.BySource[domain.MatchNone], len(res.Facts), len(res.States))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSONL(path string) ([]domain.EnrichedEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []domain.EnrichedEvent
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev domain.EnrichedEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, sc.Err()
}

// ── Phase 1: Event Integrity ──
// Validates the events table itself.

func validateEventIntegrity(events []domain.EnrichedEvent, issues []csvsource.Issue) *phase {
	p := &phase{name: "Phase 1: Event Integrity (CSV)"}

	seen := make(map[string]bool, len(events))
	for i := range events {
		ev := &events[i]
		if seen[ev.ID] {
			p.errorf("event %s: duplicate id", ev.ID)
		}
		seen[ev.ID] = true
		if ev.Date.IsZero() {
			p.errorf("event %s: date missing or unparsable", ev.ID)
		}
	}
	for _, is := range issues {
		p.errorf("event %s: field %s fails %q", is.EventID, is.Field, is.Rule)
	}
	return p
}

// ── Phase 2: Reconciliation Coverage ──
// Validates match sources against the facts index.

func validateCoverage(res *pipeline.Result, idx *domain.FactsIndex, maxUnmatched float64) *phase {
	p := &phase{name: "Phase 2: Reconciliation Coverage"}

	var sum int
	for _, n := range res.Report.BySource {
		sum += n
	}
	if sum != len(res.Events) || res.Report.Total != len(res.Events) {
		p.errorf("report counts %d events over sources (total %d), pipeline returned %d", sum, res.Report.Total, len(res.Events))
	}

	for i := range res.Events {
		checkMatch(p, &res.Events[i], idx)
	}

	if len(res.Events) > 0 {
		share := float64(len(res.Report.Unmatched)) / float64(len(res.Events))
		if share > maxUnmatched {
			p.errorf("%.2f%% of events have no county (limit %.2f%%)", share*100, maxUnmatched*100)
		}
	}
	return p
}

func checkMatch(p *phase, ev *domain.EnrichedEvent, idx *domain.FactsIndex) {
	switch ev.MatchSource {
	case domain.MatchNone:
		if ev.Fips != nil {
			p.errorf("event %s: unmatched but fips is %q", ev.ID, *ev.Fips)
		}
		return
	case domain.MatchSpatial, domain.MatchKey:
		if ev.Fips == nil || *ev.Fips == "" {
			p.errorf("event %s: %s match without fips", ev.ID, ev.MatchSource)
			return
		}
	default:
		p.errorf("event %s: unknown match source %q", ev.ID, ev.MatchSource)
		return
	}

	fips := *ev.Fips
	if domain.StripLeadingZeros(fips) != fips {
		p.errorf("event %s: fips %q has leading zeros", ev.ID, fips)
	}
	if ev.MatchSource == domain.MatchKey {
		want, ok := idx.FipsForKey(ev.JoinKey)
		if !ok {
			p.errorf("event %s: key %q is not in the facts table", ev.ID, ev.JoinKey)
		} else if want != fips {
			p.errorf("event %s: key %q resolves to %s, event has %s", ev.ID, ev.JoinKey, want, fips)
		}
	}
}

// ── Phase 3: Income Backfill ──
// Validates that income comes from the county, else the state summary row.

func validateIncome(events []domain.EnrichedEvent, idx *domain.FactsIndex, code string) *phase {
	p := &phase{name: "Phase 3: Income Backfill"}

	for i := range events {
		ev := &events[i]
		var county *float64
		if ev.Fips != nil {
			if row, ok := idx.County(*ev.Fips); ok {
				county = row.Value(code)
			}
		}
		if !ptrFloatEq(ev.IncomeCounty, county) {
			p.errorf("event %s: income_county %s, facts have %s", ev.ID, ptrFloat(ev.IncomeCounty), ptrFloat(county))
		}

		want := county
		if want == nil {
			if row, ok := idx.State(ev.State); ok {
				want = row.Value(code)
			}
		}
		if !ptrFloatEq(ev.Income, want) {
			p.errorf("event %s: income %s, expected %s", ev.ID, ptrFloat(ev.Income), ptrFloat(want))
		}
	}
	return p
}

// ── Phase 4: State Aggregates ──
// Validates the per-state demographic table.

func validateStates(states []domain.StateAggregate, ref *reference.Data) *phase {
	p := &phase{name: "Phase 4: State Aggregates"}

	byState := make(map[string]domain.StateAggregate, len(states))
	for _, s := range states {
		if _, dup := byState[s.State]; dup {
			p.errorf("state %s: duplicate aggregate", s.State)
		}
		byState[s.State] = s
	}
	for name, abbr := range ref.StateNames {
		if _, ok := byState[abbr]; !ok {
			p.errorf("state %s (%s): no summary row in facts", abbr, name)
		}
	}

	for _, s := range states {
		if s.Population <= 0 {
			p.errorf("state %s: population %d", s.State, s.Population)
			continue
		}
		for race, n := range s.PopulationByRace {
			if n < 0 || n > s.Population {
				p.errorf("state %s: %s population %d outside [0, %d]", s.State, race, n, s.Population)
			}
		}
		if s.AvgHomicides == nil {
			if s.HomicidesPerMillion != nil {
				p.errorf("state %s: homicide rate without homicide count", s.State)
			}
			continue
		}
		want := *s.AvgHomicides / float64(s.Population) * 1_000_000
		if s.HomicidesPerMillion == nil || !floatEq(*s.HomicidesPerMillion, want) {
			p.errorf("state %s: homicides per million %s, expected %g", s.State, ptrFloat(s.HomicidesPerMillion), want)
		}
	}
	return p
}

// ── Phase 5: Export Parity ──
// Validates a previous JSONL export against the fresh run.

func validateExport(exported, fresh []domain.EnrichedEvent) *phase {
	p := &phase{name: "Phase 5: Export Parity (JSONL)"}

	if len(exported) != len(fresh) {
		p.errorf("export has %d events, fresh run has %d", len(exported), len(fresh))
	}

	byID := make(map[string]*domain.EnrichedEvent, len(fresh))
	for i := range fresh {
		byID[fresh[i].ID] = &fresh[i]
	}

	for i := range exported {
		got := &exported[i]
		want, ok := byID[got.ID]
		if !ok {
			p.errorf("event %s: in export but not in fresh run", got.ID)
			continue
		}
		if got.MatchSource != want.MatchSource {
			p.errorf("event %s: match_source: export %q, fresh %q", got.ID, got.MatchSource, want.MatchSource)
		}
		if !ptrStrEq(got.Fips, want.Fips) {
			p.errorf("event %s: fips: export %s, fresh %s", got.ID, ptrStr(got.Fips), ptrStr(want.Fips))
		}
		if !ptrFloatEq(got.Income, want.Income) {
			p.errorf("event %s: income: export %s, fresh %s", got.ID, ptrFloat(got.Income), ptrFloat(want.Income))
		}
		if got.JoinKey != want.JoinKey {
			p.errorf("event %s: state_county: export %q, fresh %q", got.ID, got.JoinKey, want.JoinKey)
		}
		if got.RaceGroup != want.RaceGroup || got.ThreatGroup != want.ThreatGroup || got.AgeBracket != want.AgeBracket {
			p.errorf("event %s: derived features differ", got.ID)
		}
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9*math.Max(1, math.Abs(b))
}

func ptrStrEq(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEq(*a, *b)
}

func ptrStr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func ptrFloat(f *float64) string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%g", *f)
}

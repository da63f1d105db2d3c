// Package sqlite persists the output of a pipeline run to a local SQLite
// database. Each run replaces the previous contents in a single transaction.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	date TEXT,
	state TEXT NOT NULL,
	county TEXT,
	state_county TEXT,
	fips TEXT,
	match_source TEXT NOT NULL,
	race TEXT,
	race_label TEXT,
	g_race_short TEXT,
	age REAL,
	age_bracket TEXT,
	age_bracket_short TEXT,
	g_threat_type TEXT,
	g_armed_with TEXT,
	was_mental_illness_related INTEGER,
	body_camera INTEGER,
	latitude REAL,
	longitude REAL,
	income_county REAL,
	income REAL,
	processed_at TEXT,
	payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_fips ON events(fips);
CREATE INDEX IF NOT EXISTS idx_events_state ON events(state);

CREATE TABLE IF NOT EXISTS state_aggregates (
	state TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	area_name TEXT,
	population INTEGER,
	population_by_race TEXT,
	avg_homicides REAL,
	homicides_per_million REAL
);
`

const insertEvent = `INSERT INTO events (
	id, run_id, date, state, county, state_county, fips, match_source,
	race, race_label, g_race_short, age, age_bracket, age_bracket_short,
	g_threat_type, g_armed_with, was_mental_illness_related, body_camera,
	latitude, longitude, income_county, income, processed_at, payload
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertAggregate = `INSERT INTO state_aggregates (
	state, run_id, area_name, population, population_by_race,
	avg_homicides, homicides_per_million
) VALUES (?, ?, ?, ?, ?, ?, ?)`

// Store is a SQLite sink. It implements pipeline.RunLoader.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path and ensures the schema exists.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases consistent across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Name identifies the sink in logs and metrics.
func (s *Store) Name() string { return "sqlite" }

// LoadRun replaces both tables with the output of one run.
func (s *Store) LoadRun(ctx context.Context, runID string, events []domain.EnrichedEvent, states []domain.StateAggregate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin sqlite tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM state_aggregates"); err != nil {
		return fmt.Errorf("clear state_aggregates: %w", err)
	}

	if err := insertEvents(ctx, tx, runID, events); err != nil {
		return err
	}
	if err := insertAggregates(ctx, tx, runID, states); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit sqlite tx: %w", err)
	}
	s.logger.Info("sqlite run stored", "run_id", runID, "events", len(events), "states", len(states))
	return nil
}

// MatchCounts returns the number of stored events per match source.
func (s *Store) MatchCounts(ctx context.Context) (map[domain.MatchSource]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT match_source, COUNT(*) FROM events GROUP BY match_source")
	if err != nil {
		return nil, fmt.Errorf("query match counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.MatchSource]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scan match count: %w", err)
		}
		counts[domain.MatchSource(source)] = n
	}
	return counts, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func insertEvents(ctx context.Context, tx *sql.Tx, runID string, events []domain.EnrichedEvent) error {
	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		ev := &events[i]
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("serialize event %s: %w", ev.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			ev.ID, runID, formatDate(ev.Date), ev.State, ev.County, ev.JoinKey, nullable(ev.Fips), string(ev.MatchSource),
			ev.Race, ev.RaceLabel, ev.RaceGroup, nullable(ev.Age), ev.AgeBracket, ev.AgeBracketShort,
			ev.ThreatGroup, ev.WeaponGroup, boolInt(ev.MentalIllness), boolInt(ev.BodyCamera),
			nullable(ev.Latitude), nullable(ev.Longitude), nullable(ev.IncomeCounty), nullable(ev.Income),
			ev.ProcessedAt.UTC().Format(time.RFC3339), string(payload),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}
	return nil
}

func insertAggregates(ctx context.Context, tx *sql.Tx, runID string, states []domain.StateAggregate) error {
	stmt, err := tx.PrepareContext(ctx, insertAggregate)
	if err != nil {
		return fmt.Errorf("prepare aggregate insert: %w", err)
	}
	defer stmt.Close()

	for i := range states {
		st := &states[i]
		byRace, err := json.Marshal(st.PopulationByRace)
		if err != nil {
			return fmt.Errorf("serialize population for %s: %w", st.State, err)
		}
		_, err = stmt.ExecContext(ctx,
			st.State, runID, st.AreaName, st.Population, string(byRace),
			nullable(st.AvgHomicides), nullable(st.HomicidesPerMillion),
		)
		if err != nil {
			return fmt.Errorf("insert aggregate %s: %w", st.State, err)
		}
	}
	return nil
}

func formatDate(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format("2006-01-02")
}

// nullable maps a nil pointer to SQL NULL.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package domain

import "time"

// MatchSource records which reconciliation pass assigned a county identifier.
type MatchSource string

const (
	MatchSpatial MatchSource = "spatial"
	MatchKey     MatchSource = "key"
	MatchNone    MatchSource = "none"
)

// Event is one fatal encounter as read from the events CSV.
// Optional numeric fields are nil when the source cell is empty or unparsable.
type Event struct {
	ID                string    `json:"id" validate:"required"`
	Date              time.Time `json:"date"`
	ThreatType        string    `json:"threat_type"`
	FleeStatus        string    `json:"flee_status,omitempty"`
	ArmedWith         string    `json:"armed_with"`
	City              string    `json:"city,omitempty"`
	County            string    `json:"county,omitempty"`
	State             string    `json:"state" validate:"required,len=2"`
	Latitude          *float64  `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude         *float64  `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Name              string    `json:"name,omitempty"`
	Age               *float64  `json:"age,omitempty" validate:"omitempty,gte=0"`
	Gender            string    `json:"gender,omitempty"`
	Race              string    `json:"race"`
	MentalIllness     bool      `json:"was_mental_illness_related"`
	BodyCamera        bool      `json:"body_camera"`
	AgencyIDs         string    `json:"agency_ids,omitempty"`
	LocationPrecision string    `json:"location_precision,omitempty"`
	RaceSource        string    `json:"race_source,omitempty"`
}

// CountyMatch is the explicit outcome of reconciling one event to a county.
// Fips is nil when Source is MatchNone.
type CountyMatch struct {
	Fips   *string
	Source MatchSource
}

// Features holds the categorical columns derived from an event.
type Features struct {
	AgeBracket      string `json:"age_bracket,omitempty"`
	AgeBracketShort string `json:"age_bracket_short,omitempty"`
	RaceGroup       string `json:"g_race_short"`
	ThreatGroup     string `json:"g_threat_type"`
	WeaponGroup     string `json:"g_armed_with"`
}

// EnrichedEvent is an event after reconciliation, income backfill and
// feature derivation.
type EnrichedEvent struct {
	Event
	Features

	RaceLabel    string      `json:"race_label,omitempty"`
	JoinKey      string      `json:"state_county"`
	Fips         *string     `json:"fips"`
	MatchSource  MatchSource `json:"match_source"`
	IncomeCounty *float64    `json:"income_county"`
	Income       *float64    `json:"income"`
	ProcessedAt  time.Time   `json:"processed_at"`
}

// CountyFacts is one row of the county facts table. StateAbbr is empty on the
// national and state summary rows.
type CountyFacts struct {
	Fips      string
	AreaName  string
	StateAbbr string
	Values    map[string]float64
	JoinKey   string
}

// Value returns the facts value for a column code, or nil if absent.
func (f CountyFacts) Value(code string) *float64 {
	v, ok := f.Values[code]
	if !ok {
		return nil
	}
	return &v
}

// IsStateSummary reports whether the row is a national or state summary row.
func (f CountyFacts) IsStateSummary() bool {
	return f.StateAbbr == ""
}

// HomicideRecord is one year/state row of the homicide deaths table.
type HomicideRecord struct {
	Year      int
	State     string
	Homicides int
}

// StateSpending is police protection expenditure for one state, by year.
type StateSpending struct {
	State     string
	StateName string
	ByYear    map[int]float64
}

// StateAggregate is the per-state demographic table derived from the facts
// summary rows.
type StateAggregate struct {
	State               string             `json:"state"`
	AreaName            string             `json:"area_name"`
	Population          int                `json:"population"`
	PopulationByRace    map[string]int     `json:"population_by_race"`
	AvgHomicides        *float64           `json:"avg_homicides"`
	HomicidesPerMillion *float64           `json:"homicides_per_million"`
	Facts               map[string]float64 `json:"-"`
}

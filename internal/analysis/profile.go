package analysis

import (
	"math"
	"sort"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Derived profile variables, usable wherever a facts column code is accepted.
const (
	VarShootingsPerMillion = "shootings_per_million"
	VarHomicidesPerMillion = "homicides_per_million"
	VarSpendingPerCapita   = "spending_per_capita"
	VarShootings           = "shootings"
)

// StateProfile joins a state's demographics with its shooting count and
// police spending.
type StateProfile struct {
	State                     string             `json:"state"`
	AreaName                  string             `json:"area_name"`
	Population                int                `json:"population"`
	Shootings                 int                `json:"shootings"`
	ShootingsPerMillion       *float64           `json:"shootings_per_million"`
	ShootingsByRace           map[string]int     `json:"shootings_by_race"`
	ShootingsPerMillionByRace map[string]float64 `json:"shootings_per_million_by_race"`
	HomicidesPerMillion       *float64           `json:"homicides_per_million"`
	Spending                  *float64           `json:"spending"`
	SpendingPerCapita         *float64           `json:"spending_per_capita"`
	Facts                     map[string]float64 `json:"-"`
}

// StateProfiles builds one profile per state aggregate, in aggregate order.
// Spending is taken for year; states without a value for that year get nil.
func StateProfiles(states []domain.StateAggregate, events []domain.EnrichedEvent, spending []domain.StateSpending, year int) []StateProfile {
	counts := make(map[string]int)
	byRace := make(map[string]map[string]int)
	for i := range events {
		ev := &events[i]
		counts[ev.State]++
		if ev.RaceLabel == "" {
			continue
		}
		if byRace[ev.State] == nil {
			byRace[ev.State] = make(map[string]int)
		}
		byRace[ev.State][ev.RaceLabel]++
	}

	spend := make(map[string]float64, len(spending))
	for _, s := range spending {
		if v, ok := s.ByYear[year]; ok {
			spend[s.State] = v
		}
	}

	out := make([]StateProfile, 0, len(states))
	for _, st := range states {
		p := StateProfile{
			State:                     st.State,
			AreaName:                  st.AreaName,
			Population:                st.Population,
			Shootings:                 counts[st.State],
			ShootingsByRace:           byRace[st.State],
			ShootingsPerMillionByRace: make(map[string]float64),
			HomicidesPerMillion:       st.HomicidesPerMillion,
			Facts:                     st.Facts,
		}
		if p.ShootingsByRace == nil {
			p.ShootingsByRace = map[string]int{}
		}
		p.ShootingsPerMillion = perMillion(float64(p.Shootings), float64(st.Population))
		for race, pop := range st.PopulationByRace {
			if rate := perMillion(float64(p.ShootingsByRace[race]), float64(pop)); rate != nil {
				p.ShootingsPerMillionByRace[race] = *rate
			}
		}
		if v, ok := spend[st.State]; ok {
			p.Spending = &v
			if st.Population > 0 {
				perCapita := v / float64(st.Population)
				p.SpendingPerCapita = &perCapita
			}
		}
		out = append(out, p)
	}
	return out
}

// Variable returns a derived variable or a facts column of the profile, or
// NaN when the value is missing.
func (p StateProfile) Variable(name string) float64 {
	switch name {
	case VarShootings:
		return float64(p.Shootings)
	case VarShootingsPerMillion:
		return deref(p.ShootingsPerMillion)
	case VarHomicidesPerMillion:
		return deref(p.HomicidesPerMillion)
	case VarSpendingPerCapita:
		return deref(p.SpendingPerCapita)
	}
	if v, ok := p.Facts[name]; ok {
		return v
	}
	return math.NaN()
}

// Series extracts one variable across profiles.
func Series(profiles []StateProfile, name string) []float64 {
	out := make([]float64, len(profiles))
	for i := range profiles {
		out[i] = profiles[i].Variable(name)
	}
	return out
}

// RankBy returns the profiles sorted by a variable, highest first. Missing
// values sort last.
func RankBy(profiles []StateProfile, name string) []StateProfile {
	out := append([]StateProfile(nil), profiles...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Variable(name), out[j].Variable(name)
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return out
}

func perMillion(count, population float64) *float64 {
	if population <= 0 {
		return nil
	}
	v := count / population * 1e6
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

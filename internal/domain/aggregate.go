package domain

import (
	"math"
	"sort"
)

// AllRaces is the key of the total population in a demographic key map.
const AllRaces = "All"

// AverageHomicides returns the mean yearly homicide count per state over the
// records of the given year.
func AverageHomicides(records []HomicideRecord, year int) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		if r.Year != year {
			continue
		}
		sums[r.State] += float64(r.Homicides)
		counts[r.State]++
	}

	avg := make(map[string]float64, len(sums))
	for state, sum := range sums {
		avg[state] = sum / float64(counts[state])
	}
	return avg
}

// AggregateStates builds the per-state demographic table from the facts
// summary rows. A summary row carries no state abbreviation, so it is derived
// from the area name through stateNames; rows failing that lookup are dropped.
//
// demoKeys maps a race label to the facts column holding its percentage, and
// AllRaces to the total population column. Per-race population is the total
// times pct/100, truncated. The homicide rate is per million residents; it is
// nil when the state has no homicide data or the division is not finite.
func AggregateStates(facts []CountyFacts, stateNames, demoKeys map[string]string, homicides map[string]float64) []StateAggregate {
	popCode := demoKeys[AllRaces]
	seen := make(map[string]bool)
	var out []StateAggregate

	for _, f := range facts {
		if !f.IsStateSummary() {
			continue
		}
		abbr, ok := stateNames[f.AreaName]
		if !ok || seen[abbr] {
			continue
		}
		seen[abbr] = true

		agg := StateAggregate{
			State:            abbr,
			AreaName:         f.AreaName,
			Population:       int(f.Values[popCode]),
			PopulationByRace: make(map[string]int, len(demoKeys)),
			Facts:            f.Values,
		}

		for race, code := range demoKeys {
			if race == AllRaces {
				agg.PopulationByRace[race] = agg.Population
				continue
			}
			pct, ok := f.Values[code]
			if !ok {
				continue
			}
			agg.PopulationByRace[race] = int(float64(agg.Population) * (pct / 100))
		}

		if avg, ok := homicides[abbr]; ok {
			agg.AvgHomicides = &avg
			rate := avg / float64(agg.Population) * 1_000_000
			if !math.IsNaN(rate) && !math.IsInf(rate, 0) {
				agg.HomicidesPerMillion = &rate
			}
		}

		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

package domain

// BackfillIncome looks up a facts value (median household income) for the
// matched county and falls back to the state summary row when the county is
// unknown or lacks the value. countyValue is the county-only figure; value is
// the backfilled one. Either may be nil.
func BackfillIncome(match CountyMatch, state string, idx *FactsIndex, code string) (countyValue, value *float64) {
	if idx == nil {
		return nil, nil
	}
	if match.Fips != nil {
		if county, ok := idx.County(*match.Fips); ok {
			countyValue = county.Value(code)
		}
	}
	if countyValue != nil {
		return countyValue, countyValue
	}
	if row, ok := idx.State(state); ok {
		value = row.Value(code)
	}
	return nil, value
}

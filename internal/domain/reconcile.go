package domain

// CountyLocator places a WGS-84 coordinate inside a county polygon.
type CountyLocator interface {
	// Locate returns the identifier of the polygon that contains the point,
	// as stored in the boundary file (possibly zero-padded).
	Locate(lat, lon float64) (fips string, ok bool)
}

// FactsIndex is a lookup structure over the county facts table.
type FactsIndex struct {
	byFips  map[string]CountyFacts
	byKey   map[string]string
	byState map[string]CountyFacts
}

// NewFactsIndex indexes county rows by fips and join key, and state summary
// rows by the abbreviation derived from their area name. When two county rows
// normalize to the same join key the first one wins. Summary rows whose name
// is not in stateNames (the national row) are left out.
func NewFactsIndex(facts []CountyFacts, stateNames map[string]string) *FactsIndex {
	idx := &FactsIndex{
		byFips:  make(map[string]CountyFacts, len(facts)),
		byKey:   make(map[string]string, len(facts)),
		byState: make(map[string]CountyFacts, len(stateNames)),
	}
	for _, f := range facts {
		if f.IsStateSummary() {
			abbr, ok := stateNames[f.AreaName]
			if !ok {
				continue
			}
			if _, dup := idx.byState[abbr]; !dup {
				idx.byState[abbr] = f
			}
			continue
		}
		idx.byFips[f.Fips] = f
		if f.JoinKey == "" {
			continue
		}
		if _, dup := idx.byKey[f.JoinKey]; !dup {
			idx.byKey[f.JoinKey] = f.Fips
		}
	}
	return idx
}

// County returns the county row for a fips with leading zeros stripped.
func (idx *FactsIndex) County(fips string) (CountyFacts, bool) {
	f, ok := idx.byFips[fips]
	return f, ok
}

// FipsForKey resolves a join key to a county fips.
func (idx *FactsIndex) FipsForKey(key string) (string, bool) {
	fips, ok := idx.byKey[key]
	return fips, ok
}

// State returns the summary row for a state abbreviation.
func (idx *FactsIndex) State(abbr string) (CountyFacts, bool) {
	f, ok := idx.byState[abbr]
	return f, ok
}

// Reconcile assigns a county to an event. The spatial pass runs only when
// both coordinates are present and non-zero and a locator is configured; the
// join-key pass runs for whatever the spatial pass leaves unmatched. Nothing
// here fails: an event that matches neither pass gets MatchNone.
func Reconcile(event Event, locator CountyLocator, idx *FactsIndex) CountyMatch {
	if locator != nil && hasCoordinates(event) {
		if raw, ok := locator.Locate(*event.Latitude, *event.Longitude); ok {
			if fips := StripLeadingZeros(raw); fips != "" {
				return CountyMatch{Fips: &fips, Source: MatchSpatial}
			}
		}
	}

	if idx != nil {
		if fips, ok := idx.FipsForKey(JoinKey(event.State, event.County)); ok {
			return CountyMatch{Fips: &fips, Source: MatchKey}
		}
	}

	return CountyMatch{Source: MatchNone}
}

// hasCoordinates treats a zero coordinate like a missing one.
func hasCoordinates(event Event) bool {
	return event.Latitude != nil && event.Longitude != nil &&
		*event.Latitude != 0 && *event.Longitude != 0
}

package domain

// Enricher turns loaded events into enriched events. Locator may be nil, in
// which case only the join-key pass can place events.
type Enricher struct {
	Locator    CountyLocator
	Index      *FactsIndex
	IncomeCode string
	Choose     Chooser
}

// ReconcileReport summarizes one enrichment pass.
type ReconcileReport struct {
	Total           int                 `json:"total"`
	BySource        map[MatchSource]int `json:"by_source"`
	Unmatched       []string            `json:"unmatched_ids"`
	IncomeBackfills int                 `json:"income_backfills"`
	IncomeMissing   int                 `json:"income_missing"`
	// MatchedWithoutFacts counts events whose fips has no facts row, e.g. a
	// county created after the facts vintage.
	MatchedWithoutFacts int `json:"matched_without_facts"`
}

// Enrich reconciles, backfills and derives features for a single event.
func (e *Enricher) Enrich(event Event) EnrichedEvent {
	choose := e.Choose
	if choose == nil {
		choose = FirstChooser
	}

	match := Reconcile(event, e.Locator, e.Index)
	countyIncome, income := BackfillIncome(match, event.State, e.Index, e.IncomeCode)

	return EnrichedEvent{
		Event:        event,
		Features:     DeriveFeatures(event, choose),
		RaceLabel:    RaceLabel(event.Race),
		JoinKey:      JoinKey(event.State, event.County),
		Fips:         match.Fips,
		MatchSource:  match.Source,
		IncomeCounty: countyIncome,
		Income:       income,
		ProcessedAt:  clock.Now(),
	}
}

// EnrichAll enriches events in order and reports how each was matched.
func (e *Enricher) EnrichAll(events []Event) ([]EnrichedEvent, ReconcileReport) {
	out := make([]EnrichedEvent, 0, len(events))
	report := ReconcileReport{
		Total:    len(events),
		BySource: map[MatchSource]int{MatchSpatial: 0, MatchKey: 0, MatchNone: 0},
	}

	for _, ev := range events {
		enriched := e.Enrich(ev)
		report.BySource[enriched.MatchSource]++
		if enriched.MatchSource == MatchNone {
			report.Unmatched = append(report.Unmatched, ev.ID)
		}
		if enriched.Fips != nil && e.Index != nil {
			if _, ok := e.Index.County(*enriched.Fips); !ok {
				report.MatchedWithoutFacts++
			}
		}
		switch {
		case enriched.Income == nil:
			report.IncomeMissing++
		case enriched.IncomeCounty == nil:
			report.IncomeBackfills++
		}
		out = append(out, enriched)
	}
	return out, report
}

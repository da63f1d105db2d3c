package analysis

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Column extracts one categorical value from an enriched event. An empty
// value means missing; such events are left out of a crosstab.
type Column func(domain.EnrichedEvent) string

// Columns are the categorical event columns available for crosstabs.
var Columns = map[string]Column{
	"race":                       func(e domain.EnrichedEvent) string { return e.RaceLabel },
	"g_race_short":               func(e domain.EnrichedEvent) string { return e.RaceGroup },
	"g_threat_type":              func(e domain.EnrichedEvent) string { return e.ThreatGroup },
	"g_armed_with":               func(e domain.EnrichedEvent) string { return e.WeaponGroup },
	"age_bracket":                func(e domain.EnrichedEvent) string { return e.AgeBracket },
	"age_bracket_short":          func(e domain.EnrichedEvent) string { return e.AgeBracketShort },
	"gender":                     func(e domain.EnrichedEvent) string { return e.Gender },
	"flee_status":                func(e domain.EnrichedEvent) string { return e.FleeStatus },
	"was_mental_illness_related": func(e domain.EnrichedEvent) string { return strconv.FormatBool(e.MentalIllness) },
	"body_camera":                func(e domain.EnrichedEvent) string { return strconv.FormatBool(e.BodyCamera) },
	"match_source":               func(e domain.EnrichedEvent) string { return string(e.MatchSource) },
	"state":                      func(e domain.EnrichedEvent) string { return e.State },
}

// ColumnNames returns the keys of Columns, sorted.
func ColumnNames() []string {
	names := make([]string, 0, len(Columns))
	for name := range Columns {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Crosstab is a contingency table of event counts. Labels are sorted.
type Crosstab struct {
	RowLabels []string    `json:"rows"`
	ColLabels []string    `json:"cols"`
	Counts    [][]float64 `json:"counts"`
}

// NewCrosstab counts events by the named row and column variables.
func NewCrosstab(events []domain.EnrichedEvent, rowName, colName string) (Crosstab, error) {
	rowCol, ok := Columns[rowName]
	if !ok {
		return Crosstab{}, fmt.Errorf("crosstab: unknown column %q", rowName)
	}
	colCol, ok := Columns[colName]
	if !ok {
		return Crosstab{}, fmt.Errorf("crosstab: unknown column %q", colName)
	}
	return Tabulate(events, rowCol, colCol), nil
}

// Tabulate counts events by the values of row and col.
func Tabulate(events []domain.EnrichedEvent, row, col Column) Crosstab {
	type cell struct{ r, c string }
	counts := make(map[cell]float64)
	rowSet := make(map[string]bool)
	colSet := make(map[string]bool)

	for i := range events {
		r, c := row(events[i]), col(events[i])
		if r == "" || c == "" {
			continue
		}
		counts[cell{r, c}]++
		rowSet[r] = true
		colSet[c] = true
	}

	ct := Crosstab{RowLabels: sortedKeys(rowSet), ColLabels: sortedKeys(colSet)}
	ct.Counts = make([][]float64, len(ct.RowLabels))
	for i, r := range ct.RowLabels {
		ct.Counts[i] = make([]float64, len(ct.ColLabels))
		for j, c := range ct.ColLabels {
			ct.Counts[i][j] = counts[cell{r, c}]
		}
	}
	return ct
}

// String renders the table as aligned text.
func (c Crosstab) String() string {
	width := 0
	for _, l := range c.RowLabels {
		width = max(width, len(l))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-*s", width, "")
	for _, l := range c.ColLabels {
		fmt.Fprintf(&b, "  %*s", max(len(l), 6), l)
	}
	b.WriteByte('\n')
	for i, l := range c.RowLabels {
		fmt.Fprintf(&b, "%-*s", width, l)
		for j, v := range c.Counts[i] {
			fmt.Fprintf(&b, "  %*.0f", max(len(c.ColLabels[j]), 6), v)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

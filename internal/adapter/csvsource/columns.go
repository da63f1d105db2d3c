// Package csvsource loads the study's CSV datasets into domain types.
package csvsource

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing column")

// header maps column names to their position in a CSV row.
type header map[string]int

func newHeader(names []string) header {
	h := make(header, len(names))
	for i, n := range names {
		n = strings.TrimSpace(strings.TrimPrefix(n, "\ufeff"))
		if _, dup := h[n]; !dup {
			h[n] = i
		}
	}
	return h
}

// require fails with ErrMissingColumn naming every absent column.
func (h header) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := h[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// get returns the trimmed cell for a column, or "" when the column or cell is absent.
func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// isMissing reports whether a cell holds one of the null markers pandas and
// gota write for empty values.
func isMissing(s string) bool {
	switch s {
	case "", "NA", "NaN", "nan", "<nil>":
		return true
	}
	return false
}

// parseOptionalFloat returns nil for empty or unparsable cells.
func parseOptionalFloat(s string) *float64 {
	if isMissing(s) {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil && b
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

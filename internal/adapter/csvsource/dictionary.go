package csvsource

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Dictionary maps facts column codes to human-readable descriptions.
type Dictionary map[string]string

// LoadDictionary reads the facts column dictionary CSV at path.
func LoadDictionary(path string) (Dictionary, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDictionary(f)
}

// ReadDictionary parses rows of column_name,description.
func ReadDictionary(r io.Reader) (Dictionary, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read facts dictionary: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("facts dictionary: %w: column_name, description", ErrMissingColumn)
	}
	h := newHeader(rows[0])
	if err := h.require("column_name", "description"); err != nil {
		return nil, fmt.Errorf("facts dictionary: %w", err)
	}

	dict := make(Dictionary, len(rows)-1)
	for _, row := range rows[1:] {
		dict[h.get(row, "column_name")] = h.get(row, "description")
	}
	return dict, nil
}

// Describe returns the description of a code, or the code itself when unknown.
func (d Dictionary) Describe(code string) string {
	if desc, ok := d[code]; ok && desc != "" {
		return desc
	}
	return code
}

// Code is the reverse lookup: the column code for a description.
func (d Dictionary) Code(description string) (string, bool) {
	for code, desc := range d {
		if desc == description {
			return code, true
		}
	}
	return "", false
}

// Readable re-keys a facts row by description.
func (d Dictionary) Readable(f domain.CountyFacts) map[string]float64 {
	out := make(map[string]float64, len(f.Values))
	for code, v := range f.Values {
		out[d.Describe(code)] = v
	}
	return out
}

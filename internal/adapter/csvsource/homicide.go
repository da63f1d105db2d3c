package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// LoadHomicides reads the CDC homicide deaths CSV at path.
func LoadHomicides(path string) ([]domain.HomicideRecord, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadHomicides(f)
}

// ReadHomicides parses YEAR, STATE and DEATHS columns; other columns (URL,
// RATE) are ignored. DEATHS may carry thousands separators ("1,234"). Unlike
// the other loaders a bad count fails the load, since the column feeds a rate.
func ReadHomicides(r io.Reader) ([]domain.HomicideRecord, error) {
	cr := csv.NewReader(r)

	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read homicides header: %w", err)
	}
	h := newHeader(names)
	if err := h.require("YEAR", "STATE", "DEATHS"); err != nil {
		return nil, fmt.Errorf("homicides: %w", err)
	}

	var out []domain.HomicideRecord
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read homicides line %d: %w", line, err)
		}

		year, err := strconv.Atoi(h.get(row, "YEAR"))
		if err != nil {
			return nil, fmt.Errorf("homicides line %d: year: %w", line, err)
		}
		deaths, err := strconv.Atoi(strings.ReplaceAll(h.get(row, "DEATHS"), ",", ""))
		if err != nil {
			return nil, fmt.Errorf("homicides line %d: deaths: %w", line, err)
		}

		out = append(out, domain.HomicideRecord{
			Year:      year,
			State:     h.get(row, "STATE"),
			Homicides: deaths,
		})
	}
	return out, nil
}

// Package excel reads the state and local police spending workbook.
package excel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

const stateColumn = "State"

// ErrUnknownState is returned for a row whose state name has no abbreviation.
var ErrUnknownState = errors.New("unknown state")

// LoadSpending reads real state and local expenditures on police protection
// from the first sheet of the workbook at path. The header row holds "State"
// followed by one column per year; cells may carry thousands separators.
// Empty rows are skipped; a state name missing from stateNames fails the load.
func LoadSpending(path string, stateNames map[string]string) ([]domain.StateSpending, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spending workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spending workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return parseSpendingRows(rows, stateNames)
}

func parseSpendingRows(rows [][]string, stateNames map[string]string) ([]domain.StateSpending, error) {
	headerRow := -1
	for i, row := range rows {
		if len(row) > 0 && strings.TrimSpace(row[0]) == stateColumn {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("spending workbook: no %q header row", stateColumn)
	}

	years := make(map[int]int)
	for col, cell := range rows[headerRow] {
		if col == 0 {
			continue
		}
		if y, err := strconv.Atoi(strings.TrimSpace(cell)); err == nil {
			years[col] = y
		}
	}

	var out []domain.StateSpending
	for _, row := range rows[headerRow+1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		name := strings.TrimSpace(row[0])
		abbr, ok := stateNames[name]
		if !ok {
			return nil, fmt.Errorf("spending workbook: %w: %q", ErrUnknownState, name)
		}

		s := domain.StateSpending{State: abbr, StateName: name, ByYear: make(map[int]float64, len(years))}
		for col, year := range years {
			if col >= len(row) {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row[col]), ",", ""), 64)
			if err != nil {
				continue
			}
			s.ByYear[year] = v
		}
		out = append(out, s)
	}
	return out, nil
}

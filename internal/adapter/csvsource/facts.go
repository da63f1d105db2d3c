package csvsource

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

const (
	colFips      = "fips"
	colAreaName  = "area_name"
	colStateAbbr = "state_abbreviation"
)

// LoadFacts reads the county facts CSV at path.
func LoadFacts(path string) ([]domain.CountyFacts, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadFacts(f)
}

// ReadFacts parses the county facts table. Every column other than fips,
// area_name and state_abbreviation is treated as a numeric facts value keyed
// by its column code; empty or non-numeric cells are left out of Values.
// County rows get a join key; summary rows (no abbreviation) do not.
func ReadFacts(r io.Reader) ([]domain.CountyFacts, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("read facts: %w", df.Err)
	}

	names := df.Names()
	if err := newHeader(names).require(colFips, colAreaName, colStateAbbr); err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}

	columns := make(map[string][]string, len(names))
	for _, n := range names {
		columns[n] = df.Col(n).Records()
	}

	out := make([]domain.CountyFacts, df.Nrow())
	for i := range out {
		abbr := columns[colStateAbbr][i]
		if isMissing(abbr) {
			abbr = ""
		}
		row := domain.CountyFacts{
			Fips:      domain.StripLeadingZeros(columns[colFips][i]),
			AreaName:  columns[colAreaName][i],
			StateAbbr: abbr,
			Values:    make(map[string]float64, len(names)-3),
		}
		if row.Fips == "" {
			row.Fips = "0"
		}
		if abbr != "" {
			row.JoinKey = domain.JoinKey(abbr, row.AreaName)
		}

		for _, n := range names {
			switch n {
			case colFips, colAreaName, colStateAbbr:
				continue
			}
			v, err := strconv.ParseFloat(columns[n][i], 64)
			if err != nil {
				continue
			}
			row.Values[n] = v
		}
		out[i] = row
	}
	return out, nil
}

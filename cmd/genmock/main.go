// Command genmock writes a small synthetic dataset in the layout the etl
// service reads (events, county facts and dictionary, homicides, police
// spending workbook, county boundaries) and a golden fixture of the enriched
// events. The fixture is produced by running the real pipeline over the
// generated files with a frozen clock, so it matches pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -data-dir data/mock/datasets \
//	  -boundaries data/mock/geodata/county/ACS_2021_5YR_COUNTY.geojson \
//	  -golden data/mock/enriched_golden.json \
//	  -events 300 -seed 7
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/xuri/excelize/v2"

	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/domain"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

const homicideYear = 2021

type county struct {
	code   int
	name   string // as in the facts table, with its suffix
	short  string // as in the events table
	income bool
}

type state struct {
	name     string
	abbr     string
	fips     int
	lon, lat float64 // south-west corner of the first county square
	counties []county
}

// Counties are laid out as adjacent one-degree squares eastwards from each
// state's corner.
var states = []state{
	{name: "Washington", abbr: "WA", fips: 53, lon: -124, lat: 46, counties: []county{
		{code: 45, name: "Mason County", short: "Mason", income: true},
		{code: 33, name: "King County", short: "King", income: true},
		{code: 53, name: "Pierce County", short: "Pierce", income: false},
	}},
	{name: "Kansas", abbr: "KS", fips: 20, lon: -100, lat: 37, counties: []county{
		{code: 173, name: "Sedgwick County", short: "Sedgwick", income: true},
		{code: 91, name: "Johnson County", short: "Johnson", income: true},
		{code: 177, name: "Shawnee County", short: "Shawnee", income: true},
	}},
	{name: "Alabama", abbr: "AL", fips: 1, lon: -88, lat: 31, counties: []county{
		{code: 1, name: "Autauga County", short: "Autauga", income: true},
		{code: 3, name: "Baldwin County", short: "Baldwin", income: false},
		{code: 97, name: "Mobile County", short: "Mobile", income: true},
	}},
	{name: "Louisiana", abbr: "LA", fips: 22, lon: -93, lat: 29, counties: []county{
		{code: 71, name: "Orleans Parish", short: "Orleans", income: true},
		{code: 17, name: "Caddo Parish", short: "Caddo", income: true},
	}},
}

// factColumns are written to the facts table in this order.
var factColumns = []struct {
	code, description string
	lo, hi            float64
}{
	{"PST045214", "Population, 2014 estimate", 20_000, 2_000_000},
	{"AGE775214", "Persons 65 years and over, percent", 10, 22},
	{"RHI125214", "White alone, percent, 2014", 40, 90},
	{"RHI225214", "Black or African American alone, percent, 2014", 2, 45},
	{"RHI325214", "American Indian and Alaska Native alone, percent, 2014", 0.2, 4},
	{"RHI425214", "Asian alone, percent, 2014", 0.5, 15},
	{"RHI725214", "Hispanic or Latino, percent, 2014", 2, 25},
	{"EDU685213", "Bachelor's degree or higher, percent of persons age 25+", 12, 48},
	{"HSG445213", "Homeownership rate", 45, 80},
	{"INC110213", "Median household income", 35_000, 90_000},
	{"PVY020213", "Persons below poverty level, percent", 7, 28},
}

var (
	threatTypes = []string{"shoot", "point", "attack", "threat", "move", "flee", "undetermined"}
	fleeStatus  = []string{"not", "car", "foot", "other", ""}
	armedWith   = []string{"gun", "gun", "knife", "unarmed", "vehicle", "replica", "gun;knife", "undetermined", ""}
	races       = []string{"W", "W", "B", "H", "A", "N", "O", ""}
	genders     = []string{"male", "male", "male", "female"}
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data/mock/datasets", "directory the dataset tree is written to")
	boundaries := flag.String("boundaries", "data/mock/geodata/county/ACS_2021_5YR_COUNTY.geojson", "output path for county boundaries")
	golden := flag.String("golden", "data/mock/enriched_golden.json", "output path for the enriched events fixture")
	n := flag.Int("events", 300, "number of events to generate")
	seed := flag.Uint64("seed", 7, "random seed")
	flag.Parse()

	if *n <= 0 {
		flag.Usage()
		return fmt.Errorf("-events must be positive")
	}

	rng := rand.New(rand.NewPCG(*seed, *seed+1))
	cfg := &config.Config{
		EventsPath:          filepath.Join(*dataDir, "data-police-shootings/v2/fatal-police-shootings-data.csv"),
		FactsPath:           filepath.Join(*dataDir, "county_facts/county_facts.csv"),
		FactsDictionaryPath: filepath.Join(*dataDir, "county_facts/county_facts_dictionary.csv"),
		HomicidePath:        filepath.Join(*dataDir, "homocide_deaths/homocide_deaths.csv"),
		SpendingPath:        filepath.Join(*dataDir, "state_spending_data/dqs_table_87_8.xlsx"),
		CountyBoundaryPaths: []string{*boundaries},
		CountyIDProperty:    "GEOID",
		HomicideYear:        homicideYear,
	}

	writers := []struct {
		path string
		fn   func(string, *rand.Rand) error
	}{
		{cfg.EventsPath, func(p string, r *rand.Rand) error { return writeEvents(p, r, *n) }},
		{cfg.FactsPath, writeFacts},
		{cfg.FactsDictionaryPath, func(p string, _ *rand.Rand) error { return writeDictionary(p) }},
		{cfg.HomicidePath, writeHomicides},
		{cfg.SpendingPath, writeSpending},
		{*boundaries, func(p string, _ *rand.Rand) error { return writeBoundaries(p) }},
	}
	for _, w := range writers {
		if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
			return err
		}
		if err := w.fn(w.path, rng); err != nil {
			return fmt.Errorf("write %s: %w", w.path, err)
		}
		log.Printf("wrote %s", w.path)
	}

	events, err := enrich(cfg)
	if err != nil {
		return err
	}
	if err := writeJSON(*golden, events); err != nil {
		return err
	}
	log.Printf("wrote %s (%d events)", *golden, len(events))
	return nil
}

// enrich runs the pipeline over the generated files with a frozen clock and
// deterministic weapon choice.
func enrich(cfg *config.Config) ([]domain.EnrichedEvent, error) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	ref, err := reference.Default()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	p, err := pipeline.New(pipeline.NewFileSources(cfg, ref, logger, metrics), ref, nil, pipeline.Options{
		HomicideYear: cfg.HomicideYear,
		Choose:       domain.FirstChooser,
	}, logger, metrics)
	if err != nil {
		return nil, err
	}
	res, err := p.Run(context.Background())
	if err != nil {
		return nil, fmt.Errorf("run pipeline: %w", err)
	}
	log.Printf("reconciled: %d spatial, %d key, %d unmatched",
		res.Report.BySource[domain.MatchSpatial], res.Report.BySource[domain.MatchKey], res.Report.BySource[domain.MatchNone])
	return res.Events, nil
}

func writeEvents(path string, rng *rand.Rand, n int) error {
	header := []string{"id", "date", "threat_type", "flee_status", "armed_with", "city", "county", "state",
		"latitude", "longitude", "location_precision", "name", "age", "gender", "race", "race_source",
		"was_mental_illness_related", "body_camera", "agency_ids"}
	rows := [][]string{header}

	start := time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := range n {
		st := states[rng.IntN(len(states))]
		c := st.counties[rng.IntN(len(st.counties))]
		countyName := c.short

		var lat, lon string
		switch r := rng.Float64(); {
		case r < 0.75:
			idx := countyIndex(st, c)
			lon = coord(st.lon + float64(idx) + 0.05 + 0.9*rng.Float64())
			lat = coord(st.lat + 0.05 + 0.9*rng.Float64())
		case r < 0.80:
			lat, lon = "0", "0"
		case r < 0.95:
			// no coordinates; placed by county name
		default:
			countyName = "Unknown"
		}

		age := ""
		if rng.Float64() < 0.95 {
			age = strconv.Itoa(14 + rng.IntN(70))
		}

		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			start.AddDate(0, 0, rng.IntN(8*365)).Format("2006-01-02"),
			pick(rng, threatTypes),
			pick(rng, fleeStatus),
			pick(rng, armedWith),
			countyName + " City",
			countyName,
			st.abbr,
			lat, lon,
			"not_available",
			fmt.Sprintf("Person %d", i+1),
			age,
			pick(rng, genders),
			pick(rng, races),
			"not_available",
			pythonBool(rng.Float64() < 0.2),
			pythonBool(rng.Float64() < 0.15),
			strconv.Itoa(1 + rng.IntN(400)),
		})
	}
	return writeCSV(path, rows)
}

func writeFacts(path string, rng *rand.Rand) error {
	header := []string{"fips", "area_name", "state_abbreviation"}
	for _, c := range factColumns {
		header = append(header, c.code)
	}
	rows := [][]string{header}

	national := make([]float64, len(factColumns))
	var stateRows [][]string
	for _, st := range states {
		sums := make([]float64, len(factColumns))
		var countyRows [][]string
		for _, c := range st.counties {
			row := []string{strconv.Itoa(st.fips*1000 + c.code), c.name, st.abbr}
			pop := 0.0
			for j, col := range factColumns {
				v := col.lo + (col.hi-col.lo)*rng.Float64()
				if j == 0 {
					v = math.Round(v)
					pop = v
				} else {
					v = math.Round(v*10) / 10
				}
				if col.code == "INC110213" {
					v = math.Round(v)
					if !c.income {
						row = append(row, "")
						continue
					}
				}
				row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
				if j == 0 {
					sums[j] += v
				} else {
					sums[j] += v * pop
				}
			}
			countyRows = append(countyRows, row)
		}

		summary := []string{strconv.Itoa(st.fips * 1000), st.name, ""}
		for j := range factColumns {
			v := sums[j]
			if j > 0 {
				v = math.Round(sums[j]/sums[0]*10) / 10
			}
			summary = append(summary, strconv.FormatFloat(v, 'f', -1, 64))
			national[j] += sums[j]
		}
		stateRows = append(stateRows, summary)
		stateRows = append(stateRows, countyRows...)
	}

	us := []string{"0", "United States", ""}
	for j := range factColumns {
		v := national[j]
		if j > 0 {
			v = math.Round(national[j]/national[0]*10) / 10
		}
		us = append(us, strconv.FormatFloat(v, 'f', -1, 64))
	}
	rows = append(rows, us)
	rows = append(rows, stateRows...)
	return writeCSV(path, rows)
}

func writeDictionary(path string) error {
	rows := [][]string{{"column_name", "description"}}
	for _, c := range factColumns {
		rows = append(rows, []string{c.code, c.description})
	}
	return writeCSV(path, rows)
}

func writeHomicides(path string, rng *rand.Rand) error {
	rows := [][]string{{"YEAR", "STATE", "RATE", "DEATHS", "URL"}}
	for year := homicideYear - 2; year <= homicideYear; year++ {
		for _, st := range states {
			deaths := 100 + rng.IntN(900)
			rows = append(rows, []string{
				strconv.Itoa(year),
				st.abbr,
				strconv.FormatFloat(math.Round(rng.Float64()*200)/10, 'f', -1, 64),
				strconv.Itoa(deaths),
				"/nchs/pressroom/states/" + st.abbr + ".htm",
			})
		}
	}
	return writeCSV(path, rows)
}

func writeSpending(path string, rng *rand.Rand) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	years := []int{2015, 2016, 2017}
	header := []any{"State"}
	for _, y := range years {
		header = append(header, strconv.Itoa(y))
	}
	rows := [][]any{
		{"Real state and local government expenditures on police protection"},
		header,
	}
	for _, st := range states {
		row := []any{st.name}
		base := 200_000 + rng.Float64()*4_000_000
		for i := range years {
			row = append(row, strconv.FormatFloat(math.Round(base*(1+0.03*float64(i))), 'f', 0, 64))
		}
		rows = append(rows, row)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

func writeBoundaries(path string) error {
	fc := geojson.NewFeatureCollection()
	for _, st := range states {
		for i, c := range st.counties {
			x0, y0 := st.lon+float64(i), st.lat
			feature := geojson.NewFeature(orb.Polygon{orb.Ring{
				{x0, y0}, {x0 + 1, y0}, {x0 + 1, y0 + 1}, {x0, y0 + 1}, {x0, y0},
			}})
			feature.Properties["GEOID"] = fmt.Sprintf("%02d%03d", st.fips, c.code)
			feature.Properties["NAMELSAD"] = c.name
			fc.Append(feature)
		}
	}
	raw, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func countyIndex(st state, c county) int {
	for i := range st.counties {
		if st.counties[i].code == c.code {
			return i
		}
	}
	return 0
}

func coord(v float64) string {
	return strconv.FormatFloat(math.Round(v*1e6)/1e6, 'f', -1, 64)
}

func pick(rng *rand.Rand, options []string) string {
	return options[rng.IntN(len(options))]
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

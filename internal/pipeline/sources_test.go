package pipeline_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/qwyt/wp-police-shooting/internal/config"
	"github.com/qwyt/wp-police-shooting/internal/observability"
	"github.com/qwyt/wp-police-shooting/internal/pipeline"
	"github.com/qwyt/wp-police-shooting/internal/reference"
)

const (
	fixtureEvents = `id,date,threat_type,flee_status,armed_with,city,county,state,latitude,longitude,location_precision,name,age,gender,race,race_source,was_mental_illness_related,body_camera,agency_ids
3,2015-01-02,point,not,gun,Shelton,Mason,WA,47.25,-123.12,not_available,Tim Elliot,53,male,A,not_available,True,False,73
5,2015-01-03,move,not,unarmed,Wichita,Sedgwick,KS,,,not_available,John Paul Quintero,,male,H,not_available,False,False,238
`
	fixtureFacts = `fips,area_name,state_abbreviation,PST045214,RHI125214,INC110213
0,United States,,318857056,77.4,53046
20000,Kansas,,2904021,86.9,51332
20173,Sedgwick County,KS,508803,83.2,50049
53000,Washington,,7061530,80.7,59478
53045,Mason County,WA,61023,86.5,47903
`
	fixtureDictionary = "column_name,description\nPST045214,\"Population, 2014 estimate\"\nINC110213,Median household income\n"
	fixtureHomicides  = "YEAR,STATE,DEATHS\n2021,WA,325\n2021,KS,198\n"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeSpending(t *testing.T, dir string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"State", "2016", "2017"},
		{"Kansas", "400,000", "410,000"},
		{"Washington", "1,900,000", "2,000,000"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	path := filepath.Join(dir, "spending.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func writeBoundaries(t *testing.T, dir string) string {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	mason := geojson.NewFeature(orb.Polygon{orb.Ring{{-124, 47}, {-123, 47}, {-123, 48}, {-124, 48}, {-124, 47}}})
	mason.Properties["GEOID"] = "53045"
	fc.Append(mason)
	raw, err := fc.MarshalJSON()
	require.NoError(t, err)
	return writeFile(t, dir, "counties.geojson", string(raw))
}

func fixtureConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		EventsPath:          writeFile(t, dir, "events.csv", fixtureEvents),
		FactsPath:           writeFile(t, dir, "facts.csv", fixtureFacts),
		FactsDictionaryPath: writeFile(t, dir, "dictionary.csv", fixtureDictionary),
		HomicidePath:        writeFile(t, dir, "homicides.csv", fixtureHomicides),
		SpendingPath:        writeSpending(t, dir),
		CountyBoundaryPaths: []string{writeBoundaries(t, dir)},
		CountyIDProperty:    "GEOID",
		LocatorCacheSize:    16,
		HomicideYear:        2021,
		BatchSize:           50,
	}
}

func TestFileSources_Load(t *testing.T) {
	ref, err := reference.Default()
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	cfg := fixtureConfig(t)

	in, err := pipeline.NewFileSources(cfg, ref, slog.Default(), metrics).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, in.Events, 2)
	assert.Len(t, in.Facts, 5)
	assert.Len(t, in.Homicides, 2)
	assert.Len(t, in.Spending, 2)
	assert.Equal(t, "Median household income", in.Dictionary.Describe("INC110213"))
	require.NotNil(t, in.Locator)

	fips, ok := in.Locator.Locate(47.25, -123.12)
	require.True(t, ok)
	assert.Equal(t, "53045", fips)

	assert.InDelta(t, 2.0, testutil.ToFloat64(metrics.RowsLoaded.WithLabelValues("events")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.RowsLoaded.WithLabelValues("boundaries")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.LocatorCache.WithLabelValues("miss")), 0)
}

func TestFileSources_MissingBoundariesDisablesSpatial(t *testing.T) {
	ref, err := reference.Default()
	require.NoError(t, err)
	cfg := fixtureConfig(t)
	cfg.CountyBoundaryPaths = []string{filepath.Join(t.TempDir(), "absent.geojson")}

	in, err := pipeline.NewFileSources(cfg, ref, slog.Default(), observability.NewMetricsForTesting()).Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, in.Locator)
}

func TestFileSources_MissingTableFails(t *testing.T) {
	ref, err := reference.Default()
	require.NoError(t, err)
	cfg := fixtureConfig(t)
	cfg.FactsPath = filepath.Join(t.TempDir(), "absent.csv")

	_, err = pipeline.NewFileSources(cfg, ref, slog.Default(), observability.NewMetricsForTesting()).Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "load county facts")
}

func TestPipeline_EndToEndFromFiles(t *testing.T) {
	ref, err := reference.Default()
	require.NoError(t, err)
	metrics := observability.NewMetricsForTesting()
	cfg := fixtureConfig(t)

	p, err := pipeline.New(pipeline.NewFileSources(cfg, ref, slog.Default(), metrics), ref, nil,
		pipeline.Options{BatchSize: cfg.BatchSize, HomicideYear: cfg.HomicideYear}, slog.Default(), metrics)
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)

	byID := map[string]int{}
	for i, ev := range res.Events {
		byID[ev.ID] = i
	}
	mason := res.Events[byID["3"]]
	assert.Equal(t, "spatial", string(mason.MatchSource))
	assert.Equal(t, "53045", *mason.Fips)
	assert.InDelta(t, 47903.0, *mason.Income, 0)

	sedgwick := res.Events[byID["5"]]
	assert.Equal(t, "key", string(sedgwick.MatchSource))
	assert.Equal(t, "20173", *sedgwick.Fips)

	require.Len(t, res.States, 2)
	assert.Equal(t, "KS", res.States[0].State)
	assert.Equal(t, "WA", res.States[1].State)
}

// Package geo places event coordinates inside county boundary polygons.
package geo

import (
	"fmt"
	"os"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// DefaultIDProperty is the feature property holding the county GEOID in the
// ACS county boundary files.
const DefaultIDProperty = "GEOID"

// county is one boundary polygon with its precomputed bounding box.
type county struct {
	id      string
	bound   orb.Bound
	polygon orb.MultiPolygon
}

// PolygonLocator implements domain.CountyLocator over a set of county polygons
// from a single boundary vintage.
type PolygonLocator struct {
	name     string
	counties []county
}

// LoadBoundaries reads a GeoJSON FeatureCollection of county polygons.
// Features without a polygon geometry or an identifier are skipped.
func LoadBoundaries(path, idProperty string) (*PolygonLocator, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("parse boundaries %s: %w", path, err)
	}
	loc := NewPolygonLocator(path, fc, idProperty)
	if len(loc.counties) == 0 {
		return nil, fmt.Errorf("boundaries %s: no county polygons", path)
	}
	return loc, nil
}

// NewPolygonLocator indexes the polygon features of fc.
func NewPolygonLocator(name string, fc *geojson.FeatureCollection, idProperty string) *PolygonLocator {
	if idProperty == "" {
		idProperty = DefaultIDProperty
	}
	loc := &PolygonLocator{name: name}
	for _, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}
		id := featureID(f.Properties[idProperty])
		if id == "" {
			continue
		}
		loc.counties = append(loc.counties, county{id: id, bound: mp.Bound(), polygon: mp})
	}
	return loc
}

// featureID accepts identifiers exported either as strings or as numbers.
func featureID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	default:
		return ""
	}
}

// Locate returns the identifier of the first polygon that contains the point.
// Points on a shared border may match either neighbour.
func (l *PolygonLocator) Locate(lat, lon float64) (string, bool) {
	pt := orb.Point{lon, lat}
	for i := range l.counties {
		c := &l.counties[i]
		if !c.bound.Contains(pt) {
			continue
		}
		if planar.MultiPolygonContains(c.polygon, pt) {
			return c.id, true
		}
	}
	return "", false
}

// Len returns the number of indexed polygons.
func (l *PolygonLocator) Len() int {
	return len(l.counties)
}

// Name identifies the boundary vintage, usually its file path.
func (l *PolygonLocator) Name() string {
	return l.name
}

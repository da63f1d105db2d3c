package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

const dateLayout = "2006-01-02"

// eventColumns must all be present in the events CSV header.
var eventColumns = []string{
	"id", "date", "threat_type", "armed_with", "county", "state",
	"latitude", "longitude", "age", "race",
}

// LoadEvents reads the fatal encounters CSV at path.
func LoadEvents(path string) ([]domain.Event, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEvents(f)
}

// ReadEvents parses fatal encounter rows. Empty or malformed numeric cells
// become nil rather than failing the load; a malformed date leaves Date zero.
func ReadEvents(r io.Reader) ([]domain.Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	names, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read events header: %w", err)
	}
	h := newHeader(names)
	if err := h.require(eventColumns...); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	var events []domain.Event
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read events line %d: %w", line, err)
		}
		events = append(events, parseEventRow(h, row))
	}
	return events, nil
}

func parseEventRow(h header, row []string) domain.Event {
	var date time.Time
	if d, err := time.Parse(dateLayout, h.get(row, "date")); err == nil {
		date = d
	}

	return domain.Event{
		ID:                h.get(row, "id"),
		Date:              date,
		ThreatType:        h.get(row, "threat_type"),
		FleeStatus:        h.get(row, "flee_status"),
		ArmedWith:         h.get(row, "armed_with"),
		City:              h.get(row, "city"),
		County:            h.get(row, "county"),
		State:             h.get(row, "state"),
		Latitude:          parseOptionalFloat(h.get(row, "latitude")),
		Longitude:         parseOptionalFloat(h.get(row, "longitude")),
		Name:              h.get(row, "name"),
		Age:               parseOptionalFloat(h.get(row, "age")),
		Gender:            h.get(row, "gender"),
		Race:              h.get(row, "race"),
		MentalIllness:     parseBool(h.get(row, "was_mental_illness_related")),
		BodyCamera:        parseBool(h.get(row, "body_camera")),
		AgencyIDs:         h.get(row, "agency_ids"),
		LocationPrecision: h.get(row, "location_precision"),
		RaceSource:        h.get(row, "race_source"),
	}
}

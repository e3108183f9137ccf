// Package invalidation defines the deal change events that evict cached
// GeoServer answers.
package invalidation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event announces that one deal changed. PreviousCountry is set when an
// update moved the deal to another country.
type Event struct {
	Version         uint64    `json:"version"`
	Op              Op        `json:"op"`
	Layer           string    `json:"layer"`
	DealID          string    `json:"deal_id,omitempty"`
	Country         string    `json:"country,omitempty"`
	PreviousCountry string    `json:"previous_country,omitempty"`
	Point           *Point    `json:"point,omitempty"`
	H3Cells         []string  `json:"h3_cells,omitempty"`
	TS              time.Time `json:"ts"`
}

// Point is the deal location in EPSG:4326.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

func (e Event) Validate() error {
	if e.Version == 0 {
		return errors.New("version must be > 0")
	}
	switch e.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("op must be insert|update|delete, got %q", e.Op)
	}
	if strings.TrimSpace(e.Layer) == "" {
		return errors.New("layer is required")
	}
	if e.TS.IsZero() {
		return errors.New("ts is required")
	}
	if e.Point == nil && len(e.H3Cells) == 0 {
		return errors.New("one of point or h3_cells is required")
	}
	if p := e.Point; p != nil {
		if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
			return errors.New("point.lon out of range")
		}
		if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
			return errors.New("point.lat out of range")
		}
	}
	for i, c := range e.H3Cells {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("h3_cells[%d] is empty", i)
		}
	}
	return nil
}

// DedupeKey identifies the entity whose versions must increase.
func (e Event) DedupeKey() string {
	id := strings.TrimSpace(e.DealID)
	if id == "" {
		return strings.TrimSpace(e.Layer)
	}
	return strings.TrimSpace(e.Layer) + "#" + id
}

// Countries returns the distinct non-empty countries the event touches.
func (e Event) Countries() []string {
	var out []string
	for _, c := range []string{e.Country, e.PreviousCountry} {
		if c == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if o == c {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, c)
		}
	}
	return out
}

// Package features decodes GeoServer GeoJSON answers and decorates deals
// with their classification.
package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

// Properties written by Decorate.
const (
	PropMarkerColor   = "marker_color"
	PropReactionClass = "reaction_class"
)

var ErrNotGeoJSON = errors.New("not a GeoJSON feature collection")

type Counts map[classify.Kind]int

func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func DecodeCollection(b []byte) (*geojson.FeatureCollection, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, ErrNotGeoJSON
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotGeoJSON, err)
	}
	return fc, nil
}

// Decorate classifies properties[attribute] of every feature and stores the
// resulting color and kind on the feature.
func Decorate(fc *geojson.FeatureCollection, palette classify.Palette, attribute string) Counts {
	counts := Counts{}
	if fc == nil {
		return counts
	}
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		c := palette.ClassifyValue(f.Properties[attribute])
		f.Properties[PropMarkerColor] = string(c.Color)
		f.Properties[PropReactionClass] = c.Kind.String()
		counts[c.Kind]++
	}
	return counts
}

// FirstProperties returns the property map of the first feature. ok is false
// for an empty collection.
func FirstProperties(b []byte) (map[string]any, bool, error) {
	fc, err := DecodeCollection(b)
	if err != nil {
		return nil, false, err
	}
	props, ok := First(fc)
	return props, ok, nil
}

// First returns the properties of the first feature of fc. ok is false when
// there is none or it decoded as null.
func First(fc *geojson.FeatureCollection) (map[string]any, bool) {
	if fc == nil || len(fc.Features) == 0 || fc.Features[0] == nil {
		return nil, false
	}
	props := fc.Features[0].Properties
	if props == nil {
		props = geojson.Properties{}
	}
	return map[string]any(props), true
}

// Summary is the short popup shown for one deal marker.
type Summary struct {
	ID            string         `json:"id"`
	Crops         string         `json:"crops"`
	Reaction      string         `json:"reaction"`
	ReactionColor classify.Color `json:"reaction_color"`
	ReactionClass string         `json:"reaction_class"`
}

// Summarize builds the popup for one deal. Missing crops and reaction read
// as the style's unspecified label.
func Summarize(props map[string]any, style classify.Style) Summary {
	f := style.Formatter
	c := style.Palette.ClassifyValue(props[style.ReactionAttribute])
	reaction := c.Label
	if c.Kind == classify.KindUnspecified {
		reaction = style.UnspecifiedLabel
	}
	crops := f.Format(props["crops"])
	if crops == f.Placeholder() {
		crops = style.UnspecifiedLabel
	}
	return Summary{
		ID:            f.Format(props["id"]),
		Crops:         crops,
		Reaction:      reaction,
		ReactionColor: c.Color,
		ReactionClass: c.Kind.String(),
	}
}

// Marshal encodes fc with a stable, compact layout.
func Marshal(fc *geojson.FeatureCollection) ([]byte, error) {
	b, err := json.Marshal(fc)
	if err != nil {
		return nil, fmt.Errorf("encode feature collection: %w", err)
	}
	return b, nil
}

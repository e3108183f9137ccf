// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strconv"
	"strings"
)

type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
}

// String representation matching the WMS BBOX parameter
func (b BBox) String() string {
	return strings.Join([]string{
		formatCoord(b.X1), formatCoord(b.Y1), formatCoord(b.X2), formatCoord(b.Y2),
	}, ",")
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Point is a click location in EPSG:4326.
type Point struct {
	Lon, Lat float64
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lon, p.Lat)
}

// FeatureQuery is one WFS GetFeature call.
type FeatureQuery struct {
	Layer        string
	Filter       string
	SRSName      string
	OutputFormat string
}

// FeatureInfoRequest mirrors the map view state a viewer sends on click.
type FeatureInfoRequest struct {
	BBox   BBox
	Width  int
	Height int
	I, J   int
	CRS    string
}

// Selection is the raw country choice of a viewer, already defaulted to the
// all sentinel when the client sent nothing.
type Selection string

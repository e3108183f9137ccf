package ogc

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// And joins the non-empty filters, each parenthesised. A single filter is
// returned unchanged.
func And(filters ...string) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	for i, p := range parts {
		parts[i] = "(" + p + ")"
	}
	return strings.Join(parts, " AND ")
}

// Intersects renders a CQL spatial predicate for geom in lon/lat order.
func Intersects(attr string, geom orb.Geometry) string {
	return fmt.Sprintf("INTERSECTS(%s, %s)", attr, wkt.MarshalString(geom))
}

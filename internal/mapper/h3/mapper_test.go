package h3mapper

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"
)

func TestCellForPoint_MatchesLibrary(t *testing.T) {
	m := New()
	p := orb.Point{-75.0152, -9.19}
	got, err := m.CellForPoint(p, 7)
	if err != nil {
		t.Fatalf("CellForPoint: %v", err)
	}
	want, err := h3.LatLngToCell(h3.LatLng{Lat: p.Lat(), Lng: p.Lon()}, 7)
	if err != nil {
		t.Fatal(err)
	}
	if got != want.String() {
		t.Fatalf("cell=%s want %s", got, want)
	}
}

func TestCellForPoint_Rejects(t *testing.T) {
	m := New()
	if _, err := m.CellForPoint(orb.Point{0, 0}, 16); err == nil {
		t.Fatal("res 16 must fail")
	}
	if _, err := m.CellForPoint(orb.Point{0, 0}, -1); err == nil {
		t.Fatal("res -1 must fail")
	}
	if _, err := m.CellForPoint(orb.Point{200, 0}, 7); err == nil {
		t.Fatal("lon out of range must fail")
	}
	if _, err := m.CellForPoint(orb.Point{0, 91}, 7); err == nil {
		t.Fatal("lat out of range must fail")
	}
}

func TestCellPolygon_ClosedAndContainsPoint(t *testing.T) {
	m := New()
	p := orb.Point{18.0686, 59.3293}
	cell, err := m.CellForPoint(p, 8)
	if err != nil {
		t.Fatal(err)
	}
	poly, err := m.CellPolygon(cell)
	if err != nil {
		t.Fatalf("CellPolygon: %v", err)
	}
	if len(poly) != 1 {
		t.Fatalf("rings=%d want 1", len(poly))
	}
	ring := poly[0]
	if !ring.Closed() {
		t.Fatal("ring must be closed")
	}
	if len(ring) < 7 {
		t.Fatalf("hexagon ring too short: %d", len(ring))
	}
	if !planar.PolygonContains(poly, p) {
		t.Fatal("cell polygon should contain the source point")
	}
}

func TestCellPolygon_InvalidCell(t *testing.T) {
	m := New()
	for _, c := range []string{"", "zz", "0"} {
		if _, err := m.CellPolygon(c); err == nil {
			t.Fatalf("cell %q should fail", c)
		}
	}
}

package h3mapper

import (
	"testing"

	h3 "github.com/uber/h3-go/v4"
)

func TestToParent(t *testing.T) {
	m := New()

	cell, err := h3.LatLngToCell(h3.LatLng{Lat: -1.2921, Lng: 36.8219}, 9)
	if err != nil {
		t.Fatalf("LatLngToCell: %v", err)
	}
	want, err := cell.Parent(7)
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.ToParent(cell.String(), 7)
	if err != nil {
		t.Fatalf("ToParent: %v", err)
	}
	if got != want.String() {
		t.Fatalf("parent=%s want %s", got, want)
	}

	same, err := m.ToParent(cell.String(), 9)
	if err != nil || same != cell.String() {
		t.Fatalf("same res: %s err=%v", same, err)
	}
}

func TestToParent_Errors(t *testing.T) {
	m := New()
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: 0, Lng: 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.ToParent(cell.String(), 6); err == nil {
		t.Fatal("finer parent must fail")
	}
	if _, err := m.ToParent("not-a-cell", 3); err == nil {
		t.Fatal("bad cell must fail")
	}
	if _, err := m.ToParent(cell.String(), 99); err == nil {
		t.Fatal("bad res must fail")
	}
}

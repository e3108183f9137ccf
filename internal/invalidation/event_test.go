package invalidation

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustTS() time.Time { return time.Date(2025, 10, 26, 12, 30, 45, 0, time.UTC) }

func validEvent() Event {
	return Event{
		Version: 3, Op: OpUpdate, Layer: "Cabinet_de_juristes:deals_", TS: mustTS(),
		DealID: "1042", Country: "Peru", Point: &Point{Lon: -75.01, Lat: -9.19},
	}
}

func TestEvent_Validate_HappyPaths(t *testing.T) {
	if err := validEvent().Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	ev := validEvent()
	ev.Point = nil
	ev.H3Cells = []string{"878e62d89ffffff"}
	if err := ev.Validate(); err != nil {
		t.Fatalf("cells only: %v", err)
	}
}

func TestEvent_Validate_Rejects(t *testing.T) {
	cases := map[string]func(*Event){
		"zero version":  func(e *Event) { e.Version = 0 },
		"bad op":        func(e *Event) { e.Op = "upsert" },
		"no layer":      func(e *Event) { e.Layer = "  " },
		"no ts":         func(e *Event) { e.TS = time.Time{} },
		"no location":   func(e *Event) { e.Point = nil },
		"lon range":     func(e *Event) { e.Point = &Point{Lon: 181} },
		"lat range":     func(e *Event) { e.Point = &Point{Lat: -91} },
		"nan":           func(e *Event) { e.Point = &Point{Lon: math.NaN()} },
		"empty h3 cell": func(e *Event) { e.H3Cells = []string{""} },
	}
	for name, mutate := range cases {
		ev := validEvent()
		mutate(&ev)
		if err := ev.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEvent_JSONWireFormat(t *testing.T) {
	raw := `{"version":7,"op":"delete","layer":"ws:deals_","deal_id":"9",
	  "country":"Brazil","point":{"lon":-47.9,"lat":-15.8},"ts":"2025-10-26T12:30:45Z"}`
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Event{
		Version: 7, Op: OpDelete, Layer: "ws:deals_", DealID: "9", Country: "Brazil",
		Point: &Point{Lon: -47.9, Lat: -15.8}, TS: mustTS(),
	}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Fatalf("decoded event mismatch (-want +got):\n%s", diff)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEvent_DedupeKeyAndCountries(t *testing.T) {
	ev := validEvent()
	if ev.DedupeKey() != "Cabinet_de_juristes:deals_#1042" {
		t.Fatalf("dedupe key=%q", ev.DedupeKey())
	}
	ev.DealID = ""
	if ev.DedupeKey() != "Cabinet_de_juristes:deals_" {
		t.Fatalf("layer-only dedupe key=%q", ev.DedupeKey())
	}

	ev.PreviousCountry = "Chile"
	if diff := cmp.Diff([]string{"Peru", "Chile"}, ev.Countries()); diff != "" {
		t.Fatalf("countries (-want +got):\n%s", diff)
	}
	ev.PreviousCountry = "Peru"
	if diff := cmp.Diff([]string{"Peru"}, ev.Countries()); diff != "" {
		t.Fatalf("countries dedupe (-want +got):\n%s", diff)
	}
	ev.Country, ev.PreviousCountry = "", ""
	if len(ev.Countries()) != 0 {
		t.Fatal("expected no countries")
	}
}

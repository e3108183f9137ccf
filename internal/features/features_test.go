package features

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

const dealsFixture = `{
  "type": "FeatureCollection",
  "features": [
    {"type":"Feature","id":"deals_.1","geometry":{"type":"Point","coordinates":[-75.0,-9.2]},
     "properties":{"id":1,"country":"Peru","community_consultation":"Not consulted","crops":"Soya"}},
    {"type":"Feature","id":"deals_.2","geometry":{"type":"Point","coordinates":[-47.9,-15.8]},
     "properties":{"id":2,"country":"Brazil","community_consultation":null}},
    {"type":"Feature","id":"deals_.3","geometry":{"type":"Point","coordinates":[36.8,-1.3]},
     "properties":{"id":3,"country":"Kenya","community_consultation":"Maybe"}},
    {"type":"Feature","id":"deals_.4","geometry":{"type":"Point","coordinates":[30.0,0.0]}}
  ]
}`

func TestDecorate_SetsColorAndClass(t *testing.T) {
	fc, err := DecodeCollection([]byte(dealsFixture))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	p := classify.DefaultPalette()
	counts := Decorate(fc, p, classify.DefaultMarkerAttribute)

	want := Counts{classify.KindKnown: 1, classify.KindUnspecified: 2, classify.KindUnrecognized: 1}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
	if counts.Total() != 4 {
		t.Fatalf("total=%d", counts.Total())
	}

	gotColors := make([]string, 0, len(fc.Features))
	gotClasses := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		gotColors = append(gotColors, f.Properties.MustString(PropMarkerColor))
		gotClasses = append(gotClasses, f.Properties.MustString(PropReactionClass))
	}
	fb := string(p.Fallback())
	if diff := cmp.Diff([]string{"#3fa244", fb, fb, fb}, gotColors); diff != "" {
		t.Fatalf("colors mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"known", "unspecified", "unrecognized", "unspecified"}, gotClasses); diff != "" {
		t.Fatalf("classes mismatch (-want +got):\n%s", diff)
	}
}

func TestDecorate_RoundTripKeepsProperties(t *testing.T) {
	fc, err := DecodeCollection([]byte(dealsFixture))
	if err != nil {
		t.Fatal(err)
	}
	Decorate(fc, classify.DefaultPalette(), classify.DefaultMarkerAttribute)
	b, err := Marshal(fc)
	if err != nil {
		t.Fatal(err)
	}
	again, err := DecodeCollection(b)
	if err != nil {
		t.Fatal(err)
	}
	if got := again.Features[0].Properties.MustString("country"); got != "Peru" {
		t.Fatalf("country=%q", got)
	}
	if got := again.Features[0].Properties.MustString(PropMarkerColor); got != "#3fa244" {
		t.Fatalf("marker_color=%q", got)
	}
}

func TestDecodeCollection_Rejects(t *testing.T) {
	for _, in := range []string{"", "  ", "<ServiceExceptionReport/>"} {
		if _, err := DecodeCollection([]byte(in)); !errors.Is(err, ErrNotGeoJSON) {
			t.Fatalf("input %q: err=%v want ErrNotGeoJSON", in, err)
		}
	}
}

func TestFirstProperties(t *testing.T) {
	props, ok, err := FirstProperties([]byte(dealsFixture))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if props["country"] != "Peru" {
		t.Fatalf("props=%v", props)
	}

	for _, in := range []string{
		`{"type":"FeatureCollection","features":[]}`,
		`{"type":"FeatureCollection","features":[null]}`,
	} {
		_, ok, err = FirstProperties([]byte(in))
		if err != nil || ok {
			t.Fatalf("%s: ok=%v err=%v", in, ok, err)
		}
	}
}

func TestSummarize(t *testing.T) {
	style := classify.DefaultStyle()
	got := Summarize(map[string]any{
		"id":                 float64(12),
		"crops":              "Oil palm",
		"community_reaction": "Free, Prior and Informed Consent (FPIC)",
	}, style)
	want := Summary{
		ID:            "12",
		Crops:         "Oil palm",
		Reaction:      "Free, Prior and Informed Consent (FPIC)",
		ReactionColor: "#d70e0e",
		ReactionClass: "known",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarize_MissingValues(t *testing.T) {
	style := classify.DefaultStyle()
	got := Summarize(map[string]any{}, style)
	ph := style.Formatter.Placeholder()
	want := Summary{
		ID:            ph,
		Crops:         style.UnspecifiedLabel,
		Reaction:      style.UnspecifiedLabel,
		ReactionColor: style.Palette.Fallback(),
		ReactionClass: "unspecified",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("summary mismatch (-want +got):\n%s", diff)
	}
}

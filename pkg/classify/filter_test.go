package classify

import "testing"

func TestBuild_AllSentinel(t *testing.T) {
	b := DefaultFilterBuilder()
	if got, ok := b.Build("all"); ok || got != "" {
		t.Fatalf("Build(all)=(%q,%v) want no filter", got, ok)
	}
}

func TestBuild_Equality(t *testing.T) {
	b := DefaultFilterBuilder()
	cases := map[string]string{
		"Brazil":        "country = 'Brazil'",
		"O'Brien":       "country = 'O''Brien'",
		"''":            "country = ''''''",
		"Côte d'Ivoire": "country = 'Côte d''Ivoire'",
		"a\\b;--":       "country = 'a\\b;--'",
		"All":           "country = 'All'",
		"":              "country = ''",
	}
	for in, want := range cases {
		got, ok := b.Build(in)
		if !ok || got != want {
			t.Fatalf("Build(%q)=(%q,%v) want (%q,true)", in, got, ok, want)
		}
	}
}

func TestBuild_CustomAttributeAndSentinel(t *testing.T) {
	b := FilterBuilder{Attribute: "pays", All: "tous"}
	if _, ok := b.Build("tous"); ok {
		t.Fatal("expected no filter for custom sentinel")
	}
	if got, _ := b.Build("all"); got != "pays = 'all'" {
		t.Fatalf("got %q", got)
	}
}

func TestEscape_OnlyQuotes(t *testing.T) {
	if got := Escape(`it's "quoted"` + "\n"); got != `it''s "quoted"`+"\n" {
		t.Fatalf("Escape=%q", got)
	}
	if Escape("x'y") != Escape("x'y") {
		t.Fatal("Escape not deterministic")
	}
}

package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

var keyAlphabet = regexp.MustCompile(`^[A-Za-z0-9:_=\-]+$`)

const layer = "Cabinet_de_juristes:deals_"

func TestCollectionKey_Deterministic(t *testing.T) {
	f := "(indigenous_people_or_local_communities=true) AND (country = 'Peru')"
	if CollectionKey(layer, f) != CollectionKey(layer, f) {
		t.Fatal("same inputs must give same key")
	}
}

func TestCollectionKey_SpacingVariantsShareKey(t *testing.T) {
	a := "  country  =   'Peru'  "
	b := "country='Peru'"
	ka, kb := CollectionKey(" "+layer+" ", a), CollectionKey(layer, b)
	if ka != kb {
		t.Fatalf("normalized keys differ:\n %s\n %s", ka, kb)
	}
	if !keyAlphabet.MatchString(ka) {
		t.Fatalf("disallowed characters: %s", ka)
	}
}

func TestKeys_DistinctCountriesDistinctKeys(t *testing.T) {
	if CollectionKey(layer, "country = 'Peru'") == CollectionKey(layer, "country = 'Chile'") {
		t.Fatal("different filters must produce different keys")
	}
	if CollectionKey(layer, "") == CollectionKey(layer, "country = 'Peru'") {
		t.Fatal("unfiltered and filtered must differ")
	}
}

func TestKeys_QuotedLiteralsKeptVerbatim(t *testing.T) {
	pairs := [][2]string{
		{"country = 'St. Kitts'", "country = 'St.Kitts'"},
		{"country = 'A  B'", "country = 'A B'"},
		{"country = 'a (b)'", "country = 'a(b)'"},
		{"country = 'O''Brien , x'", "country = 'O''Brien,x'"},
	}
	for _, p := range pairs {
		if CollectionKey(layer, p[0]) == CollectionKey(layer, p[1]) {
			t.Fatalf("%q and %q share a key", p[0], p[1])
		}
		if CellKey(layer, 7, "872a1072bffffff", p[0]) == CellKey(layer, 7, "872a1072bffffff", p[1]) {
			t.Fatalf("%q and %q share a cell key", p[0], p[1])
		}
	}
	if CollectionKey(layer, "(a=1)  AND  (country = 'A  B')") != CollectionKey(layer, "( a = 1 ) AND (country='A  B')") {
		t.Fatal("spacing outside literals must still normalize")
	}
}

func TestCellKey_Layout(t *testing.T) {
	k := CellKey(layer, 7, "872A1072BFFFFFF", "country = 'Peru'")
	if !strings.HasPrefix(k, layer+":7:872a1072bffffff:filters=") {
		t.Fatalf("unexpected layout: %s", k)
	}
	if !regexp.MustCompile(`:f=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing hash suffix: %s", k)
	}
	if CellKey(layer, 7, "872a1072bffffff", "") == CellKey(layer, 8, "872a1072bffffff", "") {
		t.Fatal("resolution must be part of the key")
	}
}

func TestKeys_UnicodeAndQuotes(t *testing.T) {
	k := CollectionKey(layer, "country = 'Côte d''Ivoire'")
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune %q leaked into %s", r, k)
		}
	}
	if !keyAlphabet.MatchString(k) {
		t.Fatalf("disallowed characters: %s", k)
	}
	if k == CollectionKey(layer, "country = 'Cote d''Ivoire'") {
		t.Fatal("hash must keep accented and plain spellings apart")
	}
}

func TestKeys_LongFilterTruncated(t *testing.T) {
	long := "country = '" + strings.Repeat("x", 500) + "'"
	k := CollectionKey(layer, long)
	if len(k) > len(layer)+len(":all:filters=")+maxFilterTextLen+len(":f=")+16 {
		t.Fatalf("key too long (%d): %s", len(k), k)
	}
}

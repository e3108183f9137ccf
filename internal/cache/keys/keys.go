// Package keys builds the Redis keys for cached GeoServer answers.
//
// Keys embed a readable, truncated copy of the CQL filter plus an xxhash of
// the normalized filter. Spacing outside quoted literals is normalized so
// equivalent spellings share a key; literal text is hashed verbatim.
package keys

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxFilterTextLen = 160

var punctSpace = regexp.MustCompile(`\s*([=<>!\.,\(\)])\s*`)

// CollectionKey addresses a whole filtered layer.
func CollectionKey(layer, cql string) string {
	return fmt.Sprintf("%s:all:%s", sanitize(strings.TrimSpace(layer), false), filterPart(cql))
}

// CellKey addresses the features of one H3 cell of a filtered layer.
func CellKey(layer string, res int, cell, cql string) string {
	return fmt.Sprintf("%s:%d:%s:%s",
		sanitize(strings.TrimSpace(layer), false), res, strings.ToLower(strings.TrimSpace(cell)), filterPart(cql))
}

func filterPart(cql string) string {
	norm := normalizeFilter(cql)
	safe := sanitize(norm, true)
	if len(safe) > maxFilterTextLen {
		safe = safe[:maxFilterTextLen]
	}
	return fmt.Sprintf("filters=%s:f=%016x", safe, xxhash.Sum64String(norm))
}

// normalizeFilter rewrites only the segments outside '...' literals. A
// doubled quote splits into an empty bare segment, so escapes survive.
func normalizeFilter(s string) string {
	parts := strings.Split(s, "'")
	for i := 0; i < len(parts); i += 2 {
		parts[i] = punctSpace.ReplaceAllString(collapseSpace(parts[i]), "$1")
	}
	return strings.TrimSpace(strings.Join(parts, "'"))
}

// sanitize keeps [A-Za-z0-9:_-] (and '=' when allowEq), maps whitespace
// runs to '_' and everything else to '-'.
func sanitize(s string, allowEq bool) string {
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isSpace(r):
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || (allowEq && r == '='):
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if isSpace(r) {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return b.String()
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r < unicode.MaxASCII && unicode.IsDigit(r))
}

package classify

import (
	"fmt"
	"strings"
)

// Color is a CSS hex color such as "#3fa244".
type Color string

// Unspecified is the legend sentinel for "no value". It classifies like an
// empty attribute.
const Unspecified = ""

type Category struct {
	Label string `json:"label" yaml:"label"`
	Color Color  `json:"color" yaml:"color"`
}

// Kind tells a known category apart from a missing or unrecognized value.
// Unspecified and Unrecognized share the fallback color.
type Kind int

const (
	KindKnown Kind = iota
	KindUnspecified
	KindUnrecognized
)

func (k Kind) String() string {
	switch k {
	case KindKnown:
		return "known"
	case KindUnspecified:
		return "unspecified"
	default:
		return "unrecognized"
	}
}

type Classification struct {
	Kind  Kind
	Label string // trimmed input
	Color Color
}

// Palette maps consultation statuses to marker colors. The zero Palette maps
// everything to an empty fallback color; use DefaultPalette or NewPalette.
type Palette struct {
	categories []Category
	index      map[string]Color
	fallback   Color
}

var defaultCategories = []Category{
	{Label: "Not consulted", Color: "#3fa244"},
	{Label: "Other", Color: "#fcc50d"},
	{Label: "Limited consultation", Color: "#ff8000"},
	{Label: "Free, Prior and Informed Consent (FPIC)", Color: "#d70e0e"},
}

const defaultFallback Color = "#d3d3d3"

func DefaultPalette() Palette {
	p, _ := NewPalette(defaultCategories, defaultFallback)
	return p
}

// NewPalette keeps categories in the given order. Labels are trimmed and must
// be unique and non-empty.
func NewPalette(categories []Category, fallback Color) (Palette, error) {
	p := Palette{
		categories: make([]Category, 0, len(categories)),
		index:      make(map[string]Color, len(categories)),
		fallback:   fallback,
	}
	for i, c := range categories {
		label := strings.TrimSpace(c.Label)
		if label == "" {
			return Palette{}, fmt.Errorf("category %d: empty label", i)
		}
		if _, dup := p.index[label]; dup {
			return Palette{}, fmt.Errorf("category %d: duplicate label %q", i, label)
		}
		p.index[label] = c.Color
		p.categories = append(p.categories, Category{Label: label, Color: c.Color})
	}
	return p, nil
}

// Categories returns a copy in legend order.
func (p Palette) Categories() []Category {
	out := make([]Category, len(p.categories))
	copy(out, p.categories)
	return out
}

func (p Palette) Fallback() Color { return p.fallback }

func (p Palette) Classify(value string) Classification {
	label := strings.TrimSpace(value)
	if label == "" {
		return Classification{Kind: KindUnspecified, Color: p.fallback}
	}
	if c, ok := p.index[label]; ok {
		return Classification{Kind: KindKnown, Label: label, Color: c}
	}
	return Classification{Kind: KindUnrecognized, Label: label, Color: p.fallback}
}

// ClassifyValue accepts raw GeoJSON property values; nil means unspecified.
func (p Palette) ClassifyValue(v any) Classification {
	switch t := v.(type) {
	case nil:
		return p.Classify("")
	case string:
		return p.Classify(t)
	case *string:
		if t == nil {
			return p.Classify("")
		}
		return p.Classify(*t)
	case fmt.Stringer:
		return p.Classify(t.String())
	default:
		return p.Classify(fmt.Sprint(t))
	}
}

// ColorFor never fails: unknown and missing values get the fallback color.
func (p Palette) ColorFor(value string) Color {
	return p.Classify(value).Color
}

func (p Palette) ColorForValue(v any) Color {
	return p.ClassifyValue(v).Color
}

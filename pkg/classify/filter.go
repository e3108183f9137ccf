package classify

import "strings"

const (
	DefaultFilterAttribute = "country"
	DefaultAllSelection    = "all"
)

// FilterBuilder turns a viewer selection into a CQL equality filter on one
// attribute.
type FilterBuilder struct {
	Attribute string
	All       string
}

func DefaultFilterBuilder() FilterBuilder {
	return FilterBuilder{Attribute: DefaultFilterAttribute, All: DefaultAllSelection}
}

// Build reports false for the all sentinel; the caller must then omit the
// filter parameter entirely.
func (b FilterBuilder) Build(selection string) (string, bool) {
	if selection == b.All {
		return "", false
	}
	return b.Attribute + " = '" + Escape(selection) + "'", true
}

// Escape doubles single quotes, the CQL rule for a quote inside a string
// literal. Nothing else is touched.
func Escape(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

package classify

const (
	DefaultUnspecifiedLabel  = "Not specified"
	DefaultMarkerAttribute   = "community_consultation"
	DefaultReactionAttribute = "community_reaction"
)

// Style bundles the static configuration of a viewer.
type Style struct {
	Palette   Palette
	Formatter Formatter
	Filter    FilterBuilder

	// UnspecifiedLabel replaces the Unspecified sentinel in legends and popups.
	UnspecifiedLabel string
	// MarkerAttribute colors the deal markers.
	MarkerAttribute string
	// ReactionAttribute is shown with its color in the deal popup.
	ReactionAttribute string
}

func DefaultStyle() Style {
	return Style{
		Palette:           DefaultPalette(),
		Formatter:         DefaultFormatter(),
		Filter:            DefaultFilterBuilder(),
		UnspecifiedLabel:  DefaultUnspecifiedLabel,
		MarkerAttribute:   DefaultMarkerAttribute,
		ReactionAttribute: DefaultReactionAttribute,
	}
}

func (s Style) Legend() []LegendEntry {
	return s.Palette.Legend(s.UnspecifiedLabel)
}

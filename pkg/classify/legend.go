package classify

type LegendEntry struct {
	Label string `json:"label"`
	Color Color  `json:"color"`
}

// LegendFor keeps the order of labels. The Unspecified sentinel is shown as
// placeholder.
func (p Palette) LegendFor(labels []string, placeholder string) []LegendEntry {
	out := make([]LegendEntry, 0, len(labels))
	for _, l := range labels {
		text := l
		if l == Unspecified {
			text = placeholder
		}
		out = append(out, LegendEntry{Label: text, Color: p.ColorFor(l)})
	}
	return out
}

// Legend lists the palette categories followed by the unspecified entry.
func (p Palette) Legend(placeholder string) []LegendEntry {
	labels := make([]string, 0, len(p.categories)+1)
	for _, c := range p.categories {
		labels = append(labels, c.Label)
	}
	labels = append(labels, Unspecified)
	return p.LegendFor(labels, placeholder)
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/dealmap/pkg/classify"
)

// StyleFile is the YAML form of classify.Style. Omitted sections keep the
// built-in defaults.
type StyleFile struct {
	Reaction struct {
		Attribute        string              `yaml:"attribute"`
		PopupAttribute   string              `yaml:"popup_attribute"`
		Fallback         string              `yaml:"fallback"`
		UnspecifiedLabel string              `yaml:"unspecified_label"`
		Categories       []classify.Category `yaml:"categories"`
	} `yaml:"reaction"`
	Attributes struct {
		Placeholder string           `yaml:"placeholder"`
		TrueText    string           `yaml:"true_text"`
		FalseText   string           `yaml:"false_text"`
		Fields      []classify.Field `yaml:"fields"`
	} `yaml:"attributes"`
	Filter struct {
		Attribute string `yaml:"attribute"`
		All       string `yaml:"all"`
	} `yaml:"filter"`
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// LoadStyle returns the default style when path is empty.
func LoadStyle(path string) (classify.Style, error) {
	if strings.TrimSpace(path) == "" {
		return classify.DefaultStyle(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return classify.Style{}, fmt.Errorf("read style file: %w", err)
	}
	st, err := ParseStyle(b)
	if err != nil {
		return classify.Style{}, fmt.Errorf("style file %s: %w", path, err)
	}
	return st, nil
}

func ParseStyle(b []byte) (classify.Style, error) {
	var sf StyleFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return classify.Style{}, fmt.Errorf("parse yaml: %w", err)
	}
	return sf.Style()
}

func (sf StyleFile) Style() (classify.Style, error) {
	st := classify.DefaultStyle()

	r := sf.Reaction
	if len(r.Categories) > 0 || r.Fallback != "" {
		cats := r.Categories
		if len(cats) == 0 {
			cats = st.Palette.Categories()
		}
		fallback := classify.Color(r.Fallback)
		if fallback == "" {
			fallback = st.Palette.Fallback()
		}
		if !hexColor.MatchString(string(fallback)) {
			return classify.Style{}, fmt.Errorf("reaction.fallback: invalid color %q", fallback)
		}
		for i, c := range cats {
			if !hexColor.MatchString(string(c.Color)) {
				return classify.Style{}, fmt.Errorf("reaction.categories[%d]: invalid color %q", i, c.Color)
			}
		}
		p, err := classify.NewPalette(cats, fallback)
		if err != nil {
			return classify.Style{}, fmt.Errorf("reaction.categories: %w", err)
		}
		st.Palette = p
	}
	if r.Attribute != "" {
		st.MarkerAttribute = r.Attribute
	}
	if r.PopupAttribute != "" {
		st.ReactionAttribute = r.PopupAttribute
	}
	if r.UnspecifiedLabel != "" {
		st.UnspecifiedLabel = r.UnspecifiedLabel
	}

	a := sf.Attributes
	fields := st.Formatter.Fields()
	if len(a.Fields) > 0 {
		seen := make(map[string]struct{}, len(a.Fields))
		for i, f := range a.Fields {
			if strings.TrimSpace(f.Key) == "" {
				return classify.Style{}, fmt.Errorf("attributes.fields[%d]: empty key", i)
			}
			if _, dup := seen[f.Key]; dup {
				return classify.Style{}, fmt.Errorf("attributes.fields[%d]: duplicate key %q", i, f.Key)
			}
			seen[f.Key] = struct{}{}
		}
		fields = a.Fields
	}
	st.Formatter = classify.NewFormatter(fields, a.Placeholder, a.TrueText, a.FalseText)

	if sf.Filter.Attribute != "" {
		st.Filter.Attribute = sf.Filter.Attribute
	}
	if sf.Filter.All != "" {
		st.Filter.All = sf.Filter.All
	}
	return st, nil
}

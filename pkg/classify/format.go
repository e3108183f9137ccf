package classify

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	DefaultPlaceholder = "—"
	DefaultTrueText    = "Yes"
	DefaultFalseText   = "No"
)

type Field struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
}

type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

var defaultFields = []Field{
	{Key: "id", Label: "Contract ID"},
	{Key: "surface_ha", Label: "Area (ha)"},
	{Key: "country", Label: "Country"},
	{Key: "negatives", Label: "Negatives"},
	{Key: "negative_impacts_for_local_communities", Label: "Negative impacts (communities)"},
	{Key: "impact_environmental_degradation", Label: "Environmental degradation"},
	{Key: "impact_socio_economic", Label: "Socio-economic impact"},
	{Key: "impact_cultural_loss", Label: "Cultural loss"},
	{Key: "impact_displacement", Label: "Displacement"},
	{Key: "impact_eviction", Label: "Eviction"},
	{Key: "impact_violence", Label: "Violence"},
	{Key: "impact_other", Label: "Other impact"},
}

// DefaultFields returns the attribute panel of the deals layer.
func DefaultFields() []Field {
	out := make([]Field, len(defaultFields))
	copy(out, defaultFields)
	return out
}

// Formatter renders feature properties as display rows.
type Formatter struct {
	fields      []Field
	placeholder string
	trueText    string
	falseText   string
}

// NewFormatter copies fields. Empty texts fall back to the defaults.
func NewFormatter(fields []Field, placeholder, trueText, falseText string) Formatter {
	f := Formatter{
		fields:      make([]Field, len(fields)),
		placeholder: placeholder,
		trueText:    trueText,
		falseText:   falseText,
	}
	copy(f.fields, fields)
	if f.placeholder == "" {
		f.placeholder = DefaultPlaceholder
	}
	if f.trueText == "" {
		f.trueText = DefaultTrueText
	}
	if f.falseText == "" {
		f.falseText = DefaultFalseText
	}
	return f
}

func DefaultFormatter() Formatter {
	return NewFormatter(defaultFields, "", "", "")
}

func (f Formatter) Fields() []Field {
	out := make([]Field, len(f.fields))
	copy(out, f.fields)
	return out
}

func (f Formatter) Placeholder() string { return f.placeholder }

// RenderRows yields one row per field, in field order. Missing keys render as
// the placeholder and unlisted keys are ignored.
func (f Formatter) RenderRows(props map[string]any) []Row {
	rows := make([]Row, 0, len(f.fields))
	for _, fd := range f.fields {
		rows = append(rows, Row{Label: fd.Label, Value: f.Format(props[fd.Key])})
	}
	return rows
}

func (f Formatter) Format(v any) string {
	switch t := v.(type) {
	case nil:
		return f.placeholder
	case bool:
		if t {
			return f.trueText
		}
		return f.falseText
	case *bool:
		if t == nil {
			return f.placeholder
		}
		return f.Format(*t)
	case string:
		if t == "" {
			return f.placeholder
		}
		return t
	case *string:
		if t == nil {
			return f.placeholder
		}
		return f.Format(*t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	default:
		return fmt.Sprint(t)
	}
}

// RenderRows uses the default texts.
func RenderRows(fields []Field, props map[string]any) []Row {
	return NewFormatter(fields, "", "", "").RenderRows(props)
}

func FormatValue(v any) string {
	return DefaultFormatter().Format(v)
}

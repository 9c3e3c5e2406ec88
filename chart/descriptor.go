// Package chart models the charts a report document instantiated at load
// time: normalized descriptors, the edit operations the operator applies to
// them, the registry that reads and writes live chart objects through the
// sandbox runtime, and the rewriting of constructor scripts on export.
package chart

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrIndex is returned for a row or dataset index out of range.
	ErrIndex = errors.New("chart: index out of range")
	// ErrType is returned for a chart type outside Types.
	ErrType = errors.New("chart: unsupported chart type")
	// ErrNotFound is returned when no live chart carries the id.
	ErrNotFound = errors.New("chart: not found")
)

// Type is a Chart.js chart type.
type Type string

const (
	Bar       Type = "bar"
	Line      Type = "line"
	Pie       Type = "pie"
	Doughnut  Type = "doughnut"
	Radar     Type = "radar"
	PolarArea Type = "polarArea"
)

// Types lists the editable chart types.
var Types = []Type{Bar, Line, Pie, Doughnut, Radar, PolarArea}

// Valid reports whether t is one of Types.
func (t Type) Valid() bool {
	for _, v := range Types {
		if t == v {
			return true
		}
	}
	return false
}

// ParseType validates s as a chart type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrType, s)
	}
	return t, nil
}

// Palette is cycled through when datasets or rows are added.
var Palette = []string{"#3b82f6", "#ef4444", "#22c55e", "#f59e0b", "#8b5cf6", "#ec4899"}

// Descriptor is the normalized, editable view of one chart.
type Descriptor struct {
	ID       string    `json:"id"`
	Type     Type      `json:"type"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
	Title    string    `json:"title,omitempty"`
}

// Dataset is one data series.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor Color     `json:"backgroundColor"`
	BorderColor     Color     `json:"borderColor"`
}

// Color is either one CSS color or one color per data point. The zero
// value means "leave the chart's color alone".
type Color struct {
	Single string
	List   []string
}

// Solid returns a single-valued Color.
func Solid(c string) Color { return Color{Single: c} }

// IsZero reports whether no color is set.
func (c Color) IsZero() bool { return c.Single == "" && c.List == nil }

func (c Color) MarshalJSON() ([]byte, error) {
	switch {
	case c.List != nil:
		return json.Marshal(c.List)
	case c.Single != "":
		return json.Marshal(c.Single)
	}
	return []byte("null"), nil
}

func (c *Color) UnmarshalJSON(b []byte) error {
	*c = Color{}
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var raw []*string
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("chart: color list: %w", err)
		}
		c.List = make([]string, len(raw))
		for i, s := range raw {
			if s != nil {
				c.List[i] = *s
			}
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		// Gradients and scriptable colors have no editable form.
		return nil
	}
	c.Single = s
	return nil
}

// Normalize returns a deep copy of d in which every dataset holds exactly
// one value per label: short datasets are padded with zeros, long ones
// truncated.
func Normalize(d Descriptor) Descriptor {
	out := d.clone()
	n := len(out.Labels)
	for i := range out.Datasets {
		data := out.Datasets[i].Data
		switch {
		case len(data) > n:
			data = data[:n]
		case len(data) < n:
			data = append(data, make([]float64, n-len(data))...)
		}
		out.Datasets[i].Data = data
	}
	return out
}

// Consistent reports whether every dataset length equals the label count.
func (d Descriptor) Consistent() bool {
	for _, ds := range d.Datasets {
		if len(ds.Data) != len(d.Labels) {
			return false
		}
	}
	return true
}

func (d Descriptor) clone() Descriptor {
	out := d
	out.Labels = append([]string{}, d.Labels...)
	out.Datasets = make([]Dataset, len(d.Datasets))
	for i, ds := range d.Datasets {
		ds.Data = append([]float64{}, ds.Data...)
		ds.BackgroundColor = ds.BackgroundColor.clone()
		ds.BorderColor = ds.BorderColor.clone()
		out.Datasets[i] = ds
	}
	return out
}

func (c Color) clone() Color {
	if c.List != nil {
		c.List = append([]string{}, c.List...)
	}
	return c
}

package chart

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Config is a chart's serialized construction config, the second argument
// of `new Chart(surface, config)`.
type Config struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
	Options json.RawMessage `json:"options,omitempty"`
}

// LiveConfig is the current config of a live chart.
type LiveConfig struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	CanvasID string `json:"canvas_id"`
	Config   Config `json:"config"`
}

// DescriptorFromConfig reads a Descriptor back from a static config. Values
// may be numbers, numeric strings or {x, y} points.
func DescriptorFromConfig(id string, cfg Config) (Descriptor, error) {
	var data struct {
		Labels   []flexString `json:"labels"`
		Datasets []struct {
			Label           flexString   `json:"label"`
			Data            []flexNumber `json:"data"`
			BackgroundColor Color        `json:"backgroundColor"`
			BorderColor     Color        `json:"borderColor"`
		} `json:"datasets"`
	}
	if len(cfg.Data) > 0 {
		if err := json.Unmarshal(cfg.Data, &data); err != nil {
			return Descriptor{}, fmt.Errorf("chart: decode config data: %w", err)
		}
	}

	d := Descriptor{ID: id, Type: Type(cfg.Type)}
	d.Labels = make([]string, len(data.Labels))
	for i, l := range data.Labels {
		d.Labels[i] = string(l)
	}
	for _, ds := range data.Datasets {
		values := make([]float64, len(ds.Data))
		for i, v := range ds.Data {
			values[i] = float64(v)
		}
		d.Datasets = append(d.Datasets, Dataset{
			Label:           string(ds.Label),
			Data:            values,
			BackgroundColor: ds.BackgroundColor,
			BorderColor:     ds.BorderColor,
		})
	}

	if len(cfg.Options) > 0 {
		var opts struct {
			Plugins struct {
				Title struct {
					Text flexString `json:"text"`
				} `json:"title"`
			} `json:"plugins"`
		}
		if err := json.Unmarshal(cfg.Options, &opts); err == nil {
			d.Title = string(opts.Plugins.Title.Text)
		}
	}
	return Normalize(d), nil
}

// flexNumber decodes a Chart.js data point into a float.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	*f = 0
	switch {
	case len(b) == 0 || string(b) == "null":
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, _ := strconv.ParseFloat(s, 64)
		*f = flexNumber(v)
	case b[0] == '{':
		var p struct {
			Y flexNumber `json:"y"`
		}
		if err := json.Unmarshal(b, &p); err != nil {
			return err
		}
		*f = p.Y
	default:
		var v float64
		if err := json.Unmarshal(b, &v); err != nil {
			return nil
		}
		*f = flexNumber(v)
	}
	return nil
}

// flexString decodes a label that may be a string, a number or a
// multi-line array.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = ""
	switch {
	case len(b) == 0 || string(b) == "null":
		return nil
	case b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
	case b[0] == '[':
		var parts []flexString
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		out := ""
		for i, p := range parts {
			if i > 0 {
				out += " "
			}
			out += string(p)
		}
		*s = flexString(out)
	default:
		*s = flexString(b)
	}
	return nil
}

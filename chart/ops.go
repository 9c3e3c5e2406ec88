package chart

import "fmt"

// AddRow appends a label and one zero value to every dataset. Datasets
// colored per point get the next palette color.
func (d *Descriptor) AddRow() {
	n := len(d.Labels)
	d.Labels = append(d.Labels, fmt.Sprintf("Label %d", n+1))
	for i := range d.Datasets {
		ds := &d.Datasets[i]
		ds.Data = append(ds.Data, 0)
		for _, c := range []*Color{&ds.BackgroundColor, &ds.BorderColor} {
			if c.List != nil {
				c.List = append(c.List, Palette[len(c.List)%len(Palette)])
			}
		}
	}
}

// RemoveRow removes index i from the labels and from every dataset in one
// step. Datasets shorter than i+1 are left as they are.
func (d *Descriptor) RemoveRow(i int) error {
	if i < 0 || i >= len(d.Labels) {
		return fmt.Errorf("%w: row %d of %d", ErrIndex, i, len(d.Labels))
	}
	d.Labels = removeAt(d.Labels, i)
	for k := range d.Datasets {
		ds := &d.Datasets[k]
		if i < len(ds.Data) {
			ds.Data = removeAt(ds.Data, i)
		}
		for _, c := range []*Color{&ds.BackgroundColor, &ds.BorderColor} {
			if i < len(c.List) {
				c.List = removeAt(c.List, i)
			}
		}
	}
	return nil
}

// AddDataset appends a zero-filled dataset colored from the palette at
// position len(Datasets) mod len(Palette).
func (d *Descriptor) AddDataset() {
	n := len(d.Datasets)
	color := Palette[n%len(Palette)]
	d.Datasets = append(d.Datasets, Dataset{
		Label:           fmt.Sprintf("Dataset %d", n+1),
		Data:            make([]float64, len(d.Labels)),
		BackgroundColor: Solid(color),
		BorderColor:     Solid(color),
	})
}

// RemoveDataset removes dataset i.
func (d *Descriptor) RemoveDataset(i int) error {
	if i < 0 || i >= len(d.Datasets) {
		return fmt.Errorf("%w: dataset %d of %d", ErrIndex, i, len(d.Datasets))
	}
	d.Datasets = removeAt(d.Datasets, i)
	return nil
}

// SetLabel renames row i.
func (d *Descriptor) SetLabel(i int, label string) error {
	if i < 0 || i >= len(d.Labels) {
		return fmt.Errorf("%w: row %d of %d", ErrIndex, i, len(d.Labels))
	}
	d.Labels[i] = label
	return nil
}

// SetValue sets the value of row i in dataset ds.
func (d *Descriptor) SetValue(ds, i int, v float64) error {
	if ds < 0 || ds >= len(d.Datasets) {
		return fmt.Errorf("%w: dataset %d of %d", ErrIndex, ds, len(d.Datasets))
	}
	if i < 0 || i >= len(d.Labels) {
		return fmt.Errorf("%w: row %d of %d", ErrIndex, i, len(d.Labels))
	}
	data := d.Datasets[ds].Data
	if len(data) < len(d.Labels) {
		data = append(data, make([]float64, len(d.Labels)-len(data))...)
	}
	data[i] = v
	d.Datasets[ds].Data = data
	return nil
}

// SetDatasetLabel renames dataset ds.
func (d *Descriptor) SetDatasetLabel(ds int, label string) error {
	if ds < 0 || ds >= len(d.Datasets) {
		return fmt.Errorf("%w: dataset %d of %d", ErrIndex, ds, len(d.Datasets))
	}
	d.Datasets[ds].Label = label
	return nil
}

// SetColor sets fill and outline of dataset ds to the same color.
func (d *Descriptor) SetColor(ds int, color string) error {
	if ds < 0 || ds >= len(d.Datasets) {
		return fmt.Errorf("%w: dataset %d of %d", ErrIndex, ds, len(d.Datasets))
	}
	d.Datasets[ds].BackgroundColor = Solid(color)
	d.Datasets[ds].BorderColor = Solid(color)
	return nil
}

// SetType changes the chart type.
func (d *Descriptor) SetType(t string) error {
	typ, err := ParseType(t)
	if err != nil {
		return err
	}
	d.Type = typ
	return nil
}

// SetTitle sets the chart title.
func (d *Descriptor) SetTitle(title string) {
	d.Title = title
}

// Op kinds accepted by Apply.
const (
	OpAddRow          = "add_row"
	OpRemoveRow       = "remove_row"
	OpAddDataset      = "add_dataset"
	OpRemoveDataset   = "remove_dataset"
	OpSetLabel        = "set_label"
	OpSetValue        = "set_value"
	OpSetDatasetLabel = "set_dataset_label"
	OpSetColor        = "set_color"
	OpSetType         = "set_type"
	OpSetTitle        = "set_title"
)

// Op is one serialized edit, as sent by the HTTP and MCP surfaces.
type Op struct {
	Kind    string  `json:"op"`
	Row     int     `json:"row,omitempty"`
	Dataset int     `json:"dataset,omitempty"`
	Value   float64 `json:"value,omitempty"`
	Text    string  `json:"text,omitempty"`
}

// Apply runs op against d.
func Apply(d *Descriptor, op Op) error {
	switch op.Kind {
	case OpAddRow:
		d.AddRow()
	case OpRemoveRow:
		return d.RemoveRow(op.Row)
	case OpAddDataset:
		d.AddDataset()
	case OpRemoveDataset:
		return d.RemoveDataset(op.Dataset)
	case OpSetLabel:
		return d.SetLabel(op.Row, op.Text)
	case OpSetValue:
		return d.SetValue(op.Dataset, op.Row, op.Value)
	case OpSetDatasetLabel:
		return d.SetDatasetLabel(op.Dataset, op.Text)
	case OpSetColor:
		return d.SetColor(op.Dataset, op.Text)
	case OpSetType:
		return d.SetType(op.Text)
	case OpSetTitle:
		d.SetTitle(op.Text)
	default:
		return fmt.Errorf("chart: unknown op %q", op.Kind)
	}
	return nil
}

func removeAt[T any](s []T, i int) []T {
	out := make([]T, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

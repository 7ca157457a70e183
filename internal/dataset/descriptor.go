package dataset

import (
	"maps"
	"slices"
)

// VariableDescriptor describes a variable without holding its data.
type VariableDescriptor struct {
	Name  string         `json:"name"`
	DType string         `json:"dtype"`
	Dims  []string       `json:"dims"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Descriptor describes what opening a data id will return.
type Descriptor struct {
	DataID     string                        `json:"data_id"`
	CRS        string                        `json:"crs"`
	BBox       [4]float64                    `json:"bbox"`
	SpatialRes float64                       `json:"spatial_res"`
	TimeRange  [2]*string                    `json:"time_range"`
	TimePeriod string                        `json:"time_period"`
	Dims       map[string]int                `json:"dims,omitempty"`
	Coords     map[string]VariableDescriptor `json:"coords"`
	DataVars   map[string]VariableDescriptor `json:"data_vars"`
	Attrs      map[string]any                `json:"attrs,omitempty"`
	// OpenParamsSchema is the JSON schema of the open parameters.
	OpenParamsSchema any `json:"open_params_schema,omitempty"`
}

// DataVarNames returns the sorted data variable names.
func (d *Descriptor) DataVarNames() []string {
	return sortedKeys(d.DataVars)
}

// CoordNames returns the sorted coordinate names.
func (d *Descriptor) CoordNames() []string {
	return sortedKeys(d.Coords)
}

// RenameDataVar renames a data variable.
func (d *Descriptor) RenameDataVar(oldName, newName string) {
	vd, ok := d.DataVars[oldName]
	if !ok || oldName == newName {
		return
	}
	delete(d.DataVars, oldName)
	vd.Name = newName
	d.DataVars[newName] = vd
}

func sortedKeys(m map[string]VariableDescriptor) []string {
	return slices.Sorted(maps.Keys(m))
}

package dataset

import "fmt"

// Concat joins datasets along dim. Variables lacking dim are taken from the
// first dataset; every dataset must contain the variables of the first one
// that have dim.
func Concat(dim string, parts ...*Dataset) (*Dataset, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("nothing to concatenate")
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	first := parts[0]
	out := New()
	out.Attrs = copyAttrs(first.Attrs)
	for _, v := range first.coords {
		c, err := concatVar(v, dim, parts, (*Dataset).Coord)
		if err != nil {
			return nil, err
		}
		out.AddCoord(c)
	}
	for _, v := range first.dataVars {
		c, err := concatVar(v, dim, parts, (*Dataset).DataVar)
		if err != nil {
			return nil, err
		}
		out.AddDataVar(c)
	}
	return out, nil
}

func concatVar(v *Variable, dim string, parts []*Dataset, lookup func(*Dataset, string) (*Variable, bool)) (*Variable, error) {
	if v.Axis(dim) != 0 {
		return v.Clone(), nil
	}
	c := v.Clone()
	for _, p := range parts[1:] {
		pv, ok := lookup(p, v.Name)
		if !ok {
			return nil, fmt.Errorf("variable %q missing from a part", v.Name)
		}
		if len(pv.Shape) != len(c.Shape) || pv.Axis(dim) != 0 {
			return nil, fmt.Errorf("variable %q has dims %v in one part and %v in another", v.Name, v.Dims, pv.Dims)
		}
		for i := 1; i < len(c.Shape); i++ {
			if pv.Shape[i] != c.Shape[i] {
				return nil, fmt.Errorf("variable %q: dimension %q differs between parts", v.Name, c.Dims[i])
			}
		}
		c.Data = append(c.Data, pv.Data...)
		c.Shape[0] += pv.Shape[0]
	}
	return c, nil
}

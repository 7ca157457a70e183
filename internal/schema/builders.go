package schema

// Object returns an object schema that rejects unknown properties.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Type:                 "object",
		Properties:           props,
		AdditionalProperties: Bool(false),
		Required:             required,
	}
}

// String returns a string schema.
func String() *Schema {
	return &Schema{Type: "string"}
}

// NullableString returns a schema accepting a string or null.
func NullableString() *Schema {
	return &Schema{Type: []string{"string", "null"}}
}

// Number returns a number schema bounded by lo and hi.
func Number(lo, hi float64) *Schema {
	return &Schema{Type: "number", Minimum: Float(lo), Maximum: Float(hi)}
}

// Integer returns an integer schema bounded by lo and hi.
func Integer(lo, hi float64) *Schema {
	return &Schema{Type: "integer", Minimum: Float(lo), Maximum: Float(hi)}
}

// Array returns an array schema whose elements all match items.
func Array(items *Schema) *Schema {
	return &Schema{Type: "array", Items: items}
}

// Tuple returns an array schema with exactly one element per item schema.
func Tuple(items ...*Schema) *Schema {
	return &Schema{
		Type:     "array",
		Items:    items,
		MinItems: Int(len(items)),
		MaxItems: Int(len(items)),
	}
}

// WithDefault sets the default value and returns s.
func (s *Schema) WithDefault(v any) *Schema {
	s.Default = v
	return s
}

// WithEnum sets the allowed values and returns s.
func (s *Schema) WithEnum(values ...any) *Schema {
	s.Enum = values
	return s
}

// WithTitle sets the title and returns s.
func (s *Schema) WithTitle(title string) *Schema {
	s.Title = title
	return s
}

// Strings converts a string slice into enum values.
func Strings(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// Float returns a pointer to f.
func Float(f float64) *float64 { return &f }

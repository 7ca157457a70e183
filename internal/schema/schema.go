// Package schema describes and validates open parameters with JSON Schema
// (draft 7).
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid is matched by every ValidationError.
var ErrInvalid = errors.New("invalid parameters")

// ValidationError lists the reasons parameters were rejected.
type ValidationError struct {
	Errors []string
}

// NewValidationError creates a ValidationError with a single reason.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Errors: []string{fmt.Sprintf(format, args...)}}
}

func (e *ValidationError) Error() string {
	return ErrInvalid.Error() + ": " + strings.Join(e.Errors, "; ")
}

// Is reports whether target is ErrInvalid.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

// Schema is a JSON Schema node. MinDate and MaxDate are extension keywords
// bounding date strings; they are checked by Validate, not by the JSON
// Schema validator.
type Schema struct {
	Type                 any                `json:"type,omitempty"`
	Title                string             `json:"title,omitempty"`
	Description          string             `json:"description,omitempty"`
	Format               string             `json:"format,omitempty"`
	Default              any                `json:"default,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Minimum              *float64           `json:"minimum,omitempty"`
	Maximum              *float64           `json:"maximum,omitempty"`
	MinLength            *int               `json:"minLength,omitempty"`
	MinItems             *int               `json:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty"`
	UniqueItems          bool               `json:"uniqueItems,omitempty"`
	Items                any                `json:"items,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	MinDate              string             `json:"minDate,omitempty"`
	MaxDate              string             `json:"maxDate,omitempty"`
}

// ToMap returns the schema as generic JSON values.
func (s *Schema) ToMap() map[string]any {
	b, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("schema cannot be marshalled: %v", err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(fmt.Sprintf("schema cannot be unmarshalled: %v", err))
	}
	return m
}

// Validate checks params against the schema.
func (s *Schema) Validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(s), gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		verr := &ValidationError{}
		for _, desc := range result.Errors() {
			verr.Errors = append(verr.Errors, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return verr
	}
	return s.checkDates(params)
}

// checkDates enforces minDate and maxDate on top-level properties and on
// tuple items of array properties.
func (s *Schema) checkDates(params map[string]any) error {
	verr := &ValidationError{}
	for name, prop := range s.Properties {
		val, ok := params[name]
		if !ok {
			continue
		}
		check := func(field string, ps *Schema, v any) {
			str, ok := v.(string)
			if !ok || len(str) < len("2006-01-02") {
				return
			}
			date := str[:len("2006-01-02")]
			if ps.MinDate != "" && date < ps.MinDate {
				verr.Errors = append(verr.Errors, fmt.Sprintf("%s: %s is before %s", field, str, ps.MinDate))
			}
			if ps.MaxDate != "" && date > ps.MaxDate {
				verr.Errors = append(verr.Errors, fmt.Sprintf("%s: %s is after %s", field, str, ps.MaxDate))
			}
		}
		check(name, prop, val)
		items, ok := prop.Items.([]*Schema)
		if !ok {
			continue
		}
		list, ok := val.([]any)
		if !ok {
			if strs, isStrs := val.([]string); isStrs {
				for _, str := range strs {
					list = append(list, str)
				}
			}
		}
		for i, v := range list {
			if i < len(items) {
				check(fmt.Sprintf("%s.%d", name, i), items[i], v)
			}
		}
	}
	if len(verr.Errors) > 0 {
		return verr
	}
	return nil
}

// ApplyDefaults returns a copy of params in which every absent top-level
// property with a default is set to that default.
func (s *Schema) ApplyDefaults(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+len(s.Properties))
	for k, v := range params {
		out[k] = v
	}
	for name, prop := range s.Properties {
		if _, ok := out[name]; ok || prop.Default == nil {
			continue
		}
		out[name] = copyValue(prop.Default)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case []any:
		c := make([]any, len(t))
		for i, x := range t {
			c[i] = copyValue(x)
		}
		return c
	case []string:
		return append([]string(nil), t...)
	case []float64:
		return append([]float64(nil), t...)
	case []int:
		return append([]int(nil), t...)
	}
	return v
}

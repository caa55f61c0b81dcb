// Package validation checks API payloads against embedded JSON schemas.
package validation

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaApplicationSubmit = "application_submit"
	SchemaApplicationPatch  = "application_patch"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Validator holds compiled schemas keyed by name.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles every embedded schema once.
func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}

	v := &Validator{schemas: make(map[string]*gojsonschema.Schema, len(entries))}
	for _, entry := range entries {
		raw, err := schemaFS.ReadFile("schemas/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		v.schemas[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return v, nil
}

// Validate returns one error per violated constraint, sorted by field.
// A nil slice means the document is valid.
func (v *Validator) Validate(schemaName string, document interface{}) ([]ValidationError, error) {
	schema, ok := v.schemas[schemaName]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", schemaName, err)
	}
	if result.Valid() {
		return nil, nil
	}

	out := make([]ValidationError, 0, len(result.Errors()))
	for _, re := range result.Errors() {
		field := re.Field()
		if field == "(root)" {
			if prop, ok := re.Details()["property"].(string); ok {
				field = prop
			}
		}
		out = append(out, ValidationError{
			Field:   field,
			Message: re.Description(),
			Code:    strings.ToUpper(re.Type()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out, nil
}

// Summary flattens errors into a single human readable line.
func Summary(errs []ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(parts, "; ")
}

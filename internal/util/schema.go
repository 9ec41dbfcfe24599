package util

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Value   any    `json:"value"`   // Value that was provided
	Message string `json:"message"` // Human-readable error message
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// CreateSchema derives a minimal JSON schema from a struct using reflection.
// Field names come from `json` tags (falling back to `mapstructure`, then the
// Go name). Non-pointer fields without omitempty are required.
func CreateSchema(structType any) map[string]any {
	t := reflect.TypeOf(structType)
	if t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	properties := make(map[string]any)
	if t == nil || t.Kind() != reflect.Struct {
		return map[string]any{"type": "object", "properties": properties}
	}

	var required []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		if tag == "" {
			tag = field.Tag.Get("mapstructure")
		}
		if tag == "-" {
			continue
		}

		name := field.Name
		if n, _, _ := strings.Cut(tag, ","); n != "" {
			name = n
		}

		fieldSchema := map[string]any{"type": jsonType(field.Type)}
		if description := field.Tag.Get("description"); description != "" {
			fieldSchema["description"] = description
		}
		properties[name] = fieldSchema

		if !hasOmitEmpty(tag) && field.Type.Kind() != reflect.Ptr {
			required = append(required, name)
		}
	}

	schema := map[string]any{"type": "object", "properties": properties}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// ValidateParameters validates params against a minimal JSON schema: required
// fields, property types and enums. Extra fields are allowed.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	for _, name := range requiredFields(schema["required"]) {
		if _, exists := params[name]; !exists {
			return &ValidationError{Field: name, Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for _, name := range slices.Sorted(maps.Keys(params)) {
		propMap, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		value := params[name]

		expectedType, _ := propMap["type"].(string)
		if !isValidType(value, expectedType) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expectedType, value),
			}
		}
		if enum, ok := propMap["enum"].([]any); ok && value != nil && reflect.TypeOf(value).Comparable() && !slices.Contains(enum, value) {
			return &ValidationError{
				Field:   name,
				Value:   value,
				Message: fmt.Sprintf("value %v is not one of %v", value, enum),
			}
		}
	}

	return nil
}

// requiredFields accepts both []string (Go literals) and []any (decoded JSON/YAML).
func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Ptr:
		return jsonType(t.Elem())
	default:
		return "string"
	}
}

func hasOmitEmpty(tag string) bool {
	parts := strings.Split(tag, ",")
	for _, part := range parts[1:] {
		if strings.TrimSpace(part) == "omitempty" {
			return true
		}
	}
	return false
}

// isValidType checks a value against a JSON schema type name. Values decoded
// from YAML (map[any]any, []any, int) are accepted alongside JSON shapes.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)
	switch expectedType {
	case "string":
		return rv.Kind() == reflect.String
	case "integer":
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			f := rv.Float()
			return f == float64(int64(f))
		}
		return false
	case "number":
		switch rv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	case "boolean":
		return rv.Kind() == reflect.Bool
	case "array":
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	case "object":
		return rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct
	default:
		return true
	}
}

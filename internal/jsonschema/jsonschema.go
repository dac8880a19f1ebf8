// Package jsonschema generates JSON Schema documents from Go types via
// reflection. The schemas are sent to LLM providers as structured-output
// response formats and as tool parameter definitions.
//
// Field behavior is customized with the `jsonschema` struct tag:
//
//	Type string `json:"type" jsonschema:"description=Image slot type,enum=hero,enum=packaging"`
//	Note string `json:"note,omitempty" jsonschema:"required"`
//
// Non-pointer fields without omitempty are required by default.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Schema is a JSON Schema fragment. It covers the subset of the standard the
// providers understand: object/array/primitive types, required lists,
// descriptions, and enums.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
}

// Generate builds the schema for type T. Pointers are dereferenced, so
// Generate[*Listing]() and Generate[Listing]() produce the same schema.
// Self-referential types are rejected with an error rather than looping.
func Generate[T any]() (*Schema, error) {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return generate(t, make(map[reflect.Type]bool))
}

func generate(t reflect.Type, inProgress map[reflect.Type]bool) (*Schema, error) {
	switch t.Kind() {
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil

	case reflect.Ptr:
		return generate(t.Elem(), inProgress)

	case reflect.Slice, reflect.Array:
		items, err := generate(t.Elem(), inProgress)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil

	case reflect.Map:
		values, err := generate(t.Elem(), inProgress)
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "object", AdditionalProperties: values}, nil

	case reflect.Struct:
		return generateStruct(t, inProgress)

	case reflect.Interface:
		// No constraints can be derived; accept anything.
		return &Schema{}, nil

	default:
		return nil, fmt.Errorf("unsupported type %s for schema generation", t)
	}
}

func generateStruct(t reflect.Type, inProgress map[reflect.Type]bool) (*Schema, error) {
	if inProgress[t] {
		return nil, fmt.Errorf("recursive type %s cannot be expressed as an inline schema", t)
	}
	inProgress[t] = true
	defer delete(inProgress, t)

	schema := &Schema{
		Type:       "object",
		Properties: map[string]*Schema{},
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		fieldName, isOmitEmpty, skip := parseJSONTag(field)
		if skip {
			continue
		}

		fieldSchema, err := generate(field.Type, inProgress)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), field.Name, err)
		}

		isRequiredByTag, err := applySchemaTag(field.Type, field.Tag, fieldSchema)
		if err != nil {
			return nil, fmt.Errorf("field %s.%s: %w", t.Name(), field.Name, err)
		}

		schema.Properties[fieldName] = fieldSchema

		if (field.Type.Kind() != reflect.Ptr && !isOmitEmpty) || isRequiredByTag {
			schema.Required = append(schema.Required, fieldName)
		}
	}

	return schema, nil
}

// parseJSONTag resolves the wire name for a struct field from its json tag.
func parseJSONTag(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "-" {
		return "", false, true
	}

	name = field.Name
	if jsonTag != "" {
		parts := strings.Split(jsonTag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == "omitempty" {
				omitEmpty = true
			}
		}
	}
	return name, omitEmpty, false
}

// applySchemaTag parses the jsonschema struct tag and mutates schema in place.
// Supported items: description=..., enum=... (repeatable, converted to the
// field's kind), and the bare "required" marker. Returns whether the field was
// explicitly marked required.
func applySchemaTag(fieldType reflect.Type, tag reflect.StructTag, schema *Schema) (bool, error) {
	schemaTag := tag.Get("jsonschema")
	if schemaTag == "" {
		return false, nil
	}

	for fieldType.Kind() == reflect.Ptr {
		fieldType = fieldType.Elem()
	}

	isRequired := false
	for _, item := range strings.Split(schemaTag, ",") {
		key, value, hasValue := strings.Cut(item, "=")
		switch {
		case key == "required" && !hasValue:
			isRequired = true

		case key == "description" && hasValue:
			schema.Description = value

		case key == "enum" && hasValue:
			enumValue, err := convertEnumValue(fieldType, value)
			if err != nil {
				return false, err
			}
			schema.Enum = append(schema.Enum, enumValue)
		}
	}

	return isRequired, nil
}

func convertEnumValue(fieldType reflect.Type, value string) (any, error) {
	switch fieldType.Kind() {
	case reflect.String:
		return value, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as integer: %w", value, err)
		}
		return v, nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as float: %w", value, err)
		}
		return v, nil
	case reflect.Bool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("parse enum value %q as bool: %w", value, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("enum tag unsupported for field type %s", fieldType)
	}
}

// JSONString returns the schema as a JSON string, indented when requested.
func (s *Schema) JSONString(indent ...bool) (string, error) {
	var jsonBytes []byte
	var err error
	if len(indent) > 0 && indent[0] {
		jsonBytes, err = json.MarshalIndent(s, "", "  ")
	} else {
		jsonBytes, err = json.Marshal(s)
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema to JSON: %w", err)
	}
	return string(jsonBytes), nil
}

// String implements fmt.Stringer with compact JSON output.
func (s *Schema) String() string {
	jsonStr, err := s.JSONString()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return jsonStr
}

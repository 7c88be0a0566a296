// Package jsonschema generates JSON Schema documents for tool parameter
// structs. Schemas drive the function declarations sent to providers; the
// jsonschema struct tag supplies descriptions, required flags and enums.
package jsonschema

import (
	"fmt"
	"reflect"
	"strings"
)

// Schema is a JSON Schema fragment. It covers the subset of the standard
// that provider function declarations accept: object/array/scalar types,
// property maps, required lists and enums.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
}

// Generate builds a schema for the struct type T. Field names come from the
// json tag; descriptions, required flags and enum values come from the
// jsonschema tag:
//
//	type args struct {
//	    Op string `json:"op" jsonschema:"description=Operation,enum=add,enum=sub,required"`
//	}
func Generate[T any]() (*Schema, error) {
	t := reflect.TypeFor[T]()
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("jsonschema: %s is not a struct type", t)
	}
	return structSchema(t)
}

func structSchema(t reflect.Type) (*Schema, error) {
	schema := &Schema{
		Type:                 "object",
		Properties:           make(map[string]*Schema),
		AdditionalProperties: false,
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		fieldSchema, err := typeSchema(field.Type)
		if err != nil {
			return nil, fmt.Errorf("jsonschema: field %s: %w", field.Name, err)
		}

		required := applyTag(fieldSchema, field.Tag.Get("jsonschema"))
		if required {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}

	return schema, nil
}

func typeSchema(t reflect.Type) (*Schema, error) {
	switch t.Kind() {
	case reflect.Pointer:
		return typeSchema(t.Elem())
	case reflect.String:
		return &Schema{Type: "string"}, nil
	case reflect.Bool:
		return &Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &Schema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &Schema{Type: "number"}, nil
	case reflect.Slice, reflect.Array:
		items, err := typeSchema(t.Elem())
		if err != nil {
			return nil, err
		}
		return &Schema{Type: "array", Items: items}, nil
	case reflect.Map:
		return &Schema{Type: "object"}, nil
	case reflect.Struct:
		return structSchema(t)
	default:
		return nil, fmt.Errorf("unsupported kind %s", t.Kind())
	}
}

// fieldName returns the JSON property name for a struct field.
func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// applyTag parses the jsonschema tag into the schema and reports whether the
// field is required.
func applyTag(schema *Schema, tag string) bool {
	required := false
	for _, part := range strings.Split(tag, ",") {
		switch {
		case part == "":
		case part == "required":
			required = true
		case strings.HasPrefix(part, "description="):
			schema.Description = strings.TrimPrefix(part, "description=")
		case strings.HasPrefix(part, "enum="):
			schema.Enum = append(schema.Enum, strings.TrimPrefix(part, "enum="))
		}
	}
	return required
}

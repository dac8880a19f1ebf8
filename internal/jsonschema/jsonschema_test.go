package jsonschema

import (
	"slices"
	"testing"
)

type imageSlot struct {
	Index       int     `json:"index" jsonschema:"description=1-based slot position"`
	Type        string  `json:"type" jsonschema:"enum=hero,enum=size_reference,enum=packaging"`
	Description string  `json:"description,omitempty"`
	Rationale   *string `json:"rationale,omitempty"`
	Score       float64 `json:"score,omitempty" jsonschema:"required"`
	internal    string  //nolint:unused // exercises unexported-field skipping
}

func TestGenerateStructSchema(t *testing.T) {
	schema, err := Generate[imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if schema.Type != "object" {
		t.Errorf("expected object type, got %q", schema.Type)
	}
	if len(schema.Properties) != 5 {
		t.Errorf("expected 5 properties, got %d: %v", len(schema.Properties), schema.Properties)
	}
	if _, exists := schema.Properties["internal"]; exists {
		t.Error("unexported field must not appear in schema")
	}
}

func TestGenerateRequiredFields(t *testing.T) {
	schema, err := Generate[imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// index and type are plain fields; score is forced by tag; description has
	// omitempty and rationale is a pointer, so both stay optional.
	for _, requiredField := range []string{"index", "type", "score"} {
		if !slices.Contains(schema.Required, requiredField) {
			t.Errorf("expected %q in required list %v", requiredField, schema.Required)
		}
	}
	for _, optionalField := range []string{"description", "rationale"} {
		if slices.Contains(schema.Required, optionalField) {
			t.Errorf("did not expect %q in required list %v", optionalField, schema.Required)
		}
	}
}

func TestGenerateDescriptionAndEnum(t *testing.T) {
	schema, err := Generate[imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := schema.Properties["index"].Description; got != "1-based slot position" {
		t.Errorf("unexpected description %q", got)
	}

	enum := schema.Properties["type"].Enum
	if len(enum) != 3 || enum[0] != "hero" {
		t.Errorf("unexpected enum values: %v", enum)
	}
}

func TestGeneratePrimitiveKinds(t *testing.T) {
	tests := []struct {
		name         string
		expectedType string
		generate     func() (*Schema, error)
	}{
		{"string", "string", Generate[string]},
		{"int", "integer", Generate[int]},
		{"float", "number", Generate[float64]},
		{"bool", "boolean", Generate[bool]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema, err := tt.generate()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if schema.Type != tt.expectedType {
				t.Errorf("expected type %q, got %q", tt.expectedType, schema.Type)
			}
		})
	}
}

type slotList struct {
	Slots []imageSlot    `json:"slots"`
	Tags  map[string]int `json:"tags,omitempty"`
}

func TestGenerateNestedTypes(t *testing.T) {
	schema, err := Generate[slotList]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	slots := schema.Properties["slots"]
	if slots.Type != "array" || slots.Items == nil || slots.Items.Type != "object" {
		t.Errorf("unexpected slots schema: %v", slots)
	}

	tags := schema.Properties["tags"]
	if tags.Type != "object" || tags.AdditionalProperties == nil {
		t.Errorf("unexpected map schema: %v", tags)
	}
}

func TestGenerateDereferencesPointers(t *testing.T) {
	direct, err := Generate[imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	viaPointer, err := Generate[*imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if direct.String() != viaPointer.String() {
		t.Error("expected identical schemas for T and *T")
	}
}

type recursiveNode struct {
	Children []recursiveNode `json:"children"`
}

func TestGenerateRejectsRecursiveTypes(t *testing.T) {
	if _, err := Generate[recursiveNode](); err == nil {
		t.Error("expected error for recursive type")
	}
}

func TestJSONStringCompactAndIndented(t *testing.T) {
	schema, err := Generate[imageSlot]()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	compact, err := schema.JSONString()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	indented, err := schema.JSONString(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(indented) <= len(compact) {
		t.Error("expected indented output to be longer than compact output")
	}
}

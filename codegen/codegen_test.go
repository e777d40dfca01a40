package codegen_test

import (
	"strings"
	"testing"

	"github.com/df-mc/gdk/codegen"
	"github.com/df-mc/gdk/schema"
)

func builtin(name string) schema.SchemaTypeDefinition {
	n := name
	return schema.SchemaTypeDefinition{BuiltInType: &n}
}

func testSchema() schema.Collection {
	return schema.Collection{
		ComponentDefinitions: []schema.ComponentDefinition{
			{
				ID:            1,
				Name:          "Position",
				QualifiedName: "demo.Position",
				DataDefinition: schema.TypeDefinition{
					Name: "PositionData",
					FieldDefinitions: []schema.FieldDefinition{
						{Name: "x", Number: 1, SingularType: ptr(builtin("double"))},
						{Name: "y", Number: 2, SingularType: ptr(builtin("double"))},
						{Name: "label", Number: 3, OptionType: &schema.OptionTypeDefinition{ValueType: builtin("string")}},
					},
				},
				EventDefinitions: []schema.EventDefinition{
					{Name: "ping", EventType: builtin("bytes"), EventIndex: 0},
				},
			},
		},
	}
}

func ptr[T any](v T) *T { return &v }

func TestGenerateProducesOneFilePerComponentPlusRegistry(t *testing.T) {
	files, err := codegen.Generate(testSchema(), "demoschema")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := files["position_gen.go"]; !ok {
		t.Fatalf("expected position_gen.go, got %v", keys(files))
	}
	if _, ok := files["registry_gen.go"]; !ok {
		t.Fatalf("expected registry_gen.go, got %v", keys(files))
	}

	comp := string(files["position_gen.go"])
	for _, want := range []string{
		"type PositionData struct",
		"type PositionUpdate struct",
		"func (d *PositionData) ApplyUpdate(update any) bool",
		"func (d *PositionData) SetX(v float64)",
		"func (d *PositionData) StagePing(payload []byte)",
		"func DeserializePositionData(buf []byte) any",
		"func DeserializePositionUpdate(buf []byte) any",
	} {
		if !strings.Contains(comp, want) {
			t.Fatalf("generated component missing %q:\n%s", want, comp)
		}
	}

	reg := string(files["registry_gen.go"])
	for _, want := range []string{
		"const PositionComponentID fabric.ComponentID = 1",
		"func NewColumns(sig signature.Signature) map[fabric.ComponentID]ecs.Column",
		"var DeserializeComponent = map[fabric.ComponentID]func([]byte) any{",
		"var DeserializeUpdate = map[fabric.ComponentID]func([]byte) any{",
	} {
		if !strings.Contains(reg, want) {
			t.Fatalf("generated registry missing %q:\n%s", want, reg)
		}
	}
}

func TestGenerateRejectsUnlowerableField(t *testing.T) {
	s := schema.Collection{
		ComponentDefinitions: []schema.ComponentDefinition{
			{
				ID:   2,
				Name: "Bad",
				DataDefinition: schema.TypeDefinition{
					FieldDefinitions: []schema.FieldDefinition{
						{Name: "nested", Number: 1, MapType: &schema.MapTypeDefinition{
							KeyType:   builtin("string"),
							ValueType: builtin("string"),
						}},
					},
				},
			},
		},
	}
	if _, err := codegen.Generate(s, "demoschema"); err == nil {
		t.Fatalf("expected an error for an unsupported map field")
	}
}

func keys(m map[string][]byte) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	return ks
}

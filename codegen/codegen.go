// Package codegen implements the CodegenContract (spec §4.8): it turns a
// schema.Collection into Go source satisfying the ecs.Data trait surface
// for every component — a Data struct, an Update struct, per-field dirty
// tracking, (de)serialization glue over fabric.Writer/Reader, and the
// package-init wiring signature.Signature needs before any Signature value
// can be constructed (spec §4.1).
//
// BitSignature is keyed directly by the wire ComponentID, the same id every
// op in gdk/fabric and every dispatch path in gdk/world already uses to set
// and test bits — there is no separate dense bit-index layer to keep in
// sync with the rest of the runtime.
//
// Composite field shapes (list, map) and user-defined nested types are
// accepted by the schema package but are not lowered here; Generate
// reports an error naming the offending field rather than emitting code
// that silently drops data. Only option<built-in-scalar> and bare built-in
// scalars are generated. An option<T> field is generated exactly like a
// singular T field: the Data struct has no absent state for it, and the
// generated (de)serializers carry no presence flag for the option itself.
package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"sort"
	"strings"

	"golang.org/x/tools/imports"

	"github.com/df-mc/gdk/schema"
)

// Generate lowers coll into one Go source file per component, keyed by the
// file name codegen would write it under, plus a single "registry_gen.go"
// tying every generated component into an ecs.ColumnFactory and the two
// deserializer maps World.Config expects.
func Generate(coll schema.Collection, pkg string) (map[string][]byte, error) {
	out := make(map[string][]byte)

	comps := make([]schema.ComponentDefinition, len(coll.ComponentDefinitions))
	copy(comps, coll.ComponentDefinitions)
	sort.Slice(comps, func(i, j int) bool { return comps[i].ID < comps[j].ID })

	var maxID uint32
	for _, c := range comps {
		fields, err := resolveFields(c.DataDefinition.FieldDefinitions)
		if err != nil {
			return nil, fmt.Errorf("codegen: component %s: %w", c.Name, err)
		}
		events, err := resolveEvents(c.EventDefinitions)
		if err != nil {
			return nil, fmt.Errorf("codegen: component %s: %w", c.Name, err)
		}

		src, err := generateComponent(pkg, c, fields, events)
		if err != nil {
			return nil, fmt.Errorf("codegen: component %s: %w", c.Name, err)
		}
		out[strings.ToLower(c.Name)+"_gen.go"] = src
		if c.ID > maxID {
			maxID = c.ID
		}
	}

	reg, err := generateRegistry(pkg, comps, maxID)
	if err != nil {
		return nil, fmt.Errorf("codegen: registry: %w", err)
	}
	out["registry_gen.go"] = reg
	return out, nil
}

type genField struct {
	Name     string // exported Go field name
	Optional bool
	Scalar   scalar
}

func resolveFields(defs []schema.FieldDefinition) ([]genField, error) {
	var fields []genField
	for _, fd := range defs {
		switch fd.Kind() {
		case "singular":
			s, err := typeDefScalar(*fd.SingularType)
			if err != nil {
				return nil, err
			}
			fields = append(fields, genField{Name: exportName(fd.Name), Scalar: s})
		case "option":
			s, err := typeDefScalar(fd.OptionType.ValueType)
			if err != nil {
				return nil, err
			}
			fields = append(fields, genField{Name: exportName(fd.Name), Optional: true, Scalar: s})
		default:
			return nil, fmt.Errorf("field %q: kind %q is not a generated built-in scalar shape", fd.Name, fd.Kind())
		}
	}
	return fields, nil
}

func typeDefScalar(t schema.SchemaTypeDefinition) (scalar, error) {
	if t.BuiltInType == nil {
		return scalar{}, fmt.Errorf("user-defined nested types are not yet lowered by this contract")
	}
	return resolveScalar(*t.BuiltInType)
}

type genEvent struct {
	Name   string
	Scalar scalar
}

func resolveEvents(defs []schema.EventDefinition) ([]genEvent, error) {
	var events []genEvent
	for _, ed := range defs {
		s, err := typeDefScalar(ed.EventType)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", ed.Name, err)
		}
		events = append(events, genEvent{Name: exportName(ed.Name), Scalar: s})
	}
	return events, nil
}

func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func unexportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func generateComponent(pkg string, c schema.ComponentDefinition, fields []genField, events []genEvent) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "import (\n\t\"github.com/df-mc/gdk/ecs\"\n\t\"github.com/df-mc/gdk/fabric\"\n)\n\n")

	name := exportName(c.Name)
	dataName := name + "Data"
	updateName := name + "Update"

	// Data struct.
	fmt.Fprintf(&b, "// %s is the generated Data payload for component %s (id %d).\n", dataName, c.QualifiedName, c.ID)
	fmt.Fprintf(&b, "type %s struct {\n", dataName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\t%s %s\n\t%sDirty bool\n", f.Name, f.Scalar.goType, unexportName(f.Name))
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\tstaged%s [][]byte\n\treceived%s [][]byte\n", e.Name, e.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	// Update struct.
	fmt.Fprintf(&b, "// %s is the generated delta for component %s: every field optional, every event an ordered list.\n", updateName, c.QualifiedName)
	fmt.Fprintf(&b, "type %s struct {\n", updateName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\t%s *%s\n", f.Name, f.Scalar.goType)
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\t%sEvents [][]byte\n", e.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	// Accessors.
	for _, f := range fields {
		fmt.Fprintf(&b, "func (d *%s) Get%s() %s { return d.%s }\n", dataName, f.Name, f.Scalar.goType, f.Name)
		fmt.Fprintf(&b, "func (d *%s) Set%s(v %s) { d.%s = v; d.%sDirty = true }\n\n", dataName, f.Name, f.Scalar.goType, f.Name, unexportName(f.Name))
	}
	for _, e := range events {
		fmt.Fprintf(&b, "func (d *%s) Stage%s(payload []byte) { d.staged%s = append(d.staged%s, payload) }\n", dataName, e.Name, e.Name, e.Name)
		fmt.Fprintf(&b, "func (d *%s) Received%s() [][]byte { return d.received%s }\n\n", dataName, e.Name, e.Name)
	}

	// ecs.Data implementation.
	fmt.Fprintf(&b, "func (d *%s) ApplyUpdate(update any) bool {\n\tu := update.(*%s)\n\tcontainsEvents := false\n", dataName, updateName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\tif u.%s != nil {\n\t\td.%s = *u.%s\n\t}\n", f.Name, f.Name, f.Name)
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\tif len(u.%sEvents) > 0 {\n\t\td.received%s = append(d.received%s, u.%sEvents...)\n\t\tcontainsEvents = true\n\t}\n", e.Name, e.Name, e.Name, e.Name)
	}
	fmt.Fprintf(&b, "\treturn containsEvents\n}\n\n")

	fmt.Fprintf(&b, "func (d *%s) Dirty() bool {\n\treturn false", dataName)
	for _, f := range fields {
		fmt.Fprintf(&b, " ||\n\t\td.%sDirty", unexportName(f.Name))
	}
	fmt.Fprintf(&b, "\n}\n\n")

	fmt.Fprintf(&b, "func (d *%s) StagedEvents() bool {\n\treturn false", dataName)
	for _, e := range events {
		fmt.Fprintf(&b, " ||\n\t\tlen(d.staged%s) > 0", e.Name)
	}
	fmt.Fprintf(&b, "\n}\n\n")

	fmt.Fprintf(&b, "func (d *%s) WriteDelta(w fabric.Writer) {\n", dataName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\tw.WriteBool(d.%sDirty)\n\tif d.%sDirty {\n\t\tw.%s(d.%s)\n\t}\n", unexportName(f.Name), unexportName(f.Name), f.Scalar.write, f.Name)
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\tw.WriteUint32(uint32(len(d.staged%s)))\n\tfor _, ev := range d.staged%s {\n\t\tw.WriteBytes(ev)\n\t}\n", e.Name, e.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func (d *%s) ClearDirty() {\n", dataName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\td.%sDirty = false\n", unexportName(f.Name))
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\td.staged%s = nil\n", e.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func (d *%s) ClearReceivedEvents() {\n", dataName)
	for _, e := range events {
		fmt.Fprintf(&b, "\td.received%s = nil\n", e.Name)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "func (d *%s) Clone() ecs.Data {\n\tcp := *d\n", dataName)
	for _, e := range events {
		fmt.Fprintf(&b, "\tcp.staged%s = append([][]byte(nil), d.staged%s...)\n", e.Name, e.Name)
		fmt.Fprintf(&b, "\tcp.received%s = append([][]byte(nil), d.received%s...)\n", e.Name, e.Name)
	}
	fmt.Fprintf(&b, "\treturn &cp\n}\n\n")

	// Deserialization glue, matching fabric.NewBufferWriter/Reader's wire
	// shape: a full record on admit, a delta on update.
	fmt.Fprintf(&b, "func Deserialize%s(buf []byte) any {\n\tr := fabric.NewBufferReader(buf)\n\td := &%s{}\n", dataName, dataName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\td.%s = r.%s()\n", f.Name, f.Scalar.read)
	}
	fmt.Fprintf(&b, "\treturn d\n}\n\n")

	fmt.Fprintf(&b, "func Deserialize%s(buf []byte) any {\n\tr := fabric.NewBufferReader(buf)\n\tu := &%s{}\n", updateName, updateName)
	for _, f := range fields {
		fmt.Fprintf(&b, "\tif r.ReadBool() {\n\t\tv := r.%s()\n\t\tu.%s = &v\n\t}\n", f.Scalar.read, f.Name)
	}
	for _, e := range events {
		fmt.Fprintf(&b, "\tfor n := r.ReadUint32(); n > 0; n-- {\n\t\tu.%sEvents = append(u.%sEvents, r.ReadBytes())\n\t}\n", e.Name, e.Name)
	}
	fmt.Fprintf(&b, "\treturn u\n}\n")

	return formatSource(b.Bytes())
}

func generateRegistry(pkg string, comps []schema.ComponentDefinition, maxComponentID uint32) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "package %s\n\n", pkg)
	fmt.Fprintf(&b, "import (\n\t\"github.com/df-mc/gdk/ecs\"\n\t\"github.com/df-mc/gdk/fabric\"\n\t\"github.com/df-mc/gdk/signature\"\n)\n\n")

	fmt.Fprintf(&b, "// Component id constants, as assigned by the schema.\n")
	for _, c := range comps {
		fmt.Fprintf(&b, "const %sComponentID fabric.ComponentID = %d\n", exportName(c.Name), c.ID)
	}
	fmt.Fprintf(&b, "\n")

	fmt.Fprintf(&b, "// init fixes signature.Signature's width for this schema before any\n")
	fmt.Fprintf(&b, "// Signature is constructed, sized to hold the highest component id this\n")
	fmt.Fprintf(&b, "// schema assigns (spec §4.1).\n")
	fmt.Fprintf(&b, "func init() {\n\tsignature.SetWidth(%d)\n}\n\n", maxComponentID+1)

	fmt.Fprintf(&b, "// NewColumns is the ecs.ColumnFactory this schema compiles to; wire it into\n")
	fmt.Fprintf(&b, "// world.Config.NewColumns. Signature bits are keyed by the raw ComponentID,\n")
	fmt.Fprintf(&b, "// the same id every fabric op and world dispatch path sets and tests.\n")
	fmt.Fprintf(&b, "func NewColumns(sig signature.Signature) map[fabric.ComponentID]ecs.Column {\n\tcols := make(map[fabric.ComponentID]ecs.Column)\n")
	for _, c := range comps {
		name := exportName(c.Name)
		fmt.Fprintf(&b, "\tif sig.Has(uint32(%sComponentID)) {\n\t\tcols[%sComponentID] = ecs.NewTypedColumn[*%sData](%sComponentID, ecs.Capacity)\n\t}\n", name, name, name, name)
	}
	fmt.Fprintf(&b, "\treturn cols\n}\n\n")

	fmt.Fprintf(&b, "// DeserializeComponent is this schema's world.Config.DeserializeComponent map.\n")
	fmt.Fprintf(&b, "var DeserializeComponent = map[fabric.ComponentID]func([]byte) any{\n")
	for _, c := range comps {
		name := exportName(c.Name)
		fmt.Fprintf(&b, "\t%sComponentID: Deserialize%sData,\n", name, name)
	}
	fmt.Fprintf(&b, "}\n\n")

	fmt.Fprintf(&b, "// DeserializeUpdate is this schema's world.Config.DeserializeUpdate map.\n")
	fmt.Fprintf(&b, "var DeserializeUpdate = map[fabric.ComponentID]func([]byte) any{\n")
	for _, c := range comps {
		name := exportName(c.Name)
		fmt.Fprintf(&b, "\t%sComponentID: Deserialize%sUpdate,\n", name, name)
	}
	fmt.Fprintf(&b, "}\n")

	return formatSource(b.Bytes())
}

// formatSource runs gofmt and import-resolution over generated source, the
// Go analogue of the original codegen crate piping its quote!-built tokens
// through rustfmt before writing a .rs file
// (original_source/spatialos-gdk-codegen/src/component.rs).
func formatSource(src []byte) ([]byte, error) {
	formatted, err := imports.Process("generated.go", src, nil)
	if err != nil {
		// imports.Process already runs go/format internally. If it failed but
		// the source still passes a plain gofmt, return the gofmt output;
		// otherwise report goimports' error.
		if gf, gerr := format.Source(src); gerr == nil {
			return gf, nil
		}
		return nil, err
	}
	return formatted, nil
}

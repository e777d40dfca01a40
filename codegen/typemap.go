package codegen

import "fmt"

// scalar describes how one built-in schema scalar (spec §6's primitive
// mapping table) lowers to a Go type and to the fabric.Writer/Reader method
// pair that (de)serializes it.
type scalar struct {
	goType string
	write  string
	read   string
}

var builtins = map[string]scalar{
	"bool":     {"bool", "WriteBool", "ReadBool"},
	"uint32":   {"uint32", "WriteUint32", "ReadUint32"},
	"fixed32":  {"uint32", "WriteUint32", "ReadUint32"},
	"uint64":   {"uint64", "WriteUint64", "ReadUint64"},
	"fixed64":  {"uint64", "WriteUint64", "ReadUint64"},
	"int32":    {"int32", "WriteInt32", "ReadInt32"},
	"sint32":   {"int32", "WriteInt32", "ReadInt32"},
	"sfixed32": {"int32", "WriteInt32", "ReadInt32"},
	"int64":    {"int64", "WriteInt64", "ReadInt64"},
	"sint64":   {"int64", "WriteInt64", "ReadInt64"},
	"sfixed64": {"int64", "WriteInt64", "ReadInt64"},
	"float":    {"float32", "WriteFloat32", "ReadFloat32"},
	"double":   {"float64", "WriteFloat64", "ReadFloat64"},
	"string":   {"string", "WriteString", "ReadString"},
	"bytes":    {"[]byte", "WriteBytes", "ReadBytes"},
	"EntityId": {"fabric.EntityID", "WriteEntityID", "ReadEntityID"},
}

func resolveScalar(name string) (scalar, error) {
	s, ok := builtins[name]
	if !ok {
		return scalar{}, fmt.Errorf("codegen: unknown built-in scalar %q", name)
	}
	return s, nil
}

// Package schema holds the schema-AST JSON types codegen consumes (spec
// §6), mirroring the shape the (out-of-scope) schema-JSON compiler
// front-end emits.
package schema

import (
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/mod/semver"
)

// Collection is the top-level document: every type and component the
// schema compiler discovered, plus an optional compatibility marker.
type Collection struct {
	// SchemaVersion, if present, is checked against Supported by Load. It
	// has no equivalent in the original JSON shape; SPEC_FULL.md adds it so
	// a schema built against an incompatible codegen can be rejected before
	// generation runs rather than producing broken Go.
	SchemaVersion     string              `json:"schemaVersion,omitempty"`
	TypeDefinitions   []TypeDefinition    `json:"typeDefinitions"`
	ComponentDefinitions []ComponentDefinition `json:"componentDefinitions"`
}

// TypeDefinition is a named, non-component struct type (a schema "type").
type TypeDefinition struct {
	Name             string           `json:"name"`
	QualifiedName    string           `json:"qualifiedName"`
	FieldDefinitions []FieldDefinition `json:"fieldDefinitions"`
}

// ComponentDefinition is one schema component: its data fields, events, and
// commands.
type ComponentDefinition struct {
	ID                   uint32             `json:"id"`
	Name                 string             `json:"name"`
	QualifiedName        string             `json:"qualifiedName"`
	DataDefinition       TypeDefinition     `json:"dataDefinition"`
	EventDefinitions     []EventDefinition  `json:"eventDefinitions"`
	CommandDefinitions   []CommandDefinition `json:"commandDefinitions"`
}

// EventDefinition is one ordered, transient payload sequence attached to a
// component.
type EventDefinition struct {
	Name       string             `json:"name"`
	EventType  SchemaTypeDefinition `json:"type"`
	EventIndex uint32             `json:"eventIndex"`
}

// CommandDefinition is one request/response pair indexed within a
// component.
type CommandDefinition struct {
	Name         string             `json:"name"`
	RequestType  SchemaTypeDefinition `json:"requestType"`
	ResponseType SchemaTypeDefinition `json:"responseType"`
	CommandIndex uint32             `json:"commandIndex"`
}

// FieldDefinition is one field of a TypeDefinition: exactly one of
// SingularType, OptionType, ListType, or MapType is set, its "kind".
type FieldDefinition struct {
	Name        string               `json:"name"`
	Number      uint32               `json:"number"`
	SingularType *SchemaTypeDefinition `json:"singularType,omitempty"`
	OptionType   *OptionTypeDefinition `json:"optionType,omitempty"`
	ListType     *ListTypeDefinition   `json:"listType,omitempty"`
	MapType      *MapTypeDefinition    `json:"mapType,omitempty"`
}

// Kind reports which of the four field shapes f carries, for codegen
// dispatch (spec §6's "singular/option/list/map kind").
func (f FieldDefinition) Kind() string {
	switch {
	case f.SingularType != nil:
		return "singular"
	case f.OptionType != nil:
		return "option"
	case f.ListType != nil:
		return "list"
	case f.MapType != nil:
		return "map"
	default:
		return "unknown"
	}
}

type MapTypeDefinition struct {
	KeyType   SchemaTypeDefinition `json:"keyType"`
	ValueType SchemaTypeDefinition `json:"valueType"`
}

type OptionTypeDefinition struct {
	ValueType SchemaTypeDefinition `json:"valueType"`
}

type ListTypeDefinition struct {
	ValueType SchemaTypeDefinition `json:"valueType"`
}

// SchemaTypeDefinition names either a built-in scalar (per the mapping in
// spec §6) or a user-defined TypeDefinition by qualified name. Exactly one
// of BuiltInType or UserType is set.
type SchemaTypeDefinition struct {
	BuiltInType *string `json:"builtInType,omitempty"`
	UserType    *string `json:"userType,omitempty"`
}

// Supported is the range of schemaVersion values this codegen accepts.
// Bump the upper bound when a breaking change lands in the generated
// output's shape.
const Supported = "v1"

// Load reads and parses a schema-AST JSON document from path, rejecting a
// SchemaVersion outside Supported.
func Load(path string) (Collection, error) {
	f, err := os.Open(path)
	if err != nil {
		return Collection{}, fmt.Errorf("schema: open %q: %w", path, err)
	}
	defer f.Close()

	var c Collection
	if err := json.NewDecoder(f).Decode(&c); err != nil {
		return Collection{}, fmt.Errorf("schema: decode %q: %w", path, err)
	}
	if c.SchemaVersion != "" {
		if !semver.IsValid(c.SchemaVersion) {
			return Collection{}, fmt.Errorf("schema: %q: schemaVersion %q is not a valid semver", path, c.SchemaVersion)
		}
		if semver.Compare(semver.Major(c.SchemaVersion), semver.Major(Supported)) != 0 {
			return Collection{}, fmt.Errorf("schema: %q: schemaVersion %s is incompatible with supported %s", path, c.SchemaVersion, Supported)
		}
	}
	return c, nil
}

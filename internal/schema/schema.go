// Package schema defines the extraction schema that drives field comparison.
// A schema declares an explicit type tag for every extraction field; it is
// validated once at load time so that comparison can dispatch on the tag
// without inspecting runtime types.
package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FieldType enumerates the declared type of an extraction field.
type FieldType string

const (
	TypeBoolean FieldType = "boolean"
	TypeNumeric FieldType = "numeric"
	TypeString  FieldType = "string"
	TypeList    FieldType = "list"
	TypeObject  FieldType = "object"
)

// Field declares the shape of a single extraction field.
type Field struct {
	Type FieldType `json:"type" yaml:"type"`
	// Elem describes list elements. A list without an element spec
	// compares its elements as strings.
	Elem *Field `json:"elem,omitempty" yaml:"elem,omitempty"`
	// Fields describes object sub-fields. Required for object types.
	Fields map[string]Field `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// ElemSpec returns the element spec for a list field, defaulting to string.
func (f Field) ElemSpec() Field {
	if f.Elem != nil {
		return *f.Elem
	}
	return Field{Type: TypeString}
}

// Schema maps extraction field names to their declared types.
type Schema struct {
	Fields map[string]Field `json:"fields" yaml:"fields"`
}

// Load reads a schema from a YAML or JSON file (chosen by extension) and
// validates it. Any structural problem is a load error; schemas are never
// re-validated during comparison.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schema: read %s", path)
	}

	var s Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, eris.Wrapf(err, "schema: parse YAML %s", path)
		}
	default:
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, eris.Wrapf(err, "schema: parse JSON %s", path)
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every declared field recursively.
func (s *Schema) Validate() error {
	if len(s.Fields) == 0 {
		return eris.New("schema: no fields declared")
	}
	for _, name := range sortedKeys(s.Fields) {
		if err := validateField(name, s.Fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// FieldNames returns the declared field names in sorted order.
func (s *Schema) FieldNames() []string {
	return sortedKeys(s.Fields)
}

func validateField(name string, f Field) error {
	switch f.Type {
	case TypeBoolean, TypeNumeric, TypeString:
		if f.Elem != nil || len(f.Fields) > 0 {
			return eris.Errorf("schema: field %q: scalar type %q cannot declare elem or fields", name, f.Type)
		}
	case TypeList:
		if len(f.Fields) > 0 {
			return eris.Errorf("schema: field %q: list declares fields; nest them under elem", name)
		}
		if f.Elem != nil {
			if err := validateField(name+"[]", *f.Elem); err != nil {
				return err
			}
		}
	case TypeObject:
		if f.Elem != nil {
			return eris.Errorf("schema: field %q: object cannot declare elem", name)
		}
		if len(f.Fields) == 0 {
			return eris.Errorf("schema: field %q: object declares no sub-fields", name)
		}
		for _, sub := range sortedKeys(f.Fields) {
			if err := validateField(name+"."+sub, f.Fields[sub]); err != nil {
				return err
			}
		}
	case "":
		return eris.Errorf("schema: field %q: missing type", name)
	default:
		return eris.Errorf("schema: field %q: unknown type %q", name, f.Type)
	}
	return nil
}

func sortedKeys(m map[string]Field) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Package schema describes the destination content types and the source
// field configuration the assembly pipeline is driven by.
package schema

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Field is one destination field of a content type.
type Field struct {
	UID           string         `json:"uid" yaml:"uid"`
	DisplayName   string         `json:"display_name,omitempty" yaml:"display_name"`
	DataType      string         `json:"data_type" yaml:"data_type"`
	Multiple      bool           `json:"multiple,omitempty" yaml:"multiple"`
	Mandatory     bool           `json:"mandatory,omitempty" yaml:"mandatory"`
	ReferenceTo   []string       `json:"reference_to,omitempty" yaml:"reference_to"`
	FieldMetadata map[string]any `json:"field_metadata,omitempty" yaml:"field_metadata"`
}

// Meta returns a field_metadata value.
func (f *Field) Meta(key string) any {
	if f == nil || f.FieldMetadata == nil {
		return nil
	}
	return f.FieldMetadata[key]
}

// MetaBool returns a boolean field_metadata flag.
func (f *Field) MetaBool(key string) bool {
	b, _ := f.Meta(key).(bool)
	return b
}

// ContentType is a destination content type with its ordered field list.
type ContentType struct {
	UID    string  `json:"uid" yaml:"uid"`
	Title  string  `json:"title" yaml:"title"`
	Schema []Field `json:"schema" yaml:"schema"`
}

// Registry indexes content types and their fields by uid.
type Registry struct {
	types  map[string]*ContentType
	fields map[string]map[string]*Field
}

// NewRegistry creates a Registry from content type definitions.
func NewRegistry(cts []ContentType) *Registry {
	r := &Registry{
		types:  make(map[string]*ContentType, len(cts)),
		fields: make(map[string]map[string]*Field, len(cts)),
	}
	for i := range cts {
		ct := &cts[i]
		r.types[ct.UID] = ct
		byUID := make(map[string]*Field, len(ct.Schema))
		for j := range ct.Schema {
			byUID[ct.Schema[j].UID] = &ct.Schema[j]
		}
		r.fields[ct.UID] = byUID
	}
	return r
}

// ContentType returns the content type with the given uid.
func (r *Registry) ContentType(uid string) (*ContentType, bool) {
	if r == nil {
		return nil, false
	}
	ct, ok := r.types[uid]
	return ct, ok
}

// Field returns a field of a content type.
func (r *Registry) Field(contentType, uid string) (*Field, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.fields[contentType][uid]
	return f, ok
}

// LoadContentTypes reads a list of content types from a YAML or JSON file.
func LoadContentTypes(path string) ([]ContentType, error) {
	var cts []ContentType
	if err := decodeFile(path, &cts); err != nil {
		return nil, err
	}
	return cts, nil
}

func decodeFile(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "schema: read %s", path)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return eris.Wrapf(err, "schema: decode %s", path)
	}
	return nil
}

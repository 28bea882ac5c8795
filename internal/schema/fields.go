package schema

import "strings"

// Role is what the assembly pipeline does with a source field.
type Role int

// Field roles derived from the source field configuration.
const (
	RoleNone Role = iota
	RoleAsset
	RoleReference
	RoleTaxonomy
	RoleDate
	RoleBoolean
	RoleNumber
	RoleComment
)

func (r Role) String() string {
	switch r {
	case RoleAsset:
		return "asset"
	case RoleReference:
		return "reference"
	case RoleTaxonomy:
		return "taxonomy"
	case RoleDate:
		return "date"
	case RoleBoolean:
		return "boolean"
	case RoleNumber:
		return "number"
	case RoleComment:
		return "comment"
	}
	return "none"
}

// FieldConfig is the source system's configuration for one field.
type FieldConfig struct {
	Name     string         `json:"name" yaml:"name"`
	Type     string         `json:"type" yaml:"type"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings"`
}

// TargetType returns settings.target_type for reference fields.
func (f FieldConfig) TargetType() string {
	s, _ := f.Settings["target_type"].(string)
	return s
}

// Role classifies the field by its type and settings.
func (f FieldConfig) Role() Role {
	switch strings.ToLower(f.Type) {
	case "image", "file":
		return RoleAsset
	case "taxonomy_term_reference":
		return RoleTaxonomy
	case "entity_reference", "entity_reference_revisions":
		switch f.TargetType() {
		case "taxonomy_term":
			return RoleTaxonomy
		case "file", "media":
			return RoleAsset
		case "node", "paragraph", "block_content":
			return RoleReference
		}
		return RoleNone
	case "datetime", "timestamp", "created", "changed", "daterange":
		return RoleDate
	case "boolean":
		return RoleBoolean
	case "integer", "decimal", "float", "list_integer", "list_float":
		return RoleNumber
	case "comment":
		return RoleComment
	}
	return RoleNone
}

// FieldRegistry indexes source field configuration by field name.
type FieldRegistry struct {
	Fields []FieldConfig
	byName map[string]*FieldConfig
}

// NewFieldRegistry creates a FieldRegistry with indexed lookups.
func NewFieldRegistry(fields []FieldConfig) *FieldRegistry {
	r := &FieldRegistry{
		Fields: fields,
		byName: make(map[string]*FieldConfig, len(fields)),
	}
	for i := range r.Fields {
		r.byName[r.Fields[i].Name] = &r.Fields[i]
	}
	return r
}

// ByName returns the configuration for a field, or nil if not found.
func (r *FieldRegistry) ByName(name string) *FieldConfig {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// Role returns the role of a named field; unknown fields have RoleNone.
func (r *FieldRegistry) Role(name string) Role {
	f := r.ByName(name)
	if f == nil {
		return RoleNone
	}
	return f.Role()
}

// LoadFieldConfig reads source field configuration from a YAML or JSON file.
func LoadFieldConfig(path string) (*FieldRegistry, error) {
	var fields []FieldConfig
	if err := decodeFile(path, &fields); err != nil {
		return nil, err
	}
	return NewFieldRegistry(fields), nil
}

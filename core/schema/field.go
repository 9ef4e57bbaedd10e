package schema

// Field describes one declared field of an entity.
type Field struct {
	// Name is the column-level identifier, unique within the entity.
	Name string `yaml:"name"`

	// Label is the human-readable display name.
	Label string `yaml:"label,omitempty"`

	// Kind is the semantic field kind. See FieldKind constants.
	Kind FieldKind `yaml:"kind"`

	// Required indicates this field must carry a value.
	Required bool `yaml:"required,omitempty"`

	// Default value for this field.
	Default any `yaml:"default,omitempty"`

	// Values lists valid values for selection kind fields.
	Values []string `yaml:"values,omitempty"`

	// To names the target entity for reference kind fields.
	To string `yaml:"to,omitempty"`
}

// FieldKind is the semantic kind of a field. The set is closed; the
// Catalog maps each kind to a storage column spec.
type FieldKind string

const (
	KindText      FieldKind = "text"
	KindLongText  FieldKind = "longtext"
	KindInteger   FieldKind = "integer"
	KindFloat     FieldKind = "float"
	KindBoolean   FieldKind = "boolean"
	KindDate      FieldKind = "date"
	KindDatetime  FieldKind = "datetime"
	KindBinary    FieldKind = "binary"
	KindSelection FieldKind = "selection" // Requires Values
	KindReference FieldKind = "reference" // Requires To
)

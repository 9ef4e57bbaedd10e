package schema

import (
	"fmt"
	"strings"
)

// Entity is the declarative description of one entity class: a logical name
// namespaced by module and an ordered list of fields. The surrogate key and
// audit fields are never declared here; derivation appends them.
type Entity struct {
	// Name is the logical name, pattern "<namespace>.<identifier>"
	// (e.g. "library.book"). Globally unique.
	Name string `yaml:"name"`

	// Label is the human-readable entity name.
	Label string `yaml:"label,omitempty"`

	// Fields is the ordered field list. Names are unique within the entity.
	Fields []Field `yaml:"fields"`
}

// AuditFieldNames are the five implicit columns appended to every entity:
// surrogate key, creation and last-write timestamps, creator and last-writer
// references. They are reserved; declared fields may not use these names.
var AuditFieldNames = []string{"id", "created_at", "updated_at", "created_by", "updated_by"}

// Namespace returns the part of the logical name before the first dot.
func (e Entity) Namespace() string {
	if i := strings.IndexByte(e.Name, '.'); i >= 0 {
		return e.Name[:i]
	}
	return ""
}

// TableName derives the storage table name from the logical name.
// The derivation is deterministic: dots become underscores.
func (e Entity) TableName() string {
	return strings.ReplaceAll(e.Name, ".", "_")
}

// Field returns the declared field with the given name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether two entities declare the same name and field set.
// Registration idempotence is defined in terms of this comparison.
func (e Entity) Equal(other Entity) bool {
	if e.Name != other.Name || len(e.Fields) != len(other.Fields) {
		return false
	}
	for i, f := range e.Fields {
		o := other.Fields[i]
		if f.Name != o.Name || f.Kind != o.Kind || f.Required != o.Required ||
			f.To != o.To || fmt.Sprint(f.Default) != fmt.Sprint(o.Default) {
			return false
		}
		if len(f.Values) != len(o.Values) {
			return false
		}
		for j, v := range f.Values {
			if v != o.Values[j] {
				return false
			}
		}
	}
	return true
}

// ValidateEntity checks an entity declaration against the catalog.
func ValidateEntity(e Entity, catalog *Catalog) error {
	var errs []string

	if e.Name == "" {
		errs = append(errs, "entity name is required")
	} else if !isValidLogicalName(e.Name) {
		errs = append(errs, fmt.Sprintf("entity name %q must match <namespace>.<identifier>", e.Name))
	}

	if len(e.Fields) == 0 {
		errs = append(errs, "entity must declare at least one field")
	}

	reserved := make(map[string]bool, len(AuditFieldNames))
	for _, name := range AuditFieldNames {
		reserved[name] = true
	}

	seen := make(map[string]bool, len(e.Fields))
	for _, f := range e.Fields {
		switch {
		case !isValidIdentifier(f.Name):
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", f.Name))
		case reserved[f.Name]:
			errs = append(errs, fmt.Sprintf("field name %q is reserved for audit columns", f.Name))
		case seen[f.Name]:
			errs = append(errs, fmt.Sprintf("field %q declared more than once", f.Name))
		}
		seen[f.Name] = true

		if !catalog.Knows(f.Kind) {
			errs = append(errs, fmt.Sprintf("field %q: unknown kind %q", f.Name, f.Kind))
		}
		if f.Kind == KindSelection && len(f.Values) == 0 {
			errs = append(errs, fmt.Sprintf("field %q: selection kind requires values", f.Name))
		}
		if f.Kind == KindReference && f.To == "" {
			errs = append(errs, fmt.Sprintf("field %q: reference kind requires 'to' target", f.Name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("entity %q: %s", e.Name, strings.Join(errs, "; "))
	}
	return nil
}

// isValidLogicalName checks the "<namespace>.<identifier>" pattern.
func isValidLogicalName(s string) bool {
	i := strings.IndexByte(s, '.')
	if i <= 0 || i == len(s)-1 {
		return false
	}
	return isValidIdentifier(s[:i]) && isValidIdentifier(s[i+1:])
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}
	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

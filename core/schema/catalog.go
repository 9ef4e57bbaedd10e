package schema

import "fmt"

// ColumnSpec is the storage mapping for a field kind.
type ColumnSpec struct {
	// SQLType is the SQLite column type.
	SQLType string

	// ZeroLiteral is the SQL literal used to backfill existing rows when a
	// required column is added to a populated table.
	ZeroLiteral string
}

// Catalog maps the closed set of field kinds to column specs.
// It is populated once at construction and never mutated afterwards.
type Catalog struct {
	specs map[FieldKind]ColumnSpec
}

// NewCatalog builds the catalog with the full set of recognized kinds.
func NewCatalog() *Catalog {
	return &Catalog{specs: map[FieldKind]ColumnSpec{
		KindText:      {SQLType: "TEXT", ZeroLiteral: "''"},
		KindLongText:  {SQLType: "TEXT", ZeroLiteral: "''"},
		KindInteger:   {SQLType: "INTEGER", ZeroLiteral: "0"},
		KindFloat:     {SQLType: "REAL", ZeroLiteral: "0"},
		KindBoolean:   {SQLType: "INTEGER", ZeroLiteral: "0"},
		KindDate:      {SQLType: "TEXT", ZeroLiteral: "''"},
		KindDatetime:  {SQLType: "TEXT", ZeroLiteral: "''"},
		KindBinary:    {SQLType: "BLOB", ZeroLiteral: "X''"},
		KindSelection: {SQLType: "TEXT", ZeroLiteral: "''"},
		KindReference: {SQLType: "TEXT", ZeroLiteral: "''"},
	}}
}

// Resolve returns the column spec for a kind.
func (c *Catalog) Resolve(kind FieldKind) (ColumnSpec, error) {
	spec, ok := c.specs[kind]
	if !ok {
		return ColumnSpec{}, &UnsupportedFieldTypeError{Kind: kind}
	}
	return spec, nil
}

// Knows reports whether the kind is in the catalog.
func (c *Catalog) Knows(kind FieldKind) bool {
	_, ok := c.specs[kind]
	return ok
}

// UnsupportedFieldTypeError is returned when a field kind is outside the
// closed set of recognized kinds.
type UnsupportedFieldTypeError struct {
	Kind FieldKind
}

func (e *UnsupportedFieldTypeError) Error() string {
	return fmt.Sprintf("unsupported field kind %q", e.Kind)
}

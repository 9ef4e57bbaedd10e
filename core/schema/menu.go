package schema

// MenuItem is one declared navigation node. Items form a forest: a missing
// Parent means root. Siblings are ordered by Sequence ascending, declaration
// order on ties.
type MenuItem struct {
	// ID is the globally unique identifier.
	ID string

	// Name is the display label.
	Name string

	// Parent optionally references another menu item's ID.
	Parent string

	// Sequence defines sibling order.
	Sequence int

	// Action optionally references an Action ID. Leaf items carry one.
	Action string
}

// Action links a menu entry point to an entity-backed view.
type Action struct {
	// ID is the globally unique identifier.
	ID string

	// Name is the display label.
	Name string

	// Entity is the logical name of the target entity.
	Entity string

	// ViewModes is the ordered sequence of view kinds (e.g. list then form).
	ViewModes []ViewMode
}

// ViewMode is a kind of view an action opens.
type ViewMode string

const (
	ViewList ViewMode = "list"
	ViewForm ViewMode = "form"
)

// DataFile holds the declarations parsed from one metadata file, in
// declaration order.
type DataFile struct {
	MenuItems []MenuItem
	Actions   []Action
}

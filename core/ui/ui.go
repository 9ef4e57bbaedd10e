// Package ui builds the menu/action tree from declarative metadata.
//
// Declarations are committed in two phases: a batch collects every menuitem
// and action from a module's metadata files, then Commit resolves references
// across the whole batch. Declaration order within a file therefore does not
// matter for parent resolution, only for sibling tie-breaks.
package ui

import (
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/modbase/core/registry"
	"github.com/artpar/modbase/core/schema"
)

// Registry owns the committed menu/action tree. Writes happen only during
// the load phase; afterwards it is a read-only lookup structure.
type Registry struct {
	mu       sync.RWMutex
	items    map[string]*itemEntry
	actions  map[string]schema.Action
	entities *registry.Registry
	next     int
}

// itemEntry is a committed menu item with its commit order.
type itemEntry struct {
	item  schema.MenuItem
	order int
}

// New creates a UI registry. Action targets are validated against entities.
func New(entities *registry.Registry) *Registry {
	return &Registry{
		items:    make(map[string]*itemEntry),
		actions:  make(map[string]schema.Action),
		entities: entities,
	}
}

// Batch collects declarations before a commit.
type Batch struct {
	items   []schema.MenuItem
	actions []schema.Action
}

// DeclareMenuItem adds a menu item declaration to the batch.
func (b *Batch) DeclareMenuItem(item schema.MenuItem) {
	b.items = append(b.items, item)
}

// DeclareAction adds an action declaration to the batch.
func (b *Batch) DeclareAction(action schema.Action) {
	b.actions = append(b.actions, action)
}

// Add appends every declaration of a parsed metadata file.
func (b *Batch) Add(df schema.DataFile) {
	for _, a := range df.Actions {
		b.DeclareAction(a)
	}
	for _, item := range df.MenuItems {
		b.DeclareMenuItem(item)
	}
}

// Commit validates the whole batch and applies it atomically: either every
// declaration lands or none does. Re-committing an identical declaration is
// a no-op, so running update twice yields an identical tree.
func (r *Registry) Commit(batch *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Phase one: validate everything against committed state plus the batch.
	pendingActions := make(map[string]schema.Action, len(batch.actions))
	for _, a := range batch.actions {
		if existing, ok := r.actions[a.ID]; ok {
			if actionsEqual(existing, a) {
				continue
			}
			return &DuplicateIdentifierError{ID: a.ID}
		}
		if prev, ok := pendingActions[a.ID]; ok && !actionsEqual(prev, a) {
			return &DuplicateIdentifierError{ID: a.ID}
		}
		if !r.entities.Has(a.Entity) {
			return &DanglingActionError{ID: a.ID, Entity: a.Entity}
		}
		pendingActions[a.ID] = a
	}

	pendingItems := make(map[string]schema.MenuItem, len(batch.items))
	var newItems []schema.MenuItem
	for _, item := range batch.items {
		if existing, ok := r.items[item.ID]; ok {
			if itemsEqual(existing.item, item) {
				continue
			}
			return &DuplicateIdentifierError{ID: item.ID}
		}
		if _, ok := pendingItems[item.ID]; ok {
			return &DuplicateIdentifierError{ID: item.ID}
		}
		pendingItems[item.ID] = item
		newItems = append(newItems, item)
	}

	for _, item := range newItems {
		if item.Parent != "" {
			_, committed := r.items[item.Parent]
			_, pending := pendingItems[item.Parent]
			if !committed && !pending {
				return &DanglingParentError{ID: item.ID, Parent: item.Parent}
			}
		}
		if item.Action != "" {
			_, committed := r.actions[item.Action]
			_, pending := pendingActions[item.Action]
			if !committed && !pending {
				return &DanglingActionError{ID: item.ID, Action: item.Action}
			}
		}
	}

	if err := checkAcyclic(r.items, pendingItems); err != nil {
		return err
	}

	// Phase two: apply.
	for _, a := range pendingActions {
		r.actions[a.ID] = a
	}
	for _, item := range newItems {
		r.items[item.ID] = &itemEntry{item: item, order: r.next}
		r.next++
	}
	return nil
}

// checkAcyclic walks parent chains through committed and pending items.
// Committed items were already verified, so only pending chains can close a
// cycle.
func checkAcyclic(committed map[string]*itemEntry, pending map[string]schema.MenuItem) error {
	for id := range pending {
		seen := map[string]bool{}
		cur := id
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("menu item %q: parent chain forms a cycle", id)
			}
			seen[cur] = true

			if item, ok := pending[cur]; ok {
				cur = item.Parent
			} else if entry, ok := committed[cur]; ok {
				cur = entry.item.Parent
			} else {
				break
			}
		}
	}
	return nil
}

// Node is one node of the committed menu tree.
type Node struct {
	Item     schema.MenuItem
	Children []*Node
}

// Tree returns the menu forest. Roots and children are ordered by sequence
// ascending, commit order on ties.
func (r *Registry) Tree() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*itemEntry, 0, len(r.items))
	for _, e := range r.items {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].item.Sequence != entries[j].item.Sequence {
			return entries[i].item.Sequence < entries[j].item.Sequence
		}
		return entries[i].order < entries[j].order
	})

	nodes := make(map[string]*Node, len(entries))
	for _, e := range entries {
		nodes[e.item.ID] = &Node{Item: e.item}
	}

	var roots []*Node
	for _, e := range entries {
		node := nodes[e.item.ID]
		if e.item.Parent == "" {
			roots = append(roots, node)
			continue
		}
		parent := nodes[e.item.Parent]
		parent.Children = append(parent.Children, node)
	}
	return roots
}

// Item returns a committed menu item by id.
func (r *Registry) Item(id string) (schema.MenuItem, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.items[id]
	if !ok {
		return schema.MenuItem{}, false
	}
	return e.item, true
}

// Action returns a committed action by id.
func (r *Registry) Action(id string) (schema.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// Len returns the number of committed menu items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func itemsEqual(a, b schema.MenuItem) bool {
	return a == b
}

func actionsEqual(a, b schema.Action) bool {
	if a.ID != b.ID || a.Name != b.Name || a.Entity != b.Entity || len(a.ViewModes) != len(b.ViewModes) {
		return false
	}
	for i, m := range a.ViewModes {
		if m != b.ViewModes[i] {
			return false
		}
	}
	return true
}

// DuplicateIdentifierError reports an id declared twice with different
// content.
type DuplicateIdentifierError struct {
	ID string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q already declared", e.ID)
}

// DanglingParentError reports a parent reference that did not resolve within
// the batch or the committed tree.
type DanglingParentError struct {
	ID     string
	Parent string
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("menu item %q: parent %q does not resolve", e.ID, e.Parent)
}

// DanglingActionError reports an action reference that did not resolve, or
// an action whose target entity is not registered.
type DanglingActionError struct {
	ID     string
	Action string
	Entity string
}

func (e *DanglingActionError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("action %q: target entity %q is not registered", e.ID, e.Entity)
	}
	return fmt.Sprintf("menu item %q: action %q does not resolve", e.ID, e.Action)
}

// Package schema defines the declarative types the platform is built from:
// entity descriptors with typed fields, module descriptors with dependencies
// and metadata file lists, and the menu/action records parsed from data files.
//
// A module is the unit of declaration. It names the entities it owns, the
// other modules it depends on, and the metadata files that populate the UI
// tree. Everything downstream (tables, registries, menus) is derived from
// these types; nothing here touches storage.
package schema

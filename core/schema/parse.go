package schema

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseModuleFile parses a module descriptor from a module.yaml file.
// The module name defaults to the containing directory's name.
func ParseModuleFile(path string) (Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Module{}, fmt.Errorf("read file %s: %w", path, err)
	}

	mod, err := ParseModule(data)
	if err != nil {
		return Module{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if mod.Name == "" {
		mod.Name = filepath.Base(filepath.Dir(path))
	}
	return mod, nil
}

// ParseModule parses a module descriptor from YAML bytes.
func ParseModule(data []byte) (Module, error) {
	var mod Module
	if err := yaml.Unmarshal(data, &mod); err != nil {
		return Module{}, fmt.Errorf("parse yaml: %w", err)
	}

	if mod.Name != "" && !isValidIdentifier(mod.Name) {
		return Module{}, fmt.Errorf("module name %q is not a valid identifier", mod.Name)
	}
	for _, dep := range mod.Depends {
		if !isValidIdentifier(dep) {
			return Module{}, fmt.Errorf("dependency name %q is not a valid identifier", dep)
		}
	}

	return mod, nil
}

// ParseEntities parses an entity declaration file: a YAML sequence of
// entities, each with a logical name and an ordered field list.
func ParseEntities(data []byte, catalog *Catalog) ([]Entity, error) {
	var entities []Entity
	if err := yaml.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	for _, e := range entities {
		if err := ValidateEntity(e, catalog); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// ParseEntitiesFile parses entity declarations from a YAML file.
func ParseEntitiesFile(path string, catalog *Catalog) ([]Entity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}

	entities, err := ParseEntities(data, catalog)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return entities, nil
}

// xmlData mirrors the on-disk metadata file layout. Elements are kept in
// document order so declaration-order tie-breaks survive parsing.
type xmlData struct {
	XMLName xml.Name      `xml:"data"`
	Items   []xmlMenuItem `xml:"menuitem"`
	Actions []xmlAction   `xml:"action"`
}

type xmlMenuItem struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Parent   string `xml:"parent,attr"`
	Sequence int    `xml:"sequence,attr"`
	Action   string `xml:"action,attr"`
}

type xmlAction struct {
	ID       string `xml:"id,attr"`
	Name     string `xml:"name,attr"`
	Entity   string `xml:"entity,attr"`
	ViewMode string `xml:"view-mode,attr"`
}

// ParseData parses a menu/action metadata file from XML bytes.
func ParseData(data []byte) (DataFile, error) {
	var doc xmlData
	if err := xml.Unmarshal(data, &doc); err != nil {
		return DataFile{}, fmt.Errorf("parse xml: %w", err)
	}

	var df DataFile
	for _, item := range doc.Items {
		if item.ID == "" {
			return DataFile{}, fmt.Errorf("menuitem %q: id attribute is required", item.Name)
		}
		df.MenuItems = append(df.MenuItems, MenuItem{
			ID:       item.ID,
			Name:     item.Name,
			Parent:   item.Parent,
			Sequence: item.Sequence,
			Action:   item.Action,
		})
	}

	for _, act := range doc.Actions {
		if act.ID == "" {
			return DataFile{}, fmt.Errorf("action %q: id attribute is required", act.Name)
		}
		if act.Entity == "" {
			return DataFile{}, fmt.Errorf("action %q: entity attribute is required", act.ID)
		}

		modes := parseViewModes(act.ViewMode)
		df.Actions = append(df.Actions, Action{
			ID:        act.ID,
			Name:      act.Name,
			Entity:    act.Entity,
			ViewModes: modes,
		})
	}

	return df, nil
}

// ParseDataFile parses a metadata file from disk.
func ParseDataFile(path string) (DataFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DataFile{}, fmt.Errorf("read file %s: %w", path, err)
	}

	df, err := ParseData(data)
	if err != nil {
		return DataFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return df, nil
}

// parseViewModes splits a comma-separated view-mode attribute.
// An empty attribute defaults to list then form.
func parseViewModes(s string) []ViewMode {
	if s == "" {
		return []ViewMode{ViewList, ViewForm}
	}

	var modes []ViewMode
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			modes = append(modes, ViewMode(part))
		}
	}
	return modes
}

package loader

import (
	"fmt"
	"sort"
	"strings"
)

// ModuleError attaches the offending module's name to a load failure.
type ModuleError struct {
	Module string
	Err    error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("module %q: %v", e.Module, e.Err)
}

func (e *ModuleError) Unwrap() error {
	return e.Err
}

// CyclicDependencyError reports a dependency cycle. No module involved in
// the cycle is loaded.
type CyclicDependencyError struct {
	Modules []string
}

func (e *CyclicDependencyError) Error() string {
	mods := append([]string(nil), e.Modules...)
	sort.Strings(mods)
	return fmt.Sprintf("dependency cycle involving modules: %s", strings.Join(mods, ", "))
}

// MissingDependencyError reports a dependency absent from the load set.
type MissingDependencyError struct {
	Module     string
	Dependency string
}

func (e *MissingDependencyError) Error() string {
	if e.Module == e.Dependency {
		return fmt.Sprintf("module %q is not declared", e.Module)
	}
	return fmt.Sprintf("module %q depends on %q which is not in the load set", e.Module, e.Dependency)
}

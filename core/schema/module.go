package schema

// Module is the descriptor for one module: a named, versioned unit of entity
// and UI declarations with explicit dependencies. Parsed from the module's
// module.yaml file.
type Module struct {
	// Name is the unique module name. Filled from the directory name when
	// the descriptor omits it.
	Name string `yaml:"name,omitempty"`

	// Version of the module.
	Version string `yaml:"version"`

	// Depends lists modules that must be initialized before this one.
	Depends []string `yaml:"depends,omitempty"`

	// Entities lists entity declaration files (YAML), processed in order.
	Entities []string `yaml:"entities,omitempty"`

	// Data lists menu/action metadata files (XML), processed in order.
	Data []string `yaml:"data,omitempty"`

	// Description for documentation.
	Description string `yaml:"description,omitempty"`
}

// ModuleState is a module's position in the load lifecycle.
type ModuleState int

const (
	// StateUnregistered is the initial state of a declared module.
	StateUnregistered ModuleState = iota

	// StateResolving means the module's registration hook is running.
	StateResolving

	// StateLoaded means all entities are registered and synchronized.
	StateLoaded

	// StateInitialized means metadata files have been processed too.
	StateInitialized
)

// String returns the state name.
func (s ModuleState) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateResolving:
		return "resolving"
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	default:
		return "unknown"
	}
}

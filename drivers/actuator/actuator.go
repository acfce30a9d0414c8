// Package actuator defines the contract every actuator driver implements
// and a registry that creates drivers by type name. Commands arrive as
// decoded JSON values: booleans, numbers, or objects with driver-specific
// fields. Drivers enforce their own timing protections and must never block
// the caller.
package actuator

import (
	"sort"
	"sync"

	"modesp/errcode"
	"modesp/hal"
)

// Status is one actuator's externally visible state.
type Status struct {
	IsActive     bool    `json:"is_active"`
	CurrentValue float64 `json:"current_value"`
	State        string  `json:"state"`
	LastChangeMs int64   `json:"last_change_ms"`
	IsHealthy    bool    `json:"is_healthy"`
	Error        string  `json:"error,omitempty"`
}

// Driver is one configured actuator instance. ExecuteCommand and Update are
// called from the same module goroutine; drivers need no internal locking.
type Driver interface {
	Init(h *hal.HAL, cfg map[string]any) error

	// ExecuteCommand applies a command value. A command refused by a
	// protection timer returns busy; the driver keeps it as the commanded
	// state and applies it from Update when the timer allows.
	ExecuteCommand(cmd any) error

	Status() Status

	// Update advances time-based behaviour: protection timers, ramps,
	// scheduled transitions. Called at the module tick rate.
	Update()

	// EmergencyStop forces the actuator to its safe state immediately,
	// overriding protections.
	EmergencyStop()

	Type() string
	Description() string
	IsAvailable() bool

	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error
	UISchema() map[string]any
	Diagnostics() map[string]any
}

// BoolCommand interprets a command as on/off: booleans directly, numbers as
// zero/nonzero, objects via their "state" field.
func BoolCommand(cmd any) (bool, error) {
	switch v := cmd.(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case map[string]any:
		if state, ok := v["state"].(bool); ok {
			return state, nil
		}
	}
	return false, &errcode.E{C: errcode.InvalidConfig, Op: "actuator.BoolCommand",
		Msg: "command must be a bool, number or {state}"}
}

// NumberCommand interprets a command as a numeric setpoint: numbers
// directly, objects via their "value" field.
func NumberCommand(cmd any) (float64, error) {
	switch v := cmd.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case map[string]any:
		if value, ok := v["value"].(float64); ok {
			return value, nil
		}
	}
	return 0, &errcode.E{C: errcode.InvalidConfig, Op: "actuator.NumberCommand",
		Msg: "command must be a number or {value}"}
}

// Factory builds a fresh, unconfigured driver instance.
type Factory func() Driver

// Registry maps actuator type names to factories. Same contract as the
// sensor registry: explicit instances, first registration wins.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a type name to a factory; duplicates are logged and
// rejected.
func (r *Registry) Register(typeName string, f Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[typeName]; exists {
		println("Warn: actuator registry: duplicate type", typeName, "rejected")
		return false
	}
	r.factories[typeName] = f
	return true
}

// Create instantiates a driver by type name, nil when unknown.
func (r *Registry) Create(typeName string) Driver {
	r.mu.Lock()
	f := r.factories[typeName]
	r.mu.Unlock()
	if f == nil {
		return nil
	}
	return f()
}

// Has reports whether a type name is registered.
func (r *Registry) Has(typeName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[typeName]
	return ok
}

// Types lists registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

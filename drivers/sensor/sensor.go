// Package sensor defines the contract every sensor driver implements and a
// registry that creates drivers by type name. Drivers are configured from
// free-form JSON blobs, read without blocking, and report availability
// separately from momentary read errors.
package sensor

import (
	"modesp/hal"
	"modesp/x/timex"
)

// Reading is one measurement. IsValid false means the value must not be
// used; Error then carries the reason.
type Reading struct {
	Value       float64 `json:"value"`
	Unit        string  `json:"unit"`
	TimestampMs int64   `json:"timestamp_ms"`
	IsValid     bool    `json:"is_valid"`
	Error       string  `json:"error,omitempty"`
}

// Valid builds a good reading stamped now.
func Valid(value float64, unit string) Reading {
	return Reading{Value: value, Unit: unit, TimestampMs: timex.NowMs(), IsValid: true}
}

// Invalid builds a failed reading stamped now.
func Invalid(unit string, err error) Reading {
	r := Reading{Unit: unit, TimestampMs: timex.NowMs()}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Driver is one configured sensor instance. Read must never block on
// hardware conversions; slow sensors run their acquisition as a state
// machine and Read returns the latest cached value.
type Driver interface {
	// Init binds hardware resources from the HAL and applies the config
	// blob. A failed Init leaves the driver unavailable, not the module
	// broken.
	Init(h *hal.HAL, cfg map[string]any) error

	// Read returns the current measurement, valid or not, without blocking.
	Read() Reading

	Type() string
	Description() string
	IsAvailable() bool

	GetConfig() map[string]any
	SetConfig(cfg map[string]any) error

	// UISchema describes the config blob in JSON-Schema shape for remote
	// editors.
	UISchema() map[string]any

	// Calibrate applies a calibration request, typically
	// {reference, measured} to derive an offset. Drivers without
	// calibration return unsupported.
	Calibrate(params map[string]any) error

	Diagnostics() map[string]any
}

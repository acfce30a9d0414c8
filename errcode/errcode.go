package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Protocol-transient: expected under normal operation, retried by callers.
	NoPresence Code = "no_presence"
	InvalidCRC Code = "invalid_crc"

	// Sensor/actuator runtime conditions.
	StaleData    Code = "stale_data"
	OutOfRange   Code = "out_of_range"
	MaxRetries   Code = "max_retries"
	NotAvailable Code = "not_available"

	// Configuration-invalid: isolated to the offending driver at init time.
	InvalidConfig Code = "invalid_config"
	UnknownType   Code = "unknown_type"
	DuplicateType Code = "duplicate_type"

	// Resource-unavailable.
	UnknownHalID Code = "unknown_hal_id"

	Busy        Code = "busy"
	Unsupported Code = "unsupported"
	Timeout     Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps context and a cause around a Code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Is reports whether err carries the given code.
func Is(err error, c Code) bool { return Of(err) == c }

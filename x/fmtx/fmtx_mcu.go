//go:build esp32

package fmtx

import (
	"io"

	"modesp/x/strconvx"
)

// DefaultOutput is used by Printf on MCU builds.
// Set this from the platform bootstrap (e.g. a UART writer).
var DefaultOutput io.Writer = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// Tiny formatter subset: %s %q %d %x %v %t %f %%. No width or flags; keep MCU
// cost low. Unknown verbs are emitted literally to aid debugging.

func Sprintf(format string, a ...any) string {
	var buf []byte
	ai := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			buf = append(buf, format[i])
			continue
		}
		i++
		if i >= len(format) {
			break
		}
		if format[i] == '%' {
			buf = append(buf, '%')
			continue
		}
		if ai >= len(a) {
			buf = append(buf, "%!"...)
			buf = append(buf, format[i])
			continue
		}
		buf = appendVerb(buf, format[i], a[ai])
		ai++
	}
	return string(buf)
}

func Printf(format string, a ...any) (int, error) {
	return io.WriteString(DefaultOutput, Sprintf(format, a...))
}

func Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return io.WriteString(w, Sprintf(format, a...))
}

func Errorf(format string, a ...any) error { return &strError{Sprintf(format, a...)} }

func Sprint(a ...any) string {
	var buf []byte
	for i, v := range a {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = appendVerb(buf, 'v', v)
	}
	return string(buf)
}

func Fprint(w io.Writer, a ...any) (int, error) { return io.WriteString(w, Sprint(a...)) }

type strError struct{ s string }

func (e *strError) Error() string { return e.s }

func appendVerb(buf []byte, verb byte, v any) []byte {
	switch verb {
	case 'q':
		s, _ := v.(string)
		buf = append(buf, '"')
		buf = append(buf, s...)
		return append(buf, '"')
	case 'x':
		return append(buf, strconvx.FormatUint(toUint64(v), 16)...)
	case 't':
		if b, ok := v.(bool); ok && b {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	}
	switch x := v.(type) {
	case string:
		return append(buf, x...)
	case error:
		return append(buf, x.Error()...)
	case bool:
		if x {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case float32:
		return append(buf, strconvx.FormatFloat(float64(x), 'f', 2, 32)...)
	case float64:
		return append(buf, strconvx.FormatFloat(x, 'f', 2, 64)...)
	case int, int8, int16, int32, int64:
		return append(buf, strconvx.FormatInt(toInt64(v), 10)...)
	case uint, uint8, uint16, uint32, uint64:
		return append(buf, strconvx.FormatUint(toUint64(v), 10)...)
	default:
		return append(buf, "<unk>"...)
	}
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	default:
		return int64(toUint64(v))
	}
}

func toUint64(v any) uint64 {
	switch x := v.(type) {
	case uint:
		return uint64(x)
	case uint8:
		return uint64(x)
	case uint16:
		return uint64(x)
	case uint32:
		return uint64(x)
	case uint64:
		return x
	case int:
		return uint64(x)
	case int64:
		return uint64(x)
	default:
		return 0
	}
}

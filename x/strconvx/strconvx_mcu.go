//go:build esp32

package strconvx

// Minimal, allocation-aware replacements with strconv-compatible signatures.
// Supported bases: 2..36. FormatFloat/ParseFloat are basic fixed-notation
// implementations; use sparingly on MCU.

type numError struct{}

func (numError) Error() string { return "invalid syntax" }

func Itoa(i int) string { return FormatInt(int64(i), 10) }

func Atoi(s string) (int, error) {
	v, err := ParseInt(s, 10, 0)
	return int(v), err
}

func FormatInt(i int64, base int) string {
	if i < 0 {
		return "-" + FormatUint(uint64(-i), base)
	}
	return FormatUint(uint64(i), base)
}

func FormatUint(u uint64, base int) string {
	if base < 2 || base > 36 {
		base = 10
	}
	if u == 0 {
		return "0"
	}
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [64]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = digits[u%uint64(base)]
		u /= uint64(base)
	}
	return string(buf[i:])
}

func ParseInt(s string, base, bitSize int) (int64, error) {
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	u, err := ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(u), nil
	}
	return int64(u), nil
}

func ParseUint(s string, base, bitSize int) (uint64, error) {
	if base == 0 {
		base = 10
		if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
			base = 16
			s = s[2:]
		}
	}
	if s == "" || base < 2 || base > 36 {
		return 0, numError{}
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		var d byte
		c := s[i]
		switch {
		case '0' <= c && c <= '9':
			d = c - '0'
		case 'a' <= c && c <= 'z':
			d = c - 'a' + 10
		case 'A' <= c && c <= 'Z':
			d = c - 'A' + 10
		default:
			return 0, numError{}
		}
		if int(d) >= base {
			return 0, numError{}
		}
		v = v*uint64(base) + uint64(d)
	}
	return v, nil
}

func FormatFloat(f float64, fmt byte, prec, bitSize int) string {
	if prec < 0 {
		prec = 6
	}
	neg := f < 0
	if neg {
		f = -f
	}
	scale := 1.0
	for i := 0; i < prec; i++ {
		scale *= 10
	}
	scaled := uint64(f*scale + 0.5)
	ip := scaled
	for i := 0; i < prec; i++ {
		ip /= 10
	}
	out := FormatUint(ip, 10)
	if prec > 0 {
		frac := scaled
		div := uint64(1)
		for i := 0; i < prec; i++ {
			div *= 10
		}
		frac %= div
		fs := FormatUint(frac, 10)
		for len(fs) < prec {
			fs = "0" + fs
		}
		out += "." + fs
	}
	if neg {
		out = "-" + out
	}
	return out
}

func ParseFloat(s string, bitSize int) (float64, error) {
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	intPart, fracPart := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			intPart, fracPart = s[:i], s[i+1:]
			break
		}
	}
	var v float64
	if intPart != "" {
		u, err := ParseUint(intPart, 10, 64)
		if err != nil {
			return 0, err
		}
		v = float64(u)
	}
	if fracPart != "" {
		u, err := ParseUint(fracPart, 10, 64)
		if err != nil {
			return 0, err
		}
		div := 1.0
		for range fracPart {
			div *= 10
		}
		v += float64(u) / div
	}
	if neg {
		v = -v
	}
	return v, nil
}

package onewire

import "modesp/errcode"

// Address is a 64-bit 1-Wire ROM identifier stored in printed order: family
// code in the top byte, then the 48-bit serial, then the ROM CRC, so that
// "28FF123456789ABC" parses and prints without reordering.
type Address uint64

// Family returns the device family code (0x28 for DS18B20).
func (a Address) Family() byte { return byte(a >> 56) }

// FamilyDS18B20 is the DS18B20 family code.
const FamilyDS18B20 = 0x28

const hexDigits = "0123456789ABCDEF"

// String renders the address as 16 uppercase hex characters, MSB first.
func (a Address) String() string {
	var buf [16]byte
	for i := 15; i >= 0; i-- {
		buf[i] = hexDigits[a&0xF]
		a >>= 4
	}
	return string(buf[:])
}

// ParseAddress parses a 16-hex-character ROM address, case-insensitive, with
// an optional 0x prefix. The zero address is rejected.
func ParseAddress(s string) (Address, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	if len(s) != 16 {
		return 0, &errcode.E{C: errcode.InvalidConfig, Op: "onewire.ParseAddress",
			Msg: "address must be 16 hex characters"}
	}
	var a Address
	for i := 0; i < len(s); i++ {
		c := s[i]
		a <<= 4
		switch {
		case c >= '0' && c <= '9':
			a |= Address(c - '0')
		case c >= 'A' && c <= 'F':
			a |= Address(c-'A') + 10
		case c >= 'a' && c <= 'f':
			a |= Address(c-'a') + 10
		default:
			return 0, &errcode.E{C: errcode.InvalidConfig, Op: "onewire.ParseAddress",
				Msg: "invalid hex character"}
		}
	}
	if a == 0 {
		return 0, &errcode.E{C: errcode.InvalidConfig, Op: "onewire.ParseAddress",
			Msg: "zero address"}
	}
	return a, nil
}

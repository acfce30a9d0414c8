package onewire

import (
	"testing"

	"modesp/errcode"
)

func TestAddressStringRoundTrip(t *testing.T) {
	addrs := []Address{
		0x28FF123456789ABC,
		0x2800000000000001,
		0x10A75BCF00080021,
	}
	for _, a := range addrs {
		s := a.String()
		if len(s) != 16 {
			t.Fatalf("String() = %q, want 16 hex chars", s)
		}
		back, err := ParseAddress(s)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", s, err)
		}
		if back != a {
			t.Errorf("round trip %q: got %016X, want %016X", s, uint64(back), uint64(a))
		}
	}
}

func TestParseAddressForms(t *testing.T) {
	want := Address(0x28FF123456789ABC)
	for _, s := range []string{
		"28FF123456789ABC",
		"28ff123456789abc",
		"0x28FF123456789ABC",
	} {
		a, err := ParseAddress(s)
		if err != nil {
			t.Fatalf("ParseAddress(%q): %v", s, err)
		}
		if a != want {
			t.Errorf("ParseAddress(%q) = %016X", s, uint64(a))
		}
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	for _, s := range []string{
		"",
		"28FF",                // too short
		"28FF123456789ABC00",  // too long
		"ZZFF123456789ABC",    // not hex
		"0000000000000000",    // all-zero ROM
		"0x28FF123456789ABZ",  // not hex after prefix
	} {
		if _, err := ParseAddress(s); !errcode.Is(err, errcode.InvalidConfig) {
			t.Errorf("ParseAddress(%q) err = %v, want invalid_config", s, err)
		}
	}
}

func TestAddressFamily(t *testing.T) {
	a := Address(0x28FF123456789ABC)
	if a.Family() != FamilyDS18B20 {
		t.Errorf("Family() = %#02x, want %#02x", a.Family(), FamilyDS18B20)
	}
}

package onewire

import "testing"

func TestCRC8KnownVectors(t *testing.T) {
	// ROM codes carry their own CRC in the top byte; a full 8-byte ROM
	// therefore checks clean.
	cases := []struct {
		data []byte
		want byte
	}{
		{[]byte{0x02, 0x1C, 0xB8, 0x01, 0x00, 0x00, 0x00}, 0xA2}, // datasheet ROM example
		{[]byte{0x00}, 0x00},
		{[]byte{0xFF}, 0x35},
	}
	for _, c := range cases {
		if got := CRC8(c.data); got != c.want {
			t.Errorf("CRC8(% X) = %#02x, want %#02x", c.data, got, c.want)
		}
	}
}

func TestCheckAcceptsAppendedCRC(t *testing.T) {
	payloads := [][]byte{
		{0x50, 0x05, 0x4B, 0x46, 0x7F, 0xFF, 0x0C, 0x10},
		{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
		{0xFF, 0xFE, 0x4B, 0x46, 0x1F, 0xFF, 0x0C, 0x10},
	}
	for _, p := range payloads {
		frame := append(append([]byte(nil), p...), CRC8(p))
		if !Check(frame) {
			t.Errorf("Check rejected valid frame % X", frame)
		}
	}
}

func TestCheckRejectsAnySingleBitFlip(t *testing.T) {
	p := []byte{0x50, 0x05, 0x4B, 0x46, 0x7F, 0xFF, 0x0C, 0x10}
	frame := append(append([]byte(nil), p...), CRC8(p))
	for byteIdx := range frame {
		for bit := 0; bit < 8; bit++ {
			corrupted := append([]byte(nil), frame...)
			corrupted[byteIdx] ^= 1 << bit
			if Check(corrupted) {
				t.Errorf("Check accepted frame with bit %d of byte %d flipped", bit, byteIdx)
			}
		}
	}
}

package onewire

// CRC-8 with the Dallas/Maxim polynomial (x^8 + x^5 + x^4 + 1, reflected
// 0x8C), table-driven. The table matches the one printed in every DS18B20
// application note.
var crcTable = makeCRCTable()

func makeCRCTable() (t [256]byte) {
	for i := 0; i < 256; i++ {
		crc := byte(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0x8C
			} else {
				crc >>= 1
			}
		}
		t[i] = crc
	}
	return t
}

// CRC8 computes the Dallas CRC over p.
func CRC8(p []byte) byte {
	var crc byte
	for _, b := range p {
		crc = crcTable[crc^b]
	}
	return crc
}

// Check verifies a buffer whose final byte is the CRC of the preceding ones.
func Check(p []byte) bool {
	if len(p) < 2 {
		return false
	}
	return CRC8(p[:len(p)-1]) == p[len(p)-1]
}

package onewire

// A behavioural 1-Wire slave model for host tests. The simulated line decodes
// master pulses by their low duration (reset >= 480µs, write-0 >= 15µs,
// shorter pulses are write-1 or read-slot initiations depending on whether a
// device is in an output phase), and models the wired-AND bus: any device
// driving a 0 pulls the line low.

type simClock struct{ us uint64 }

func (c *simClock) now() uint64       { return c.us }
func (c *simClock) advance(us uint32) { c.us += uint64(us) }

const (
	devWaitCmd = iota
	devMatch
	devScratchOut
	devSearch
	devIdle
	devDropped
)

type simDevice struct {
	rom     [8]byte
	scratch [9]byte

	state      int
	selected   bool
	bitCnt     int
	shift      byte
	searchBit  int
	searchStep int // 0: id bit out, 1: complement out, 2: direction in
}

func newSimDevice(addr Address, scratch [9]byte) *simDevice {
	d := &simDevice{scratch: scratch}
	for i := 0; i < 8; i++ {
		d.rom[i] = byte(addr >> ((7 - i) * 8))
	}
	return d
}

func (d *simDevice) romBit(i int) bool { return d.rom[i/8]>>(i%8)&1 == 1 }

func (d *simDevice) onReset() {
	d.state = devWaitCmd
	d.selected = false
	d.bitCnt = 0
	d.shift = 0
}

func (d *simDevice) driving() bool {
	switch d.state {
	case devScratchOut:
		return d.bitCnt < len(d.scratch)*8
	case devSearch:
		return d.searchStep < 2
	}
	return false
}

// readSlot returns the device's output bit for a master read slot and
// reports whether it is driving at all.
func (d *simDevice) readSlot() (bit, driving bool) {
	switch d.state {
	case devScratchOut:
		if d.bitCnt >= len(d.scratch)*8 {
			return true, false
		}
		bit = d.scratch[d.bitCnt/8]>>(d.bitCnt%8)&1 == 1
		d.bitCnt++
		return bit, true
	case devSearch:
		romBit := d.romBit(d.searchBit)
		if d.searchStep == 1 {
			romBit = !romBit
		}
		d.searchStep++
		return romBit, true
	}
	return true, false
}

func (d *simDevice) writeSlot(bit bool) {
	switch d.state {
	case devWaitCmd:
		if bit {
			d.shift |= 1 << d.bitCnt
		}
		d.bitCnt++
		if d.bitCnt < 8 {
			return
		}
		cmd := d.shift
		d.bitCnt = 0
		d.shift = 0
		switch cmd {
		case cmdSkipROM:
			d.selected = true
		case cmdMatchROM:
			d.state = devMatch
		case cmdSearchROM:
			d.state = devSearch
			d.searchBit = 0
			d.searchStep = 0
		case cmdConvertT:
			d.state = devIdle
		case cmdReadScratchpad:
			if d.selected {
				d.state = devScratchOut
			} else {
				d.state = devDropped
			}
		default:
			d.state = devDropped
		}
	case devMatch:
		if bit != d.romBit(d.bitCnt) {
			d.state = devDropped
			return
		}
		d.bitCnt++
		if d.bitCnt == 64 {
			d.selected = true
			d.state = devWaitCmd
			d.bitCnt = 0
		}
	case devSearch:
		// Direction bit from the master; mismatching devices drop out.
		if bit != d.romBit(d.searchBit) {
			d.state = devDropped
			return
		}
		d.searchBit++
		d.searchStep = 0
		if d.searchBit == 64 {
			d.state = devIdle
		}
	}
}

type simLine struct {
	clk     *simClock
	devices []*simDevice

	masterLow      bool
	fallTime       uint64
	pulledLowUntil uint64
}

func newSimLine(clk *simClock, devices ...*simDevice) *simLine {
	return &simLine{clk: clk, devices: devices}
}

func (l *simLine) Low() {
	l.masterLow = true
	l.fallTime = l.clk.now()
}

func (l *simLine) Release() {
	dur := l.clk.now() - l.fallTime
	l.masterLow = false
	switch {
	case dur >= 480: // reset pulse
		for _, d := range l.devices {
			d.onReset()
		}
		if len(l.devices) > 0 {
			l.pulledLowUntil = l.clk.now() + 120 // presence pulse
		}
	case dur >= 15: // write 0
		for _, d := range l.devices {
			d.writeSlot(false)
		}
	default:
		anyDriving := false
		for _, d := range l.devices {
			if d.driving() {
				anyDriving = true
				break
			}
		}
		if !anyDriving {
			for _, d := range l.devices {
				d.writeSlot(true)
			}
			return
		}
		// Read slot: wired-AND over all driving devices.
		bit := true
		for _, d := range l.devices {
			if b, driving := d.readSlot(); driving && !b {
				bit = false
			}
		}
		if !bit {
			l.pulledLowUntil = l.fallTime + 30
		}
	}
}

func (l *simLine) Read() bool {
	if l.masterLow {
		return false
	}
	return l.clk.now() >= l.pulledLowUntil
}

// newSimBus wires a Bus to a simulated line with virtual time.
func newSimBus(devices ...*simDevice) (*Bus, *simClock) {
	clk := &simClock{}
	line := newSimLine(clk, devices...)
	b := New(Config{Pin: line, DelayUS: clk.advance})
	return b, clk
}

// tempScratchpad builds a valid DS18B20 scratchpad for a temperature.
func tempScratchpad(celsius float64) [9]byte {
	raw := int16(celsius * 16)
	var s [9]byte
	s[0] = byte(raw)
	s[1] = byte(raw >> 8)
	s[2], s[3] = 0x4B, 0x46 // alarm registers, power-on defaults
	s[4] = 0x7F             // 12-bit configuration
	s[8] = CRC8(s[:8])
	return s
}

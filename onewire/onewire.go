// Package onewire implements a 1-Wire bus master over a single open-drain
// GPIO line, sufficient to drive DS18B20-family temperature sensors:
// reset/presence, bit- and byte-level IO (LSB first), the Dallas ROM search
// with discrepancy backtracking, and scratchpad reads with CRC-8 validation.
//
// The bit-level routines use short busy-wait delays. That is a hardware
// requirement of the protocol: the timing windows are in the 3..480 µs range
// and jitter-sensitive, so no call blocks for longer than one reset slot
// (~960 µs). All public operations serialize on an internal mutex so that one
// reset→command→data transaction owns the line end to end.
package onewire

import (
	"sync"
	"time"

	"modesp/errcode"
)

// ROM and function commands (DS18B20 datasheet).
const (
	cmdConvertT        = 0x44
	cmdCopyScratchpad  = 0x48
	cmdReadScratchpad  = 0xBE
	cmdWriteScratchpad = 0x4E
	cmdRecallEEPROM    = 0xB8
	cmdReadPowerSupply = 0xB4
	cmdSearchROM       = 0xF0
	cmdReadROM         = 0x33
	cmdMatchROM        = 0x55
	cmdSkipROM         = 0xCC
	cmdAlarmSearch     = 0xEC
)

// maxDevices caps one enumeration pass as a safety net against a line fault
// that makes the search algorithm loop.
const maxDevices = 64

// Pin is the open-drain data line. Low drives the line to ground; Release
// lets the external pull-up raise it; Read samples the current level.
type Pin interface {
	Low()
	Release()
	Read() bool
}

// PowerPin optionally switches external power for the bus (strong pull-up
// rail for parasitic setups).
type PowerPin interface {
	Set(high bool)
}

// Config carries the line, the optional power pin, and the microsecond delay
// primitive. DelayUS defaults to a busy-wait on the host clock.
type Config struct {
	Pin     Pin
	Power   PowerPin
	DelayUS func(us uint32)
}

// BusyDelay busy-waits for the given number of microseconds. It is the
// default delay primitive; platform code may substitute a cycle-counted one.
func BusyDelay(us uint32) {
	d := time.Duration(us) * time.Microsecond
	start := time.Now()
	for time.Since(start) < d {
	}
}

// Bus is a 1-Wire master bound to one data line.
type Bus struct {
	mu    sync.Mutex
	pin   Pin
	power PowerPin
	delay func(uint32)

	// ROM search bookkeeping, valid only within one enumeration pass.
	lastDiscrepancy       int
	lastDeviceFlag        bool
	lastFamilyDiscrepancy int
}

// New configures the bus and powers it if a power pin is present.
func New(cfg Config) *Bus {
	b := &Bus{
		pin:   cfg.Pin,
		power: cfg.Power,
		delay: cfg.DelayUS,
	}
	if b.delay == nil {
		b.delay = BusyDelay
	}
	if b.power != nil {
		b.power.Set(true)
		time.Sleep(10 * time.Millisecond) // let the rail stabilize
	}
	b.pin.Release()
	return b
}

// Close de-powers the bus if a power pin is configured.
func (b *Bus) Close() {
	if b.power != nil {
		b.power.Set(false)
	}
}

// Reset issues a reset pulse and reports whether any device answered with a
// presence pulse. Absence of a presence pulse is not an error at this level.
func (b *Bus) Reset() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reset()
}

// SearchDevices enumerates every device on the bus. It returns an empty list
// when no presence pulse is detected.
func (b *Bus) SearchDevices() []Address {
	b.mu.Lock()
	defer b.mu.Unlock()

	var devices []Address
	if !b.reset() {
		println("Warn: onewire: no presence pulse - check wiring and pull-up")
		return devices
	}

	b.lastDiscrepancy = 0
	b.lastDeviceFlag = false
	b.lastFamilyDiscrepancy = 0

	var rom [8]byte
	for len(devices) < maxDevices {
		if !b.searchNext(&rom) {
			break
		}
		if rom[0] == 0 {
			continue // zero family code: noise, not a device
		}
		var addr Address
		for i := 0; i < 8; i++ {
			addr = addr<<8 | Address(rom[i])
		}
		devices = append(devices, addr)
	}
	return devices
}

// RequestTemperatures broadcasts CONVERT T to every device on the bus
// (SKIP ROM addressing). It fails with no_presence if the line is dead.
func (b *Bus) RequestTemperatures() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.reset() {
		return errcode.NoPresence
	}
	b.writeByte(cmdSkipROM)
	b.writeByte(cmdConvertT)
	return nil
}

// StartConversion addresses one device (MATCH ROM) and starts its conversion.
func (b *Bus) StartConversion(addr Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.reset() {
		return errcode.NoPresence
	}
	b.matchROM(addr)
	b.writeByte(cmdConvertT)
	return nil
}

// ReadTemperature addresses one device, reads its 9-byte scratchpad, checks
// the CRC and decodes the signed 16-bit fixed-point value into °C.
func (b *Bus) ReadTemperature(addr Address) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.reset() {
		return 0, errcode.NoPresence
	}
	b.matchROM(addr)
	b.writeByte(cmdReadScratchpad)

	var scratch [9]byte
	for i := range scratch {
		scratch[i] = b.readByte()
	}
	if !Check(scratch[:]) {
		return 0, errcode.InvalidCRC
	}

	raw := int16(scratch[1])<<8 | int16(scratch[0])
	return float64(raw) / 16.0, nil
}

// ---------------------------------------------------------------------------
// Bit-level protocol. Timings follow the DS18B20 datasheet and must not be
// reordered: bytes go out LSB first.
// ---------------------------------------------------------------------------

func (b *Bus) reset() bool {
	b.pin.Low()
	b.delay(480) // hold reset pulse

	b.pin.Release()
	b.delay(70) // presence pulse window

	presence := !b.pin.Read()

	b.delay(410) // complete the 960µs slot
	return presence
}

func (b *Bus) writeBit(bit bool) {
	if bit {
		b.pin.Low()
		b.delay(6)
		b.pin.Release()
		b.delay(64)
	} else {
		b.pin.Low()
		b.delay(60)
		b.pin.Release()
		b.delay(10)
	}
}

func (b *Bus) readBit() bool {
	b.pin.Low()
	b.delay(3) // initiate read slot
	b.pin.Release()
	b.delay(10)

	bit := b.pin.Read()

	b.delay(53) // pad out the slot
	return bit
}

func (b *Bus) writeByte(v byte) {
	for i := 0; i < 8; i++ {
		b.writeBit((v>>i)&1 == 1)
	}
}

func (b *Bus) readByte() byte {
	var v byte
	for i := 0; i < 8; i++ {
		if b.readBit() {
			v |= 1 << i
		}
	}
	return v
}

func (b *Bus) matchROM(addr Address) {
	b.writeByte(cmdMatchROM)
	for i := 0; i < 8; i++ {
		b.writeByte(byte(addr >> ((7 - i) * 8))) // family code first
	}
}

// searchNext performs one step of the Dallas binary-tree ROM search,
// producing the next device ROM in rom. It returns false when the pass is
// exhausted. Search state on the Bus persists between calls within a pass.
func (b *Bus) searchNext(rom *[8]byte) bool {
	if b.lastDeviceFlag {
		return false
	}

	if !b.reset() {
		b.lastDiscrepancy = 0
		b.lastDeviceFlag = false
		b.lastFamilyDiscrepancy = 0
		return false
	}

	b.writeByte(cmdSearchROM)

	idBitNumber := 1
	lastZero := 0
	romByte := 0
	romMask := byte(1)
	found := false

	for romByte < 8 {
		idBit := b.readBit()
		cmpIDBit := b.readBit()

		if idBit && cmpIDBit {
			break // no device answered this branch
		}

		var direction bool
		if idBit != cmpIDBit {
			direction = idBit // all remaining devices agree
		} else {
			// Discrepancy: both 0s and 1s on the bus at this position.
			if idBitNumber < b.lastDiscrepancy {
				direction = rom[romByte]&romMask != 0
			} else {
				direction = idBitNumber == b.lastDiscrepancy
			}
			if !direction {
				lastZero = idBitNumber
				if lastZero < 9 {
					b.lastFamilyDiscrepancy = lastZero
				}
			}
		}

		if direction {
			rom[romByte] |= romMask
		} else {
			rom[romByte] &^= romMask
		}
		b.writeBit(direction)

		idBitNumber++
		romMask <<= 1
		if romMask == 0 {
			romByte++
			romMask = 1
		}
	}

	if idBitNumber > 64 {
		b.lastDiscrepancy = lastZero
		if b.lastDiscrepancy == 0 {
			b.lastDeviceFlag = true
		}
		found = true
	}

	if !found || rom[0] == 0 {
		b.lastDiscrepancy = 0
		b.lastDeviceFlag = false
		b.lastFamilyDiscrepancy = 0
		return false
	}
	return true
}

// Package aht20 drives the AHT20 I2C humidity/temperature sensor with a
// two-phase API that fits a polled control loop:
//
//	d.Trigger()           // start a measurement, returns immediately
//	err := d.Collect(&s)  // fetch when ready; ErrNotReady while converting
//
// A conversion takes about 80 ms; callers schedule Collect themselves rather
// than sleeping on the bus.
//
// I2C.Tx must perform a write followed by a repeated-start read when both
// buffers are provided, without releasing the bus.
package aht20

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Address is the fixed AHT20 I2C address.
const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrNotReady = errors.New("aht20: not ready")
	ErrProtocol = errors.New("aht20: protocol error")
)

// ConversionTime is the nominal wait between Trigger and a successful
// Collect.
const ConversionTime = 80 * time.Millisecond

// Device wraps an I2C connection to one AHT20.
type Device struct {
	bus  drivers.I2C
	addr uint16
	buf  [7]byte
}

// New binds the device to a configured I2C bus.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, addr: Address}
}

// Configure checks the calibration bit and initialises the device if it
// comes up uncalibrated, as after power loss.
func (d *Device) Configure() error {
	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.addr, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond) // init settle time
	return nil
}

// Reset issues a soft reset; allow ~20ms before the next command.
func (d *Device) Reset() error {
	return d.bus.Tx(d.addr, []byte{cmdSoftReset}, nil)
}

// Status reads the status byte.
func (d *Device) Status() (byte, error) {
	data := []byte{0}
	if err := d.bus.Tx(d.addr, []byte{cmdStatus}, data); err != nil {
		return 0, err
	}
	return data[0], nil
}

// Trigger starts one measurement. It never blocks for the conversion.
func (d *Device) Trigger() error {
	return d.bus.Tx(d.addr, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

// Collect reads the measurement started by Trigger. ErrNotReady means the
// conversion is still running; try again later.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.addr, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 {
		return ErrProtocol
	}
	if data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	out.RawHumidity = uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4
	out.RawTemp = uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5])
	return nil
}

// Sample holds one raw 20-bit measurement pair.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

// RelHumidity converts to percent relative humidity.
func (s Sample) RelHumidity() float64 {
	return float64(s.RawHumidity) * 100 / 0x100000
}

// Celsius converts to degrees Celsius.
func (s Sample) Celsius() float64 {
	return float64(s.RawTemp)*200/0x100000 - 50
}

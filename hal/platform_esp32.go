//go:build esp32

package hal

import (
	"machine"

	"modesp/errcode"
	"modesp/hal/boards"
	"modesp/onewire"
)

// ESP32 build: resources are bound to machine pins. Built with tinygo only.

type mcuGpioOutput struct {
	pin        machine.Pin
	activeHigh bool
}

func (p *mcuGpioOutput) Set(on bool) { p.pin.Set(on == p.activeHigh) }
func (p *mcuGpioOutput) Get() bool   { return p.pin.Get() == p.activeHigh }
func (p *mcuGpioOutput) Toggle()     { p.pin.Set(!p.pin.Get()) }

type mcuGpioInput struct{ pin machine.Pin }

func (p *mcuGpioInput) Read() bool { return p.pin.Get() }

// mcuOneWirePin emulates an open-drain line by flipping the pin between
// driven-low output and pulled-up input.
type mcuOneWirePin struct{ pin machine.Pin }

func (p *mcuOneWirePin) Low() {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.pin.Low()
}

func (p *mcuOneWirePin) Release() {
	p.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
}

func (p *mcuOneWirePin) Read() bool { return p.pin.Get() }

type mcuPowerPin struct{ pin machine.Pin }

func (p *mcuPowerPin) Set(high bool) { p.pin.Set(high) }

// adc1Pins maps ADC1 channel numbers to ESP32 GPIOs.
var adc1Pins = [8]machine.Pin{36, 37, 38, 39, 32, 33, 34, 35}

type mcuADCChannel struct{ adc machine.ADC }

func (c *mcuADCChannel) ReadMilliVolts() (int32, error) {
	// machine.ADC.Get is a 16-bit reading over a 0..3300 mV span after the
	// 12 dB attenuation configured at init.
	raw := c.adc.Get()
	return int32(uint32(raw) * 3300 / 0xFFFF), nil
}

var adcInitialized bool

func newGpioOutput(def boards.GpioOutputDef) (GpioOutput, error) {
	pin := machine.Pin(def.Pin)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	out := &mcuGpioOutput{pin: pin, activeHigh: def.ActiveHigh}
	out.Set(false)
	return out, nil
}

func newGpioInput(def boards.GpioInputDef) (GpioInput, error) {
	pin := machine.Pin(def.Pin)
	mode := machine.PinInput
	if def.PullUp {
		mode = machine.PinInputPullup
	}
	pin.Configure(machine.PinConfig{Mode: mode})
	return &mcuGpioInput{pin: pin}, nil
}

func newOneWireBus(def boards.OneWireDef) (OneWireBus, error) {
	cfg := onewire.Config{Pin: &mcuOneWirePin{pin: machine.Pin(def.DataPin)}}
	if def.PowerPin != boards.NoPin {
		power := machine.Pin(def.PowerPin)
		power.Configure(machine.PinConfig{Mode: machine.PinOutput})
		cfg.Power = &mcuPowerPin{pin: power}
	}
	return onewire.New(cfg), nil
}

func newADCChannel(def boards.ADCDef) (ADCChannel, error) {
	if int(def.Channel) >= len(adc1Pins) {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "hal.newADCChannel",
			Msg: "adc channel out of range"}
	}
	if !adcInitialized {
		machine.InitADC()
		adcInitialized = true
	}
	adc := machine.ADC{Pin: adc1Pins[def.Channel]}
	adc.Configure(machine.ADCConfig{})
	return &mcuADCChannel{adc: adc}, nil
}

func newPWMOutput(boards.PWMDef) (PWMOutput, error) {
	// TODO: bind to the ledc peripheral once tinygo exposes it for esp32.
	return nil, errcode.Unsupported
}

func newI2CBus(def boards.I2CDef) (I2CBus, error) {
	bus := machine.I2C0
	if def.Port == 1 {
		bus = machine.I2C1
	}
	err := bus.Configure(machine.I2CConfig{
		SCL:       machine.Pin(def.SCL),
		SDA:       machine.Pin(def.SDA),
		Frequency: def.FreqHz,
	})
	if err != nil {
		return nil, err
	}
	return bus, nil
}

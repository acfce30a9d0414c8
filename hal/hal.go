// Package hal owns every hardware resource on the board and hands out typed
// references by hal_id. Resources are created eagerly from a board table at
// Init; afterwards the maps are read-only, so lookups after Init need no
// locking on the hot path. Drivers receive the HAL at their own Init and must
// not construct hardware resources themselves.
package hal

import (
	"sort"
	"sync"

	"tinygo.org/x/drivers"

	"modesp/errcode"
	"modesp/hal/boards"
	"modesp/onewire"
)

// GpioOutput is a latched digital output. Set/Get operate in logical terms;
// active-low wiring is handled behind the interface.
type GpioOutput interface {
	Set(on bool)
	Get() bool
	Toggle()
}

// GpioInput is a debounce-free digital input; drivers layer their own
// debounce on top.
type GpioInput interface {
	Read() bool
}

// OneWireBus is the per-line 1-Wire master. Implementations serialize
// transactions internally, so concurrent drivers may share one bus.
type OneWireBus interface {
	Reset() bool
	SearchDevices() []onewire.Address
	RequestTemperatures() error
	StartConversion(addr onewire.Address) error
	ReadTemperature(addr onewire.Address) (float64, error)
}

// ADCChannel is a calibrated analog input.
type ADCChannel interface {
	ReadMilliVolts() (int32, error)
}

// PWMOutput drives a duty fraction in [0,1].
type PWMOutput interface {
	SetDuty(fraction float64) error
	Duty() float64
}

// I2CBus is the tinygo drivers bus contract.
type I2CBus = drivers.I2C

// HAL is the board's resource owner. One instance per process; not copyable.
// Construct with New, call Init once, then share the pointer.
type HAL struct {
	mu          sync.Mutex
	board       boards.Def
	initialized bool

	gpioOutputs map[string]GpioOutput
	gpioInputs  map[string]GpioInput
	oneWire     map[string]OneWireBus
	adc         map[string]ADCChannel
	pwm         map[string]PWMOutput
	i2c         map[string]I2CBus
}

// New prepares a HAL for the given board. Nothing touches hardware until
// Init.
func New(board boards.Def) *HAL {
	return &HAL{
		board:       board,
		gpioOutputs: make(map[string]GpioOutput),
		gpioInputs:  make(map[string]GpioInput),
		oneWire:     make(map[string]OneWireBus),
		adc:         make(map[string]ADCChannel),
		pwm:         make(map[string]PWMOutput),
		i2c:         make(map[string]I2CBus),
	}
}

// BoardName reports the configured board revision.
func (h *HAL) BoardName() string { return h.board.Name }

// Init eagerly constructs every resource in the board table. It is
// idempotent; a second call is a no-op. A resource that fails to construct is
// logged and skipped so one bad channel does not take the whole board down.
func (h *HAL) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.initialized {
		return nil
	}

	for _, def := range h.board.GpioOutputs {
		out, err := newGpioOutput(def)
		if err != nil {
			println("Error: hal: gpio output", def.ID, "init failed:", err.Error())
			continue
		}
		h.gpioOutputs[def.ID] = out
	}
	for _, def := range h.board.GpioInputs {
		in, err := newGpioInput(def)
		if err != nil {
			println("Error: hal: gpio input", def.ID, "init failed:", err.Error())
			continue
		}
		h.gpioInputs[def.ID] = in
	}
	for _, def := range h.board.OneWire {
		ow, err := newOneWireBus(def)
		if err != nil {
			println("Error: hal: onewire bus", def.ID, "init failed:", err.Error())
			continue
		}
		h.oneWire[def.ID] = ow
	}
	for _, def := range h.board.ADC {
		ch, err := newADCChannel(def)
		if err != nil {
			println("Error: hal: adc channel", def.ID, "init failed:", err.Error())
			continue
		}
		h.adc[def.ID] = ch
	}
	for _, def := range h.board.PWM {
		p, err := newPWMOutput(def)
		if err != nil {
			println("Error: hal: pwm output", def.ID, "init failed:", err.Error())
			continue
		}
		h.pwm[def.ID] = p
	}
	for _, def := range h.board.I2C {
		b, err := newI2CBus(def)
		if err != nil {
			println("Error: hal: i2c bus", def.ID, "init failed:", err.Error())
			continue
		}
		h.i2c[def.ID] = b
	}

	h.initialized = true
	println("Info: hal: board", h.board.Name, "ready:",
		len(h.gpioOutputs), "outputs,", len(h.gpioInputs), "inputs,",
		len(h.oneWire), "onewire,", len(h.adc), "adc,",
		len(h.pwm), "pwm,", len(h.i2c), "i2c")
	return nil
}

func unknownID(op, id string) error {
	return &errcode.E{C: errcode.UnknownHalID, Op: op, Msg: id}
}

// GpioOutput resolves a digital output by hal_id.
func (h *HAL) GpioOutput(id string) (GpioOutput, error) {
	if out, ok := h.gpioOutputs[id]; ok {
		return out, nil
	}
	return nil, unknownID("hal.GpioOutput", id)
}

// GpioInput resolves a digital input by hal_id.
func (h *HAL) GpioInput(id string) (GpioInput, error) {
	if in, ok := h.gpioInputs[id]; ok {
		return in, nil
	}
	return nil, unknownID("hal.GpioInput", id)
}

// OneWireBus resolves a 1-Wire bus by hal_id.
func (h *HAL) OneWireBus(id string) (OneWireBus, error) {
	if b, ok := h.oneWire[id]; ok {
		return b, nil
	}
	return nil, unknownID("hal.OneWireBus", id)
}

// ADCChannel resolves an analog input by hal_id.
func (h *HAL) ADCChannel(id string) (ADCChannel, error) {
	if ch, ok := h.adc[id]; ok {
		return ch, nil
	}
	return nil, unknownID("hal.ADCChannel", id)
}

// PWMOutput resolves a PWM channel by hal_id.
func (h *HAL) PWMOutput(id string) (PWMOutput, error) {
	if p, ok := h.pwm[id]; ok {
		return p, nil
	}
	return nil, unknownID("hal.PWMOutput", id)
}

// I2CBus resolves an I2C bus by hal_id.
func (h *HAL) I2CBus(id string) (I2CBus, error) {
	if b, ok := h.i2c[id]; ok {
		return b, nil
	}
	return nil, unknownID("hal.I2CBus", id)
}

func (h *HAL) HasGpioOutput(id string) bool { _, ok := h.gpioOutputs[id]; return ok }
func (h *HAL) HasGpioInput(id string) bool  { _, ok := h.gpioInputs[id]; return ok }
func (h *HAL) HasOneWireBus(id string) bool { _, ok := h.oneWire[id]; return ok }
func (h *HAL) HasADCChannel(id string) bool { _, ok := h.adc[id]; return ok }
func (h *HAL) HasPWMOutput(id string) bool  { _, ok := h.pwm[id]; return ok }
func (h *HAL) HasI2CBus(id string) bool     { _, ok := h.i2c[id]; return ok }

// OneWireBusIDs lists the configured 1-Wire buses, sorted. Used by the
// console scan command.
func (h *HAL) OneWireBusIDs() []string {
	ids := make([]string, 0, len(h.oneWire))
	for id := range h.oneWire {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Attach* bind a resource under an id directly, replacing whatever the board
// table produced. Host composition and tests use these to install fakes or
// simulated lines; call before handing the HAL to drivers.

func (h *HAL) AttachGpioOutput(id string, out GpioOutput) { h.gpioOutputs[id] = out }
func (h *HAL) AttachGpioInput(id string, in GpioInput)    { h.gpioInputs[id] = in }
func (h *HAL) AttachOneWireBus(id string, b OneWireBus)   { h.oneWire[id] = b }
func (h *HAL) AttachADCChannel(id string, ch ADCChannel)  { h.adc[id] = ch }
func (h *HAL) AttachPWMOutput(id string, p PWMOutput)     { h.pwm[id] = p }
func (h *HAL) AttachI2CBus(id string, b I2CBus)           { h.i2c[id] = b }

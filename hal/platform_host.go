//go:build !esp32

package hal

import (
	"sync"

	"modesp/hal/boards"
	"modesp/onewire"
)

// Host build: every factory returns an inert fake so the full firmware runs
// in a normal process. Tests either drive these fakes directly (fetch them
// with a type assertion after Init) or Attach their own.

// FakeGpioOutput is a latched level with no hardware behind it.
type FakeGpioOutput struct {
	mu    sync.Mutex
	level bool
}

func (p *FakeGpioOutput) Set(on bool) {
	p.mu.Lock()
	p.level = on
	p.mu.Unlock()
}

func (p *FakeGpioOutput) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakeGpioOutput) Toggle() {
	p.mu.Lock()
	p.level = !p.level
	p.mu.Unlock()
}

// FakeGpioInput reads a level that tests set.
type FakeGpioInput struct {
	mu    sync.Mutex
	level bool
}

func (p *FakeGpioInput) Read() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// SetLevel drives the simulated input.
func (p *FakeGpioInput) SetLevel(on bool) {
	p.mu.Lock()
	p.level = on
	p.mu.Unlock()
}

// FakeADCChannel reports a fixed voltage that tests adjust.
type FakeADCChannel struct {
	mu sync.Mutex
	mv int32
}

func (c *FakeADCChannel) ReadMilliVolts() (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mv, nil
}

// SetMilliVolts sets the simulated input voltage.
func (c *FakeADCChannel) SetMilliVolts(mv int32) {
	c.mu.Lock()
	c.mv = mv
	c.mu.Unlock()
}

// FakePWMOutput stores the last duty fraction.
type FakePWMOutput struct {
	mu   sync.Mutex
	duty float64
}

func (p *FakePWMOutput) SetDuty(fraction float64) error {
	p.mu.Lock()
	p.duty = fraction
	p.mu.Unlock()
	return nil
}

func (p *FakePWMOutput) Duty() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// FakeI2C records the last transaction and answers reads with zeros.
type FakeI2C struct {
	mu     sync.Mutex
	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
}

func (b *FakeI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LastTx.Addr = addr
	b.LastTx.W = append([]byte(nil), w...)
	b.LastTx.Rn = len(r)
	for i := range r {
		r[i] = 0
	}
	return nil
}

// openLine is a 1-Wire data line with nothing attached: released level is
// high, no device ever answers.
type openLine struct{ low bool }

func (l *openLine) Low()       { l.low = true }
func (l *openLine) Release()   { l.low = false }
func (l *openLine) Read() bool { return !l.low }

func newGpioOutput(boards.GpioOutputDef) (GpioOutput, error) { return &FakeGpioOutput{}, nil }
func newGpioInput(boards.GpioInputDef) (GpioInput, error)    { return &FakeGpioInput{}, nil }
func newADCChannel(boards.ADCDef) (ADCChannel, error)        { return &FakeADCChannel{}, nil }
func newPWMOutput(boards.PWMDef) (PWMOutput, error)          { return &FakePWMOutput{}, nil }
func newI2CBus(boards.I2CDef) (I2CBus, error)                { return &FakeI2C{}, nil }

func newOneWireBus(boards.OneWireDef) (OneWireBus, error) {
	// A real master over an open line: reset sees no presence, searches come
	// back empty. Tests attach simulated lines instead.
	return onewire.New(onewire.Config{Pin: &openLine{}}), nil
}

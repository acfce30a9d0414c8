package aht20drv

import (
	"testing"

	"modesp/drivers/aht20"
	"modesp/errcode"
	"modesp/hal"
	"modesp/hal/boards"
)

type fakeDevice struct {
	sample    aht20.Sample
	notReady  bool
	configErr error
	triggered int
	collected int
}

func (f *fakeDevice) Configure() error { return f.configErr }

func (f *fakeDevice) Trigger() error {
	f.triggered++
	return nil
}

func (f *fakeDevice) Collect(s *aht20.Sample) error {
	f.collected++
	if f.notReady {
		return aht20.ErrNotReady
	}
	*s = f.sample
	return nil
}

type testClock struct{ ms int64 }

func (c *testClock) now() int64       { return c.ms }
func (c *testClock) advance(ms int64) { c.ms += ms }

func newTestDriver(t *testing.T, dev *fakeDevice, cfg map[string]any) (*Driver, *testClock) {
	t.Helper()
	h := hal.New(boards.RevBRipeningChamber())
	if err := h.Init(); err != nil {
		t.Fatalf("hal init: %v", err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	if _, ok := cfg["hal_id"]; !ok {
		cfg["hal_id"] = "I2C_SENSORS"
	}
	d := New()
	d.dev = dev
	clk := &testClock{ms: 2_000_000}
	d.nowMs = clk.now
	if err := d.Init(h, cfg); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return d, clk
}

func TestTemperatureCycle(t *testing.T) {
	dev := &fakeDevice{sample: aht20.Sample{RawTemp: 0x60000}} // 25°C
	d, clk := newTestDriver(t, dev, nil)

	if r := d.Read(); r.IsValid {
		t.Error("valid reading before any conversion")
	}
	if dev.triggered != 1 {
		t.Fatalf("triggered = %d", dev.triggered)
	}

	clk.advance(79)
	d.Read()
	if dev.collected != 0 {
		t.Error("collected before the conversion time elapsed")
	}

	clk.advance(1)
	r := d.Read()
	if !r.IsValid || r.Value != 25 {
		t.Fatalf("reading = %+v, want valid 25", r)
	}
	if r.Unit != "°C" {
		t.Errorf("unit = %q", r.Unit)
	}
}

func TestHumidityChannel(t *testing.T) {
	dev := &fakeDevice{sample: aht20.Sample{RawHumidity: 0x80000}} // 50%
	d, clk := newTestDriver(t, dev, map[string]any{"channel": "humidity"})

	d.Read()
	clk.advance(80)
	r := d.Read()
	if !r.IsValid || r.Value != 50 {
		t.Fatalf("reading = %+v, want valid 50", r)
	}
	if r.Unit != "%RH" {
		t.Errorf("unit = %q", r.Unit)
	}
}

func TestNotReadyKeepsPolling(t *testing.T) {
	dev := &fakeDevice{notReady: true}
	d, clk := newTestDriver(t, dev, nil)

	d.Read()
	clk.advance(80)
	d.Read()
	d.Read()
	if dev.collected != 2 {
		t.Errorf("collected = %d, want 2 polls", dev.collected)
	}
	if dev.triggered != 1 {
		t.Errorf("triggered = %d, want no re-trigger while converting", dev.triggered)
	}

	// When the device finally answers, the value lands.
	dev.notReady = false
	dev.sample = aht20.Sample{RawTemp: 0x60000}
	if r := d.Read(); !r.IsValid || r.Value != 25 {
		t.Errorf("reading = %+v, want valid 25", r)
	}
}

func TestCachedValueServedMidCycle(t *testing.T) {
	dev := &fakeDevice{sample: aht20.Sample{RawTemp: 0x60000}}
	d, clk := newTestDriver(t, dev, nil)

	d.Read()
	clk.advance(80)
	d.Read() // fresh 25°C cached

	// New cycle starts; mid-cycle reads serve the cache.
	if r := d.Read(); !r.IsValid || r.Value != 25 {
		t.Errorf("mid-cycle reading = %+v, want cached 25", r)
	}
}

func TestInitRejectsBadChannel(t *testing.T) {
	h := hal.New(boards.RevBRipeningChamber())
	if err := h.Init(); err != nil {
		t.Fatalf("hal init: %v", err)
	}
	d := New()
	d.dev = &fakeDevice{}
	err := d.Init(h, map[string]any{"hal_id": "I2C_SENSORS", "channel": "pressure"})
	if !errcode.Is(err, errcode.InvalidConfig) {
		t.Errorf("err = %v, want invalid_config", err)
	}
}

//go:build !esp32

package sensors

import (
	"testing"

	"modesp/bus"
	"modesp/drivers/sensor"
	"modesp/hal"
	"modesp/hal/boards"
)

type testClock struct{ ms int64 }

func (c *testClock) now() int64      { return c.ms }
func (c *testClock) advance(d int64) { c.ms += d }

// fakeDriver reads from an injected function so tests can rig failures.
type fakeDriver struct {
	read      func() sensor.Reading
	available bool
	initErr   error
}

func (f *fakeDriver) Init(h *hal.HAL, cfg map[string]any) error { return f.initErr }
func (f *fakeDriver) Read() sensor.Reading                      { return f.read() }
func (f *fakeDriver) Type() string                              { return "fake" }
func (f *fakeDriver) Description() string                       { return "fake sensor" }
func (f *fakeDriver) IsAvailable() bool                         { return f.available }
func (f *fakeDriver) GetConfig() map[string]any                 { return nil }
func (f *fakeDriver) SetConfig(map[string]any) error            { return nil }
func (f *fakeDriver) UISchema() map[string]any                  { return nil }
func (f *fakeDriver) Calibrate(map[string]any) error            { return nil }
func (f *fakeDriver) Diagnostics() map[string]any               { return map[string]any{"fake": true} }

func newTestModule(t *testing.T, drivers map[string]*fakeDriver) (*Module, *bus.Bus, *testClock) {
	t.Helper()
	h := hal.New(boards.RevARefrigerator())
	if err := h.Init(); err != nil {
		t.Fatalf("hal init: %v", err)
	}
	reg := sensor.NewRegistry()
	for name, d := range drivers {
		drv := d
		if !reg.Register(name, func() sensor.Driver { return drv }) {
			t.Fatalf("register %s", name)
		}
	}

	b := bus.NewBus(64)
	clk := &testClock{ms: 1_000_000}
	m := New(h, reg, b.NewConnection("sensors-test"))
	m.nowMs = clk.now
	return m, b, clk
}

func entry(role, typ, key string) map[string]any {
	return map[string]any{"role": role, "type": typ, "publish_key": key}
}

func TestConfigureSkipsBrokenEntries(t *testing.T) {
	good := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(1, "x") }, available: true}
	m, _, _ := newTestModule(t, map[string]*fakeDriver{"fake": good})

	m.Configure(map[string]any{"sensors": []any{
		entry("chamber", "fake", "state.sensor.chamber"),
		entry("ghost", "no_such_type", "state.sensor.ghost"),
		map[string]any{"role": "incomplete"},
	}})

	roles := m.Roles()
	if len(roles) != 1 || roles[0] != "chamber" {
		t.Fatalf("roles = %v, want [chamber]", roles)
	}
}

func TestUpdatePublishesRetainedReadings(t *testing.T) {
	d := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(4.5, "°C") }, available: true}
	m, b, clk := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{
		"poll_interval_ms": float64(100),
		"sensors":          []any{entry("chamber", "fake", "state.sensor.chamber")},
	})

	clk.advance(100)
	m.Update()

	msg, ok := b.Retained(bus.Parse("state.sensor.chamber"))
	if !ok {
		t.Fatal("no retained reading published")
	}
	r, ok := msg.Payload.(sensor.Reading)
	if !ok || !r.IsValid || r.Value != 4.5 || r.Unit != "°C" {
		t.Fatalf("payload = %#v", msg.Payload)
	}
}

func TestUpdateEmitsReadingEvents(t *testing.T) {
	d := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(1, "x") }, available: true}
	m, b, clk := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"sensors": []any{entry("chamber", "fake", "state.sensor.chamber")}})

	conn := b.NewConnection("listener")
	sub := conn.Subscribe(bus.T("sensor", "reading"))

	clk.advance(1_000)
	m.Update()

	select {
	case msg := <-sub.Channel():
		ev := msg.Payload.(map[string]any)
		if ev["role"] != "chamber" || ev["type"] != "fake" {
			t.Errorf("event = %v", ev)
		}
	default:
		t.Fatal("no sensor.reading event")
	}
}

func TestPollIntervalGatesReads(t *testing.T) {
	reads := 0
	d := &fakeDriver{read: func() sensor.Reading { reads++; return sensor.Valid(1, "x") }, available: true}
	m, _, clk := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{
		"poll_interval_ms": float64(200),
		"sensors":          []any{entry("chamber", "fake", "state.sensor.chamber")},
	})

	clk.advance(200)
	m.Update()
	clk.advance(100)
	m.Update() // interval not yet elapsed
	if reads != 1 {
		t.Fatalf("reads = %d, want 1", reads)
	}
	clk.advance(100)
	m.Update()
	if reads != 2 {
		t.Fatalf("reads = %d, want 2", reads)
	}
}

func TestPublishOnErrorFalseWithholdsInvalid(t *testing.T) {
	d := &fakeDriver{read: func() sensor.Reading {
		return sensor.Reading{Unit: "x", Error: "broken"}
	}, available: true}
	m, b, clk := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{
		"publish_on_error": false,
		"sensors":          []any{entry("chamber", "fake", "state.sensor.chamber")},
	})

	clk.advance(1_000)
	m.Update()
	if _, ok := b.Retained(bus.Parse("state.sensor.chamber")); ok {
		t.Fatal("invalid reading published despite publish_on_error=false")
	}
}

// One rigged driver out of three must not stop the cycle. The failing
// sensor's counter climbs every poll while the good ones keep publishing.
func TestOneBadSensorNeverBlocksOthers(t *testing.T) {
	good := func() sensor.Reading { return sensor.Valid(2, "°C") }
	bad := func() sensor.Reading { panic("wire fault") }

	m, b, clk := newTestModule(t, map[string]*fakeDriver{
		"good_a": {read: good, available: true},
		"bad":    {read: bad, available: true},
		"good_b": {read: good, available: true},
	})
	m.Configure(map[string]any{"sensors": []any{
		entry("alpha", "good_a", "state.sensor.alpha"),
		entry("broken", "bad", "state.sensor.broken"),
		entry("beta", "good_b", "state.sensor.beta"),
	}})

	for cycle := 1; cycle <= 3; cycle++ {
		clk.advance(1_000)
		m.Update()

		for _, key := range []string{"state.sensor.alpha", "state.sensor.beta"} {
			msg, ok := b.Retained(bus.Parse(key))
			if !ok {
				t.Fatalf("cycle %d: %s not published", cycle, key)
			}
			if r := msg.Payload.(sensor.Reading); !r.IsValid {
				t.Fatalf("cycle %d: %s invalid: %+v", cycle, key, r)
			}
		}

		r, ok := m.Reading("broken")
		if !ok || r.IsValid || r.Error != "driver panic" {
			t.Fatalf("cycle %d: broken reading = %+v", cycle, r)
		}
		var inst *instance
		for _, i := range m.instances {
			if i.role == "broken" {
				inst = i
			}
		}
		if inst.pollFailures != uint32(cycle) {
			t.Fatalf("cycle %d: pollFailures = %d", cycle, inst.pollFailures)
		}
	}
}

func TestHealthScore(t *testing.T) {
	good := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(1, "x") }, available: true}
	bad := &fakeDriver{read: func() sensor.Reading {
		return sensor.Reading{Unit: "x", Error: "dead"}
	}, available: true}
	m, _, clk := newTestModule(t, map[string]*fakeDriver{"good": good, "bad": bad})
	m.Configure(map[string]any{"sensors": []any{
		entry("a", "good", "state.sensor.a"),
		entry("b", "bad", "state.sensor.b"),
	}})

	if m.HealthScore() != 100 {
		t.Fatalf("initial score = %d, want 100", m.HealthScore())
	}
	for i := 0; i < failureThreshold; i++ {
		clk.advance(1_000)
		m.Update()
	}
	if m.HealthScore() != 50 {
		t.Fatalf("score = %d, want 50", m.HealthScore())
	}
}

func TestConfigTopicReconfiguresWholesale(t *testing.T) {
	d := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(4.5, "°C") }, available: true}
	m, b, clk := newTestModule(t, map[string]*fakeDriver{"fake": d})

	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "sensors"), map[string]any{
		"sensors": []any{entry("chamber_temp", "fake", "state.sensor.chamber_temp")},
	}, true))

	clk.advance(100)
	m.Update()
	if roles := m.Roles(); len(roles) != 1 || roles[0] != "chamber_temp" {
		t.Fatalf("roles after first config = %v", roles)
	}
	if _, ok := b.Retained(bus.Parse("state.sensor.chamber_temp")); !ok {
		t.Fatal("no reading published after config over the bus")
	}

	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "sensors"), map[string]any{
		"sensors": []any{entry("evaporator_temp", "fake", "state.sensor.evaporator_temp")},
	}, true))

	clk.advance(100)
	m.Update()
	if roles := m.Roles(); len(roles) != 1 || roles[0] != "evaporator_temp" {
		t.Fatalf("roles after reconfig = %v", roles)
	}
	if _, ok := m.Reading("chamber_temp"); ok {
		t.Fatal("replaced role still readable after reconfig")
	}
}

func TestRetainedConfigAppliesOnFirstUpdate(t *testing.T) {
	h := hal.New(boards.RevARefrigerator())
	if err := h.Init(); err != nil {
		t.Fatalf("hal init: %v", err)
	}
	d := &fakeDriver{read: func() sensor.Reading { return sensor.Valid(1, "x") }, available: true}
	reg := sensor.NewRegistry()
	reg.Register("fake", func() sensor.Driver { return d })

	// Config section retained before the module exists, as the composition
	// roots publish it.
	b := bus.NewBus(64)
	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "sensors"), map[string]any{
		"sensors": []any{entry("chamber", "fake", "state.sensor.chamber")},
	}, true))

	m := New(h, reg, b.NewConnection("sensors"))
	clk := &testClock{ms: 1_000_000}
	m.nowMs = clk.now

	m.Update()
	if roles := m.Roles(); len(roles) != 1 || roles[0] != "chamber" {
		t.Fatalf("roles = %v, want [chamber]", roles)
	}
}

//go:build !esp32

package actuators

import (
	"testing"

	"modesp/bus"
	"modesp/drivers/actuator"
	"modesp/errcode"
	"modesp/hal"
	"modesp/hal/boards"
)

// fakeDriver records calls; exec and update are injectable so tests can rig
// failures.
type fakeDriver struct {
	exec      func(cmd any) error
	update    func()
	active    bool
	available bool
	updates   int
	stopped   bool
}

func (f *fakeDriver) Init(h *hal.HAL, cfg map[string]any) error { return nil }
func (f *fakeDriver) ExecuteCommand(cmd any) error {
	if f.exec != nil {
		return f.exec(cmd)
	}
	var err error
	f.active, err = actuator.BoolCommand(cmd)
	return err
}
func (f *fakeDriver) Update() {
	f.updates++
	if f.update != nil {
		f.update()
	}
}
func (f *fakeDriver) EmergencyStop() {
	f.stopped = true
	f.active = false
}
func (f *fakeDriver) Status() actuator.Status {
	return actuator.Status{IsActive: f.active, IsHealthy: f.available}
}
func (f *fakeDriver) Type() string                   { return "fake" }
func (f *fakeDriver) Description() string            { return "fake actuator" }
func (f *fakeDriver) IsAvailable() bool              { return f.available }
func (f *fakeDriver) GetConfig() map[string]any      { return nil }
func (f *fakeDriver) SetConfig(map[string]any) error { return nil }
func (f *fakeDriver) UISchema() map[string]any       { return nil }
func (f *fakeDriver) Diagnostics() map[string]any    { return map[string]any{"fake": true} }

func newTestModule(t *testing.T, drivers map[string]*fakeDriver) (*Module, *bus.Bus) {
	t.Helper()
	h := hal.New(boards.RevARefrigerator())
	if err := h.Init(); err != nil {
		t.Fatalf("hal init: %v", err)
	}
	reg := actuator.NewRegistry()
	for name, d := range drivers {
		drv := d
		if !reg.Register(name, func() actuator.Driver { return drv }) {
			t.Fatalf("register %s", name)
		}
	}
	b := bus.NewBus(64)
	return New(h, reg, b.NewConnection("actuators-test")), b
}

func entry(role, typ string) map[string]any {
	return map[string]any{
		"role":        role,
		"type":        typ,
		"command_key": "command." + role,
		"status_key":  "state.actuator." + role,
	}
}

func TestConfigurePublishesInitialStatus(t *testing.T) {
	d := &fakeDriver{available: true}
	m, b := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	msg, ok := b.Retained(bus.Parse("state.actuator.compressor"))
	if !ok {
		t.Fatal("no retained status after configure")
	}
	st := msg.Payload.(statusPayload)
	if st.Role != "compressor" || st.Type != "fake" || st.IsActive {
		t.Fatalf("status = %+v", st)
	}
}

func TestBusCommandIsAppliedFromUpdate(t *testing.T) {
	d := &fakeDriver{available: true}
	m, b := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	events := b.NewConnection("listener").Subscribe(bus.T("actuator", "command"))

	sender := b.NewConnection("controller")
	sender.Publish(sender.NewMessage(bus.Parse("command.compressor"), true, false))

	if d.active {
		t.Fatal("command applied before update cycle")
	}
	m.Update()
	if !d.active {
		t.Fatal("command not applied by update")
	}

	st := mustRetainedStatus(t, b, "state.actuator.compressor")
	if !st.IsActive || st.CommandCount != 1 || st.ErrorCount != 0 {
		t.Fatalf("status = %+v", st)
	}

	select {
	case msg := <-events.Channel():
		ev := msg.Payload.(map[string]any)
		if ev["role"] != "compressor" || ev["success"] != true {
			t.Errorf("event = %v", ev)
		}
	default:
		t.Fatal("no actuator.command event")
	}
}

func TestFailedCommandCountsError(t *testing.T) {
	d := &fakeDriver{available: true, exec: func(any) error {
		return &errcode.E{C: errcode.Busy, Op: "test"}
	}}
	m, b := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	events := b.NewConnection("listener").Subscribe(bus.T("actuator", "command"))
	if err := m.Command("compressor", true); !errcode.Is(err, errcode.Busy) {
		t.Fatalf("err = %v, want busy", err)
	}

	st := mustRetainedStatus(t, b, "state.actuator.compressor")
	if st.CommandCount != 1 || st.ErrorCount != 1 {
		t.Fatalf("status = %+v", st)
	}
	_ = events
}

func TestDriverPanicIsRecovered(t *testing.T) {
	d := &fakeDriver{available: true, exec: func(any) error { panic("relay fault") }}
	m, _ := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	if err := m.Command("compressor", true); err == nil {
		t.Fatal("panic should surface as an error")
	}
	if m.commandErrors != 1 {
		t.Fatalf("commandErrors = %d, want 1", m.commandErrors)
	}
}

func TestUpdateAdvancesAllDrivers(t *testing.T) {
	a := &fakeDriver{available: true}
	c := &fakeDriver{available: true}
	m, _ := newTestModule(t, map[string]*fakeDriver{"fan": a, "comp": c})
	m.Configure(map[string]any{"actuators": []any{entry("fan", "fan"), entry("compressor", "comp")}})

	for i := 0; i < 5; i++ {
		m.Update()
	}
	if a.updates != 5 || c.updates != 5 {
		t.Fatalf("updates = %d/%d, want 5/5", a.updates, c.updates)
	}
}

func TestEmergencyStopAll(t *testing.T) {
	a := &fakeDriver{available: true, active: true}
	c := &fakeDriver{available: true, active: true}
	m, b := newTestModule(t, map[string]*fakeDriver{"fan": a, "comp": c})
	m.Configure(map[string]any{"actuators": []any{entry("fan", "fan"), entry("compressor", "comp")}})

	events := b.NewConnection("listener").Subscribe(bus.T("actuator", "emergency_stop"))
	m.EmergencyStopAll()

	if !a.stopped || !c.stopped {
		t.Fatal("not every driver was stopped")
	}
	select {
	case <-events.Channel():
	default:
		t.Fatal("no actuator.emergency_stop event")
	}
	if st := mustRetainedStatus(t, b, "state.actuator.fan"); st.IsActive {
		t.Fatal("retained status still active after emergency stop")
	}
}

func TestCommandUnknownRole(t *testing.T) {
	m, _ := newTestModule(t, map[string]*fakeDriver{"fake": {available: true}})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})
	if err := m.Command("ghost", true); !errcode.Is(err, errcode.NotAvailable) {
		t.Fatalf("err = %v, want not_available", err)
	}
}

func TestHealthScoreFromCommandRatio(t *testing.T) {
	flaky := true
	d := &fakeDriver{available: true, exec: func(any) error {
		flaky = !flaky
		if flaky {
			return &errcode.E{C: errcode.Error, Op: "test"}
		}
		return nil
	}}
	m, _ := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	if m.HealthScore() != 100 {
		t.Fatalf("initial score = %d, want 100", m.HealthScore())
	}
	for i := 0; i < 4; i++ {
		_ = m.Command("compressor", true)
	}
	if m.HealthScore() != 50 {
		t.Fatalf("score = %d, want 50", m.HealthScore())
	}
}

func TestHealthScoreBoundedUnderUpdatePanics(t *testing.T) {
	d := &fakeDriver{available: true, update: func() { panic("relay wedged") }}
	m, _ := newTestModule(t, map[string]*fakeDriver{"fake": d})
	m.Configure(map[string]any{"actuators": []any{entry("compressor", "fake")}})

	if err := m.Command("compressor", true); err != nil {
		t.Fatalf("command: %v", err)
	}
	m.Update()
	m.Update()

	score := m.HealthScore()
	if score < 0 || score > 100 {
		t.Fatalf("score = %d, outside 0-100", score)
	}
	if score != 100 {
		t.Fatalf("score = %d, want 100", score)
	}
	if m.updateErrors != 2 || d.updates != 2 {
		t.Fatalf("updateErrors = %d, updates = %d", m.updateErrors, d.updates)
	}
}

func TestConfigTopicReconfiguresWholesale(t *testing.T) {
	d := &fakeDriver{available: true}
	m, b := newTestModule(t, map[string]*fakeDriver{"fake": d})

	cfgConn := b.NewConnection("config")
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "actuators"), map[string]any{
		"actuators": []any{entry("compressor", "fake")},
	}, true))

	m.Update()
	if roles := m.Roles(); len(roles) != 1 || roles[0] != "compressor" {
		t.Fatalf("roles after first config = %v", roles)
	}

	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "actuators"), map[string]any{
		"actuators": []any{entry("defrost_heater", "fake")},
	}, true))

	m.Update()
	if roles := m.Roles(); len(roles) != 1 || roles[0] != "defrost_heater" {
		t.Fatalf("roles after reconfig = %v", roles)
	}
	if err := m.Command("compressor", true); err == nil {
		t.Fatal("old role still commandable after reconfig")
	}

	// The old command subscription is gone; its topic must not reach the
	// replaced instance.
	sender := b.NewConnection("controller")
	sender.Publish(sender.NewMessage(bus.Parse("command.compressor"), true, false))
	m.Update()
	if d.active {
		t.Fatal("command for a removed role was applied")
	}
}

func mustRetainedStatus(t *testing.T, b *bus.Bus, key string) statusPayload {
	t.Helper()
	msg, ok := b.Retained(bus.Parse(key))
	if !ok {
		t.Fatalf("no retained status at %s", key)
	}
	return msg.Payload.(statusPayload)
}

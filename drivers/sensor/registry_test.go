package sensor

import (
	"testing"

	"modesp/hal"
)

type stubDriver struct{ typeName string }

func (d *stubDriver) Init(*hal.HAL, map[string]any) error { return nil }
func (d *stubDriver) Read() Reading                       { return Reading{} }
func (d *stubDriver) Type() string                        { return d.typeName }
func (d *stubDriver) Description() string                 { return "stub" }
func (d *stubDriver) IsAvailable() bool                   { return true }
func (d *stubDriver) GetConfig() map[string]any           { return nil }
func (d *stubDriver) SetConfig(map[string]any) error      { return nil }
func (d *stubDriver) UISchema() map[string]any            { return nil }
func (d *stubDriver) Calibrate(map[string]any) error      { return nil }
func (d *stubDriver) Diagnostics() map[string]any         { return nil }

func TestRegisterAndCreate(t *testing.T) {
	r := NewRegistry()
	if !r.Register("stub", func() Driver { return &stubDriver{typeName: "stub"} }) {
		t.Fatal("Register returned false for a new type")
	}
	d := r.Create("stub")
	if d == nil {
		t.Fatal("Create returned nil for a registered type")
	}
	if d.Type() != "stub" {
		t.Errorf("Type() = %q", d.Type())
	}
	// Each Create yields a fresh instance.
	if r.Create("stub") == d {
		t.Error("Create returned a shared instance")
	}
}

func TestCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	if d := r.Create("no_such_type"); d != nil {
		t.Errorf("Create(unknown) = %v, want nil", d)
	}
	if r.Has("no_such_type") {
		t.Error("Has reported an unregistered type")
	}
}

func TestDuplicateRegistrationRejected(t *testing.T) {
	r := NewRegistry()
	first := &stubDriver{typeName: "dup"}
	r.Register("dup", func() Driver { return first })
	if r.Register("dup", func() Driver { return &stubDriver{typeName: "other"} }) {
		t.Fatal("second Register returned true")
	}
	// First registration stays in effect.
	if d := r.Create("dup"); d != first {
		t.Error("duplicate registration displaced the original factory")
	}
}

func TestTypesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"ntc", "ds18b20_async", "gpio_input"} {
		n := name
		r.Register(n, func() Driver { return &stubDriver{typeName: n} })
	}
	got := r.Types()
	want := []string{"ds18b20_async", "gpio_input", "ntc"}
	if len(got) != len(want) {
		t.Fatalf("Types() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Types()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

// Package gpiooutput drives a plain on/off pin. Besides state commands it
// accepts "toggle" and a periodic blink pattern advanced from Update, used
// for status and alarm indicators.
package gpiooutput

import (
	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/timex"
)

const TypeName = "gpio_output"

type Driver struct {
	pin hal.GpioOutput

	halID        string
	defaultState bool
	blinkOnMs    int64
	blinkOffMs   int64

	current      bool
	commanded    bool
	blinking     bool
	blinkPhase   bool
	lastBlinkMs  int64
	lastChangeMs int64

	stateChanges  uint32
	totalOnTimeMs int64
	lastOnMs      int64

	nowMs func() int64
}

func New() *Driver {
	return &Driver{nowMs: timex.NowMs}
}

func Register(reg *actuator.Registry) bool {
	return reg.Register(TypeName, func() actuator.Driver { return New() })
}

func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "gpiooutput.Init", Msg: "hal_id is required"}
	}
	d.defaultState = sensor.BlobBool(cfg, "default_state", false)
	d.blinkOnMs = int64(sensor.BlobInt(cfg, "blink_on_ms", 0))
	d.blinkOffMs = int64(sensor.BlobInt(cfg, "blink_off_ms", 0))

	pin, err := h.GpioOutput(d.halID)
	if err != nil {
		return err
	}
	d.pin = pin

	d.setState(d.defaultState)
	d.commanded = d.defaultState
	return nil
}

// ExecuteCommand accepts bool, number and {"state":...} forms plus the
// strings "on", "off", "toggle" and "blink". An object may carry
// {"blink": bool} to start or stop the pattern.
func (d *Driver) ExecuteCommand(cmd any) error {
	switch c := cmd.(type) {
	case string:
		switch c {
		case "on":
			d.commanded, d.blinking = true, false
		case "off":
			d.commanded, d.blinking = false, false
		case "toggle":
			d.commanded, d.blinking = !d.current, false
		case "blink":
			d.blinking = true
			d.lastBlinkMs = d.nowMs()
		default:
			return &errcode.E{C: errcode.InvalidConfig, Op: "gpiooutput.ExecuteCommand", Msg: "unknown command " + c}
		}
	case map[string]any:
		if v, ok := c["blink"]; ok {
			d.blinking, _ = v.(bool)
			if d.blinking {
				d.lastBlinkMs = d.nowMs()
			}
		}
		if _, ok := c["state"]; ok {
			state, err := actuator.BoolCommand(c)
			if err != nil {
				return err
			}
			d.commanded, d.blinking = state, false
		}
	default:
		state, err := actuator.BoolCommand(cmd)
		if err != nil {
			return err
		}
		d.commanded, d.blinking = state, false
	}

	if !d.blinking {
		d.setState(d.commanded)
	}
	return nil
}

func (d *Driver) Update() {
	if d.blinking && d.blinkOnMs > 0 && d.blinkOffMs > 0 {
		now := d.nowMs()
		dur := d.blinkOffMs
		if d.blinkPhase {
			dur = d.blinkOnMs
		}
		if now-d.lastBlinkMs >= dur {
			d.blinkPhase = !d.blinkPhase
			d.setState(d.blinkPhase)
			d.lastBlinkMs = now
		}
	}
}

func (d *Driver) EmergencyStop() {
	println("Warn: gpio output", d.halID, "emergency stop")
	d.blinking = false
	d.setState(false)
	d.commanded = false
}

func (d *Driver) Status() actuator.Status {
	st := actuator.Status{
		IsActive:     d.current,
		State:        "OFF",
		LastChangeMs: d.lastChangeMs,
		IsHealthy:    d.pin != nil,
	}
	if d.current {
		st.CurrentValue = 1
		st.State = "ON"
	}
	if d.blinking {
		st.State = "BLINKING"
	}
	return st
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "GPIO on/off output" }
func (d *Driver) IsAvailable() bool   { return d.pin != nil }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":        d.halID,
		"default_state": d.defaultState,
		"blink_on_ms":   d.blinkOnMs,
		"blink_off_ms":  d.blinkOffMs,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	if v := sensor.BlobInt(cfg, "blink_on_ms", int(d.blinkOnMs)); v >= 0 {
		d.blinkOnMs = int64(v)
	}
	if v := sensor.BlobInt(cfg, "blink_off_ms", int(d.blinkOffMs)); v >= 0 {
		d.blinkOffMs = int64(v)
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "GPIO Output Settings",
		"properties": map[string]any{
			"blink_on_ms": map[string]any{
				"type": "integer", "title": "Blink ON Duration (ms)",
				"minimum": 0, "maximum": 10000, "default": 500,
			},
			"blink_off_ms": map[string]any{
				"type": "integer", "title": "Blink OFF Duration (ms)",
				"minimum": 0, "maximum": 10000, "default": 500,
			},
		},
	}
}

func (d *Driver) Diagnostics() map[string]any {
	total := d.totalOnTimeMs
	if d.current && d.lastOnMs > 0 {
		total += d.nowMs() - d.lastOnMs
	}
	return map[string]any{
		"driver_type":      TypeName,
		"gpio":             d.halID,
		"current_state":    d.current,
		"commanded_state":  d.commanded,
		"blinking":         d.blinking,
		"state_changes":    d.stateChanges,
		"total_on_time_ms": total,
	}
}

func (d *Driver) setState(state bool) {
	if d.pin == nil {
		return
	}
	d.pin.Set(state)
	if state == d.current {
		return
	}
	d.current = state
	d.stateChanges++
	now := d.nowMs()
	d.lastChangeMs = now
	if state {
		d.lastOnMs = now
	} else if d.lastOnMs > 0 {
		d.totalOnTimeMs += now - d.lastOnMs
		d.lastOnMs = 0
	}
}

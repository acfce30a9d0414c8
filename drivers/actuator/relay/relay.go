// Package relay switches a mechanical relay with compressor-grade timing
// protection: minimum on/off hold windows that defer state changes, and an
// inrush window after switch-on during which the contact must not reopen.
// Deferred commands are applied from Update, never by blocking the caller.
package relay

import (
	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/strconvx"
	"modesp/x/timex"
)

const TypeName = "relay"

type Driver struct {
	pin hal.GpioOutput

	halID        string
	minOnTimeS   int
	minOffTimeS  int
	inrushMs     int64
	defaultState bool
	onLabel      string
	offLabel     string

	current         bool
	commanded       bool
	lastChangeMs    int64
	protectionEndMs int64
	inrushEndMs     int64

	commandCount     uint32
	protectionBlocks uint32
	switchCount      uint32

	nowMs func() int64
}

func New() *Driver {
	return &Driver{onLabel: "ON", offLabel: "OFF", nowMs: timex.NowMs}
}

func Register(reg *actuator.Registry) bool {
	return reg.Register(TypeName, func() actuator.Driver { return New() })
}

// Init binds the output pin and applies the default state. Active-low wiring
// is folded into hal.GpioOutput by the board table, so states here are always
// logical.
func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "relay.Init", Msg: "hal_id is required"}
	}
	d.minOnTimeS = sensor.BlobInt(cfg, "min_on_time_s", 0)
	d.minOffTimeS = sensor.BlobInt(cfg, "min_off_time_s", 0)
	d.inrushMs = int64(sensor.BlobInt(cfg, "inrush_delay_ms", 0))
	d.defaultState = sensor.BlobBool(cfg, "default_state", false)
	d.onLabel = sensor.BlobString(cfg, "on_label", d.onLabel)
	d.offLabel = sensor.BlobString(cfg, "off_label", d.offLabel)

	pin, err := h.GpioOutput(d.halID)
	if err != nil {
		return err
	}
	d.pin = pin

	d.applyState(d.defaultState)
	d.commanded = d.defaultState
	return nil
}

// ExecuteCommand requests a state. With a protection or inrush window open
// the command is remembered and applied later from Update; the caller gets
// busy so the status publisher can report the deferral.
func (d *Driver) ExecuteCommand(cmd any) error {
	newState, err := actuator.BoolCommand(cmd)
	if err != nil {
		return err
	}
	d.commandCount++
	d.commanded = newState

	if newState == d.current {
		return nil
	}
	if !d.canChange(newState) {
		d.protectionBlocks++
		println("Warn: relay", d.halID, "state change deferred by protection timer")
		return &errcode.E{C: errcode.Busy, Op: "relay.ExecuteCommand", Msg: "protection timer active"}
	}
	d.applyState(newState)
	return nil
}

func (d *Driver) canChange(newState bool) bool {
	now := d.nowMs()
	if d.current && !newState && now < d.inrushEndMs {
		return false
	}
	return now >= d.protectionEndMs
}

func (d *Driver) applyState(state bool) {
	d.pin.Set(state)
	if state != d.current {
		d.switchCount++
	}
	d.current = state
	now := d.nowMs()
	d.lastChangeMs = now

	if state {
		if d.minOnTimeS > 0 {
			d.protectionEndMs = now + int64(d.minOnTimeS)*1000
		} else {
			d.protectionEndMs = now
		}
		if d.inrushMs > 0 {
			d.inrushEndMs = now + d.inrushMs
		}
	} else if d.minOffTimeS > 0 {
		d.protectionEndMs = now + int64(d.minOffTimeS)*1000
	} else {
		d.protectionEndMs = now
	}
}

// Update applies a deferred command once its protection window has passed.
func (d *Driver) Update() {
	if d.commanded != d.current && d.canChange(d.commanded) {
		d.applyState(d.commanded)
	}
}

// EmergencyStop opens the relay immediately, overriding all timers.
func (d *Driver) EmergencyStop() {
	println("Warn: relay", d.halID, "emergency stop")
	d.applyState(false)
	d.commanded = false
	d.protectionEndMs = 0
	d.inrushEndMs = 0
}

func (d *Driver) Status() actuator.Status {
	st := actuator.Status{
		IsActive:     d.current,
		State:        d.offLabel,
		LastChangeMs: d.lastChangeMs,
		IsHealthy:    d.pin != nil,
	}
	if d.current {
		st.CurrentValue = 1
		st.State = d.onLabel
	}
	if now := d.nowMs(); now < d.protectionEndMs {
		remaining := (d.protectionEndMs - now) / 1000
		st.Error = "protection timer active (" + strconvx.Itoa(int(remaining)) + "s remaining)"
	}
	return st
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "Relay output with timing protection" }
func (d *Driver) IsAvailable() bool   { return d.pin != nil }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":          d.halID,
		"min_on_time_s":   d.minOnTimeS,
		"min_off_time_s":  d.minOffTimeS,
		"inrush_delay_ms": d.inrushMs,
		"default_state":   d.defaultState,
		"on_label":        d.onLabel,
		"off_label":       d.offLabel,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	if v := sensor.BlobInt(cfg, "min_on_time_s", d.minOnTimeS); v >= 0 {
		d.minOnTimeS = v
	}
	if v := sensor.BlobInt(cfg, "min_off_time_s", d.minOffTimeS); v >= 0 {
		d.minOffTimeS = v
	}
	if v := sensor.BlobInt(cfg, "inrush_delay_ms", int(d.inrushMs)); v >= 0 {
		d.inrushMs = int64(v)
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "Relay Settings",
		"properties": map[string]any{
			"min_on_time_s": map[string]any{
				"type": "integer", "title": "Minimum On Time (s)",
				"minimum": 0, "maximum": 3600, "default": 0,
			},
			"min_off_time_s": map[string]any{
				"type": "integer", "title": "Minimum Off Time (s)",
				"minimum": 0, "maximum": 3600, "default": 0,
			},
			"inrush_delay_ms": map[string]any{
				"type": "integer", "title": "Inrush Hold (ms)",
				"minimum": 0, "maximum": 10000, "default": 0,
				"description": "Hold window after switch-on for inrush current",
			},
			"default_state": map[string]any{
				"type": "boolean", "title": "Default State", "default": false,
			},
		},
	}
}

func (d *Driver) Diagnostics() map[string]any {
	return map[string]any{
		"driver_type":       TypeName,
		"gpio":              d.halID,
		"current_state":     d.current,
		"commanded_state":   d.commanded,
		"command_count":     d.commandCount,
		"protection_blocks": d.protectionBlocks,
		"switch_count":      d.switchCount,
	}
}

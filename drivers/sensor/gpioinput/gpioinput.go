// Package gpioinput reads a binary input such as a door switch as a 0/1
// sensor value, with inversion, software debounce and edge counting.
package gpioinput

import (
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/timex"
)

const TypeName = "gpio_input"

type Driver struct {
	pin hal.GpioInput

	halID         string
	invert        bool
	debounceMs    int64
	countEdges    bool
	activeLabel   string
	inactiveLabel string

	debounced       bool
	lastRaw         bool
	debounceStartMs int64
	debouncing      bool
	edgeCount       uint32
	totalReads      uint32

	nowMs func() int64
}

func New() *Driver {
	return &Driver{nowMs: timex.NowMs}
}

func Register(reg *sensor.Registry) bool {
	return reg.Register(TypeName, func() sensor.Driver { return New() })
}

func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "gpioinput.Init", Msg: "hal_id is required"}
	}
	d.invert = sensor.BlobBool(cfg, "invert", false)
	d.debounceMs = int64(sensor.BlobInt(cfg, "debounce_ms", 50))
	d.countEdges = sensor.BlobBool(cfg, "count_edges", false)
	d.activeLabel = sensor.BlobString(cfg, "active_label", "ON")
	d.inactiveLabel = sensor.BlobString(cfg, "inactive_label", "OFF")

	pin, err := h.GpioInput(d.halID)
	if err != nil {
		return err
	}
	d.pin = pin

	// Seed the debounced state with the current level.
	d.debounced = d.rawLevel()
	d.lastRaw = d.debounced
	return nil
}

func (d *Driver) rawLevel() bool {
	level := d.pin.Read()
	if d.invert {
		level = !level
	}
	return level
}

// Read returns the debounced level as 0/1. A level change only takes effect
// once it has held for debounce_ms.
func (d *Driver) Read() sensor.Reading {
	if d.pin == nil {
		return sensor.Invalid("state", errcode.NotAvailable)
	}
	now := d.nowMs()
	raw := d.rawLevel()

	if raw != d.lastRaw {
		d.lastRaw = raw
		d.debounceStartMs = now
		d.debouncing = true
	}
	if d.debouncing && now-d.debounceStartMs >= d.debounceMs {
		d.debouncing = false
		if raw != d.debounced {
			d.debounced = raw
			if d.countEdges {
				d.edgeCount++
			}
		}
	}

	d.totalReads++
	value := 0.0
	if d.debounced {
		value = 1.0
	}
	r := sensor.Valid(value, "state")
	r.TimestampMs = now
	return r
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "Debounced binary GPIO input" }
func (d *Driver) IsAvailable() bool   { return d.pin != nil }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":         d.halID,
		"invert":         d.invert,
		"debounce_ms":    d.debounceMs,
		"count_edges":    d.countEdges,
		"active_label":   d.activeLabel,
		"inactive_label": d.inactiveLabel,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	d.invert = sensor.BlobBool(cfg, "invert", d.invert)
	if ms := sensor.BlobInt(cfg, "debounce_ms", int(d.debounceMs)); ms >= 0 {
		d.debounceMs = int64(ms)
	}
	d.countEdges = sensor.BlobBool(cfg, "count_edges", d.countEdges)
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "GPIO Input Settings",
		"properties": map[string]any{
			"invert": map[string]any{
				"type": "boolean", "title": "Invert Logic", "default": false,
			},
			"debounce_ms": map[string]any{
				"type": "integer", "title": "Debounce Time (ms)",
				"minimum": 0, "maximum": 1000, "default": 50,
			},
			"count_edges": map[string]any{
				"type": "boolean", "title": "Count State Changes", "default": false,
			},
		},
	}
}

func (d *Driver) Calibrate(map[string]any) error { return errcode.Unsupported }

func (d *Driver) Diagnostics() map[string]any {
	label := d.inactiveLabel
	if d.debounced {
		label = d.activeLabel
	}
	return map[string]any{
		"driver_type": TypeName,
		"gpio":        d.halID,
		"state":       label,
		"edge_count":  d.edgeCount,
		"total_reads": d.totalReads,
	}
}

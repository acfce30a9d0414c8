// Package aht20drv adapts the AHT20 device to the sensor driver contract.
// One instance reports either the temperature or the humidity channel; put
// two instances on the same bus hal_id to get both. Acquisition runs as a
// trigger/collect state machine so Read never blocks on the ~80ms
// conversion.
package aht20drv

import (
	"modesp/drivers/aht20"
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/timex"
)

const TypeName = "aht20"

type channel uint8

const (
	channelTemperature channel = iota
	channelHumidity
)

type state uint8

const (
	stateIdle state = iota
	stateConverting
)

type device interface {
	Configure() error
	Trigger() error
	Collect(*aht20.Sample) error
}

type Driver struct {
	dev device

	halID   string
	ch      channel
	offset  float64
	staleMs int64

	available   bool
	st          state
	triggeredMs int64

	lastValue   float64
	lastValidMs int64
	hasValid    bool

	totalReads uint32
	errorCount uint32

	nowMs func() int64
}

func New() *Driver {
	return &Driver{nowMs: timex.NowMs}
}

func Register(reg *sensor.Registry) bool {
	return reg.Register(TypeName, func() sensor.Driver { return New() })
}

func (d *Driver) unit() string {
	if d.ch == channelHumidity {
		return "%RH"
	}
	return "°C"
}

// Init binds the I2C bus and probes the device. Config fields: hal_id,
// channel ("temperature" or "humidity"), offset, stale_ms.
func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "aht20drv.Init", Msg: "hal_id is required"}
	}
	switch ch := sensor.BlobString(cfg, "channel", "temperature"); ch {
	case "temperature":
		d.ch = channelTemperature
	case "humidity":
		d.ch = channelHumidity
	default:
		return &errcode.E{C: errcode.InvalidConfig, Op: "aht20drv.Init",
			Msg: "channel must be temperature or humidity"}
	}
	d.offset = sensor.BlobFloat(cfg, "offset", 0)
	d.staleMs = int64(sensor.BlobInt(cfg, "stale_ms", 60000))

	bus, err := h.I2CBus(d.halID)
	if err != nil {
		return err
	}
	if d.dev == nil {
		d.dev = aht20.New(bus)
	}
	if err := d.dev.Configure(); err != nil {
		println("Warn: aht20: configure failed on", d.halID)
		return &errcode.E{C: errcode.NotAvailable, Op: "aht20drv.Init", Err: err}
	}
	d.available = true
	d.st = stateIdle
	return nil
}

// Read advances the trigger/collect cycle and returns the freshest value,
// falling back to the cache within the stale window.
func (d *Driver) Read() sensor.Reading {
	now := d.nowMs()
	reading := sensor.Reading{Unit: d.unit(), TimestampMs: now}

	if !d.available {
		reading.Error = errcode.NotAvailable.Error()
		return reading
	}

	switch d.st {
	case stateIdle:
		if err := d.dev.Trigger(); err != nil {
			d.errorCount++
			reading.Error = err.Error()
		} else {
			d.st = stateConverting
			d.triggeredMs = now
		}

	case stateConverting:
		if now-d.triggeredMs < aht20.ConversionTime.Milliseconds() {
			break
		}
		var s aht20.Sample
		err := d.dev.Collect(&s)
		switch err {
		case nil:
			value := s.Celsius()
			if d.ch == channelHumidity {
				value = s.RelHumidity()
			}
			value += d.offset
			d.lastValue = value
			d.lastValidMs = now
			d.hasValid = true
			d.totalReads++
			reading.Value = value
			reading.IsValid = true
			d.st = stateIdle
		case aht20.ErrNotReady:
			// Conversion running long; stay and poll again next call.
		default:
			d.errorCount++
			d.st = stateIdle
			reading.Error = err.Error()
		}
	}

	if !reading.IsValid {
		if d.hasValid {
			if now-d.lastValidMs < d.staleMs {
				reading.Value = d.lastValue
				reading.IsValid = true
				reading.Error = ""
			} else {
				reading.Error = errcode.StaleData.Error()
			}
		} else if reading.Error == "" {
			reading.Error = errcode.NotAvailable.Error()
		}
	}
	return reading
}

func (d *Driver) Type() string { return TypeName }

func (d *Driver) Description() string {
	if d.ch == channelHumidity {
		return "AHT20 relative humidity sensor"
	}
	return "AHT20 temperature sensor"
}

func (d *Driver) IsAvailable() bool { return d.available }

func (d *Driver) GetConfig() map[string]any {
	ch := "temperature"
	if d.ch == channelHumidity {
		ch = "humidity"
	}
	return map[string]any{
		"hal_id":   d.halID,
		"channel":  ch,
		"offset":   d.offset,
		"stale_ms": d.staleMs,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	d.offset = sensor.BlobFloat(cfg, "offset", d.offset)
	if sm := sensor.BlobInt(cfg, "stale_ms", int(d.staleMs)); sm > 0 {
		d.staleMs = int64(sm)
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "AHT20 Sensor Settings",
		"properties": map[string]any{
			"channel": map[string]any{
				"type": "string", "title": "Channel",
				"enum": []any{"temperature", "humidity"},
			},
			"offset": map[string]any{
				"type": "number", "title": "Offset",
				"minimum": -20.0, "maximum": 20.0, "default": 0.0,
			},
		},
	}
}

func (d *Driver) Calibrate(params map[string]any) error {
	ref, okRef := params["reference"].(float64)
	measured, okMeas := params["measured"].(float64)
	if !okRef || !okMeas {
		return &errcode.E{C: errcode.InvalidConfig, Op: "aht20drv.Calibrate",
			Msg: "reference and measured are required"}
	}
	d.offset = ref - measured
	return nil
}

func (d *Driver) Diagnostics() map[string]any {
	st := "IDLE"
	if d.st == stateConverting {
		st = "CONVERTING"
	}
	return map[string]any{
		"driver_type":      TypeName,
		"i2c_bus":          d.halID,
		"current_state":    st,
		"sensor_available": d.available,
		"last_value":       d.lastValue,
		"total_reads":      d.totalReads,
		"error_count":      d.errorCount,
	}
}

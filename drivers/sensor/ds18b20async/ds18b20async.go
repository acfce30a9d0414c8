// Package ds18b20async reads DS18B20 temperature sensors without ever
// blocking the caller. A conversion takes 100..750 ms depending on
// resolution; the driver runs it as a state machine advanced by successive
// Read calls, returning the cached last-valid value in the meantime.
package ds18b20async

import (
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/onewire"
	"modesp/x/timex"
)

// TypeName is the registry key for this driver.
const TypeName = "ds18b20_async"

const unit = "°C"

type state uint8

const (
	stateIdle state = iota
	stateConversionRequested
	stateWaiting
	stateReadyToRead
	stateError
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "IDLE"
	case stateConversionRequested:
		return "CONVERSION_REQUESTED"
	case stateWaiting:
		return "WAITING_FOR_CONVERSION"
	case stateReadyToRead:
		return "READY_TO_READ"
	case stateError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// conversionTimeMs returns rounded-up conversion times per resolution.
func conversionTimeMs(resolution int) int64 {
	switch resolution {
	case 9:
		return 100
	case 10:
		return 200
	case 11:
		return 400
	default:
		return 750
	}
}

// Driver is one DS18B20 on one 1-Wire bus. Not safe for concurrent use; the
// owning module serializes Read calls.
type Driver struct {
	bus  hal.OneWireBus
	addr onewire.Address

	halID      string
	addressStr string
	resolution int
	offset     float64
	useCRC     bool
	maxRetries int
	staleMs    int64

	available         bool
	st                state
	conversionStartMs int64
	retryCount        int

	lastTemp    float64
	lastValidMs int64
	hasValid    bool

	totalConversions uint32
	successfulReads  uint32
	errorCount       uint32

	nowMs func() int64 // swapped in tests
}

// New returns an unconfigured driver; Register wires it into a registry.
func New() *Driver {
	return &Driver{nowMs: timex.NowMs}
}

// Register adds the driver type to a sensor registry.
func Register(reg *sensor.Registry) bool {
	return reg.Register(TypeName, func() sensor.Driver { return New() })
}

// Init binds the bus, parses the address and verifies the sensor answers a
// ROM search. Config fields: hal_id, address (16 hex chars), resolution
// (9..12, default 12), offset, use_crc, max_retries, stale_ms.
func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	d.addressStr = sensor.BlobString(cfg, "address", "")
	if d.halID == "" || d.addressStr == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "ds18b20async.Init",
			Msg: "hal_id and address are required"}
	}

	d.resolution = sensor.BlobInt(cfg, "resolution", 12)
	if d.resolution < 9 || d.resolution > 12 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "ds18b20async.Init",
			Msg: "resolution must be 9..12"}
	}
	d.offset = sensor.BlobFloat(cfg, "offset", 0)
	d.useCRC = sensor.BlobBool(cfg, "use_crc", true)
	d.maxRetries = sensor.BlobInt(cfg, "max_retries", 3)
	d.staleMs = int64(sensor.BlobInt(cfg, "stale_ms", 60000))

	bus, err := h.OneWireBus(d.halID)
	if err != nil {
		return err
	}
	d.bus = bus

	addr, err := onewire.ParseAddress(d.addressStr)
	if err != nil {
		return err
	}
	d.addr = addr

	d.available = false
	for _, found := range bus.SearchDevices() {
		if found == addr {
			d.available = true
			break
		}
	}
	if !d.available {
		println("Warn: ds18b20:", d.addressStr, "not found on bus", d.halID)
		return &errcode.E{C: errcode.NotAvailable, Op: "ds18b20async.Init",
			Msg: "sensor not found on bus"}
	}

	d.st = stateIdle
	d.hasValid = false
	println("Info: ds18b20:", d.addressStr, "on", d.halID, "ready")
	return nil
}

// Read advances the acquisition state machine one step and returns the best
// available measurement. It never blocks on the conversion.
func (d *Driver) Read() sensor.Reading {
	now := d.nowMs()
	reading := sensor.Reading{Unit: unit, TimestampMs: now}

	if !d.available {
		reading.Error = errcode.NotAvailable.Error()
		return reading
	}

	switch d.st {
	case stateIdle:
		if err := d.bus.RequestTemperatures(); err == nil {
			d.st = stateConversionRequested
			d.conversionStartMs = now
			d.totalConversions++
		} else {
			d.errorCount++
			reading.Error = err.Error()
		}

	case stateConversionRequested:
		d.st = stateWaiting

	case stateWaiting:
		if now-d.conversionStartMs >= conversionTimeMs(d.resolution) {
			d.st = stateReadyToRead
		}

	case stateReadyToRead:
		temp, err := d.bus.ReadTemperature(d.addr)
		if err == nil {
			temp += d.offset
			if temp >= -55 && temp <= 125 {
				d.lastTemp = temp
				d.lastValidMs = now
				d.hasValid = true
				d.successfulReads++
				d.retryCount = 0
				reading.Value = temp
				reading.IsValid = true
				d.st = stateIdle
				break
			}
			err = errcode.OutOfRange
		}
		d.errorCount++
		d.retryCount++
		if d.retryCount < d.maxRetries {
			d.st = stateIdle // retry the full cycle
		} else {
			d.st = stateError
		}

	case stateError:
		d.st = stateIdle
		d.retryCount = 0
		reading.Error = errcode.MaxRetries.Error()
	}

	// Fall back to the cached value while a cycle is in flight, but never
	// serve one older than the stale window.
	if !reading.IsValid {
		if d.hasValid {
			if now-d.lastValidMs < d.staleMs {
				reading.Value = d.lastTemp
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

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "DS18B20 async temperature sensor" }
func (d *Driver) IsAvailable() bool   { return d.available }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":      d.halID,
		"address":     d.addressStr,
		"resolution":  d.resolution,
		"offset":      d.offset,
		"use_crc":     d.useCRC,
		"max_retries": d.maxRetries,
		"stale_ms":    d.staleMs,
	}
}

// SetConfig applies runtime-tunable fields; the bus binding and address are
// fixed at Init.
func (d *Driver) SetConfig(cfg map[string]any) error {
	if res := sensor.BlobInt(cfg, "resolution", d.resolution); res >= 9 && res <= 12 {
		d.resolution = res
	}
	d.offset = sensor.BlobFloat(cfg, "offset", d.offset)
	d.useCRC = sensor.BlobBool(cfg, "use_crc", d.useCRC)
	if mr := sensor.BlobInt(cfg, "max_retries", d.maxRetries); mr >= 1 {
		d.maxRetries = mr
	}
	if sm := sensor.BlobInt(cfg, "stale_ms", int(d.staleMs)); sm > 0 {
		d.staleMs = int64(sm)
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "DS18B20 Async Temperature Sensor Settings",
		"properties": map[string]any{
			"resolution": map[string]any{
				"type": "integer", "title": "Resolution",
				"minimum": 9, "maximum": 12, "default": 12,
			},
			"offset": map[string]any{
				"type": "number", "title": "Temperature Offset",
				"minimum": -10.0, "maximum": 10.0, "default": 0.0,
			},
			"use_crc": map[string]any{
				"type": "boolean", "title": "Enable CRC Check", "default": true,
			},
			"max_retries": map[string]any{
				"type": "integer", "title": "Max Retries",
				"minimum": 1, "maximum": 10, "default": 3,
			},
		},
	}
}

// Calibrate derives the offset from a {reference, measured} pair.
func (d *Driver) Calibrate(params map[string]any) error {
	ref, okRef := params["reference"].(float64)
	measured, okMeas := params["measured"].(float64)
	if !okRef || !okMeas {
		return &errcode.E{C: errcode.InvalidConfig, Op: "ds18b20async.Calibrate",
			Msg: "reference and measured are required"}
	}
	d.offset = ref - measured
	println("Info: ds18b20: calibrated, offset", int(d.offset*100), "centidegrees")
	return nil
}

func (d *Driver) Diagnostics() map[string]any {
	return map[string]any{
		"driver_type":       TypeName,
		"sensor_address":    d.addressStr,
		"current_state":     d.st.String(),
		"sensor_available":  d.available,
		"has_valid_reading": d.hasValid,
		"last_temperature":  d.lastTemp,
		"successful_reads":  d.successfulReads,
		"error_count":       d.errorCount,
		"total_conversions": d.totalConversions,
		"resolution_bits":   d.resolution,
		"retry_count":       d.retryCount,
	}
}

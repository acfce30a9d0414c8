// Package pressure420 reads an industrial 4-20 mA pressure transmitter
// through a sense resistor on an ADC channel. Loop current maps linearly
// onto the configured pressure range; current outside the fault thresholds
// means a broken loop or a failed transmitter, not a pressure.
package pressure420

import (
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
)

const TypeName = "pressure_4_20ma"

type Driver struct {
	adc hal.ADCChannel

	halID       string
	pressureMin float64
	pressureMax float64
	unit        string
	rSense      float64
	samples     int
	faultLow    float64
	faultHigh   float64
	alarmLow    float64
	alarmHigh   float64

	zeroOffset float64
	spanFactor float64

	avgBuf []float64
	avgIdx int
	avgLen int

	lastCurrentMa  float64
	lastPressure   float64
	lastFault      bool
	totalReads     uint32
	faultCount     uint32
	alarmLowCount  uint32
	alarmHighCount uint32
}

func New() *Driver {
	return &Driver{
		pressureMax: 10,
		unit:        "bar",
		rSense:      250,
		samples:     10,
		faultLow:    3.5,
		faultHigh:   20.5,
		alarmLow:    -1,
		alarmHigh:   -1,
		spanFactor:  1,
	}
}

func Register(reg *sensor.Registry) bool {
	return reg.Register(TypeName, func() sensor.Driver { return New() })
}

func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pressure420.Init", Msg: "hal_id is required"}
	}
	d.pressureMin = sensor.BlobFloat(cfg, "pressure_min", d.pressureMin)
	d.pressureMax = sensor.BlobFloat(cfg, "pressure_max", d.pressureMax)
	if d.pressureMax <= d.pressureMin {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pressure420.Init",
			Msg: "pressure_max must exceed pressure_min"}
	}
	d.unit = sensor.BlobString(cfg, "unit", d.unit)
	d.rSense = sensor.BlobFloat(cfg, "r_sense", d.rSense)
	if d.rSense <= 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pressure420.Init",
			Msg: "r_sense must be positive"}
	}
	d.samples = sensor.BlobInt(cfg, "averaging_samples", d.samples)
	if d.samples < 1 {
		d.samples = 1
	}
	d.faultLow = sensor.BlobFloat(cfg, "fault_threshold_low", d.faultLow)
	d.faultHigh = sensor.BlobFloat(cfg, "fault_threshold_high", d.faultHigh)
	d.alarmLow = sensor.BlobFloat(cfg, "alarm_low", d.alarmLow)
	d.alarmHigh = sensor.BlobFloat(cfg, "alarm_high", d.alarmHigh)

	adc, err := h.ADCChannel(d.halID)
	if err != nil {
		return err
	}
	d.adc = adc
	d.avgBuf = make([]float64, d.samples)
	d.avgIdx, d.avgLen = 0, 0
	return nil
}

// Read samples the loop current, maps it to pressure and folds it into the
// moving average.
func (d *Driver) Read() sensor.Reading {
	if d.adc == nil {
		return sensor.Invalid(d.unit, errcode.NotAvailable)
	}
	mv, err := d.adc.ReadMilliVolts()
	if err != nil {
		d.faultCount++
		return sensor.Invalid(d.unit, err)
	}

	currentMa := float64(mv) / d.rSense
	d.lastCurrentMa = currentMa

	if currentMa < d.faultLow || currentMa > d.faultHigh {
		d.faultCount++
		d.lastFault = true
		return sensor.Invalid(d.unit, &errcode.E{C: errcode.OutOfRange, Op: "pressure420.Read",
			Msg: "loop current outside 4-20mA"})
	}
	d.lastFault = false

	span := d.pressureMax - d.pressureMin
	pressure := d.pressureMin + (currentMa-4)/16*span
	pressure = (pressure + d.zeroOffset) * d.spanFactor

	pressure = d.average(pressure)
	d.lastPressure = pressure
	d.totalReads++

	if d.alarmLow > 0 && pressure < d.alarmLow {
		d.alarmLowCount++
	}
	if d.alarmHigh > 0 && pressure > d.alarmHigh {
		d.alarmHighCount++
	}
	return sensor.Valid(pressure, d.unit)
}

func (d *Driver) average(p float64) float64 {
	d.avgBuf[d.avgIdx] = p
	d.avgIdx = (d.avgIdx + 1) % len(d.avgBuf)
	if d.avgLen < len(d.avgBuf) {
		d.avgLen++
	}
	var sum float64
	for i := 0; i < d.avgLen; i++ {
		sum += d.avgBuf[i]
	}
	return sum / float64(d.avgLen)
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "4-20mA loop pressure transmitter" }
func (d *Driver) IsAvailable() bool   { return d.adc != nil }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":            d.halID,
		"pressure_min":      d.pressureMin,
		"pressure_max":      d.pressureMax,
		"unit":              d.unit,
		"r_sense":           d.rSense,
		"averaging_samples": d.samples,
		"alarm_low":         d.alarmLow,
		"alarm_high":        d.alarmHigh,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	d.alarmLow = sensor.BlobFloat(cfg, "alarm_low", d.alarmLow)
	d.alarmHigh = sensor.BlobFloat(cfg, "alarm_high", d.alarmHigh)
	if s := sensor.BlobInt(cfg, "averaging_samples", d.samples); s >= 1 && s <= 100 && s != d.samples {
		d.samples = s
		d.avgBuf = make([]float64, s)
		d.avgIdx, d.avgLen = 0, 0
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "4-20mA Pressure Sensor Settings",
		"properties": map[string]any{
			"pressure_min": map[string]any{
				"type": "number", "title": "Pressure at 4mA", "default": 0.0,
			},
			"pressure_max": map[string]any{
				"type": "number", "title": "Pressure at 20mA", "default": 10.0,
			},
			"r_sense": map[string]any{
				"type": "number", "title": "Sense Resistor (Ω)", "default": 250,
			},
			"averaging_samples": map[string]any{
				"type": "integer", "title": "Averaging Samples",
				"minimum": 1, "maximum": 100, "default": 10,
			},
			"alarm_low": map[string]any{
				"type": "number", "title": "Low Pressure Alarm", "default": -1.0,
			},
			"alarm_high": map[string]any{
				"type": "number", "title": "High Pressure Alarm", "default": -1.0,
			},
		},
	}
}

// Calibrate shifts the zero so the current reading matches the reference.
func (d *Driver) Calibrate(params map[string]any) error {
	ref, okRef := params["reference"].(float64)
	measured, okMeas := params["measured"].(float64)
	if !okRef || !okMeas {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pressure420.Calibrate",
			Msg: "reference and measured are required"}
	}
	d.zeroOffset += ref - measured
	return nil
}

func (d *Driver) Diagnostics() map[string]any {
	return map[string]any{
		"driver_type":      TypeName,
		"adc_channel":      d.halID,
		"last_current_ma":  d.lastCurrentMa,
		"last_pressure":    d.lastPressure,
		"sensor_fault":     d.lastFault,
		"total_reads":      d.totalReads,
		"fault_count":      d.faultCount,
		"alarm_low_count":  d.alarmLowCount,
		"alarm_high_count": d.alarmHighCount,
	}
}

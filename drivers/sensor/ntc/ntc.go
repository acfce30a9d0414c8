// Package ntc converts an ADC voltage-divider reading into temperature for
// NTC thermistors, using either the Beta equation with a named profile or
// full Steinhart-Hart coefficients.
package ntc

import (
	"math"

	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
)

const TypeName = "ntc"

const (
	unit         = "°C"
	kelvinOffset = 273.15
)

// profiles maps named thermistor curves to {r_nominal, t_nominal, beta}.
var profiles = map[string][3]float64{
	"10K_3950":  {10000, 25, 3950},
	"10K_3435":  {10000, 25, 3435},
	"100K_3950": {100000, 25, 3950},
}

type Driver struct {
	adc hal.ADCChannel

	halID   string
	ntcType string

	rNominal float64
	tNominal float64
	beta     float64
	rSeries  float64
	vccMv    float64
	samples  int
	offset   float64

	useSteinhartHart bool
	shA, shB, shC    float64

	totalReads     uint32
	errorCount     uint32
	lastTemp       float64
	lastResistance float64
}

func New() *Driver {
	return &Driver{
		ntcType:  "10K_3950",
		rNominal: 10000,
		tNominal: 25,
		beta:     3950,
		rSeries:  10000,
		vccMv:    3300,
		samples:  10,
	}
}

func Register(reg *sensor.Registry) bool {
	return reg.Register(TypeName, func() sensor.Driver { return New() })
}

// Init binds the ADC channel and loads either a named profile or custom
// divider parameters. Explicit r_nominal/t_nominal/beta override the
// profile values.
func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "ntc.Init", Msg: "hal_id is required"}
	}

	d.ntcType = sensor.BlobString(cfg, "ntc_type", d.ntcType)
	if p, ok := profiles[d.ntcType]; ok {
		d.rNominal, d.tNominal, d.beta = p[0], p[1], p[2]
	} else {
		d.ntcType = "custom"
	}
	d.rNominal = sensor.BlobFloat(cfg, "r_nominal", d.rNominal)
	d.tNominal = sensor.BlobFloat(cfg, "t_nominal", d.tNominal)
	d.beta = sensor.BlobFloat(cfg, "beta", d.beta)
	d.rSeries = sensor.BlobFloat(cfg, "r_series", d.rSeries)
	d.vccMv = sensor.BlobFloat(cfg, "vcc", 3.3) * 1000
	d.samples = sensor.BlobInt(cfg, "averaging_samples", d.samples)
	if d.samples < 1 {
		d.samples = 1
	}
	d.offset = sensor.BlobFloat(cfg, "offset", 0)

	if sh, ok := cfg["steinhart_hart"].(map[string]any); ok {
		d.shA = sensor.BlobFloat(sh, "a", 0)
		d.shB = sensor.BlobFloat(sh, "b", 0)
		d.shC = sensor.BlobFloat(sh, "c", 0)
		d.useSteinhartHart = true
	}

	adc, err := h.ADCChannel(d.halID)
	if err != nil {
		return err
	}
	d.adc = adc
	return nil
}

// Read averages the configured number of ADC samples, converts the divider
// resistance to temperature and applies the offset. A rail-level voltage
// (open or shorted divider) yields an invalid reading.
func (d *Driver) Read() sensor.Reading {
	if d.adc == nil {
		return sensor.Invalid(unit, errcode.NotAvailable)
	}

	var sum float64
	valid := 0
	for i := 0; i < d.samples; i++ {
		mv, err := d.adc.ReadMilliVolts()
		if err != nil {
			d.errorCount++
			continue
		}
		r := d.resistance(float64(mv))
		if r > 0 {
			sum += r
			valid++
		}
	}
	if valid == 0 {
		d.errorCount++
		return sensor.Invalid(unit, &errcode.E{C: errcode.OutOfRange, Op: "ntc.Read",
			Msg: "no usable adc samples"})
	}

	d.lastResistance = sum / float64(valid)
	temp := d.temperature(d.lastResistance) + d.offset
	if temp < -40 || temp > 150 {
		d.errorCount++
		return sensor.Invalid(unit, errcode.OutOfRange)
	}

	d.lastTemp = temp
	d.totalReads++
	return sensor.Valid(temp, unit)
}

// resistance applies the divider equation R = Rs * V / (Vcc - V); zero
// flags an unusable sample.
func (d *Driver) resistance(mv float64) float64 {
	if mv <= 0 || mv >= d.vccMv {
		return 0
	}
	return d.rSeries * mv / (d.vccMv - mv)
}

func (d *Driver) temperature(resistance float64) float64 {
	lnR := math.Log(resistance)
	if d.useSteinhartHart {
		return 1/(d.shA+d.shB*lnR+d.shC*lnR*lnR*lnR) - kelvinOffset
	}
	tNominalK := d.tNominal + kelvinOffset
	tK := 1 / (1/tNominalK + math.Log(resistance/d.rNominal)/d.beta)
	return tK - kelvinOffset
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "NTC thermistor temperature sensor" }
func (d *Driver) IsAvailable() bool   { return d.adc != nil }

func (d *Driver) GetConfig() map[string]any {
	cfg := map[string]any{
		"hal_id":            d.halID,
		"ntc_type":          d.ntcType,
		"r_nominal":         d.rNominal,
		"t_nominal":         d.tNominal,
		"beta":              d.beta,
		"r_series":          d.rSeries,
		"vcc":               d.vccMv / 1000,
		"averaging_samples": d.samples,
		"offset":            d.offset,
	}
	if d.useSteinhartHart {
		cfg["steinhart_hart"] = map[string]any{"a": d.shA, "b": d.shB, "c": d.shC}
	}
	return cfg
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	if s := sensor.BlobInt(cfg, "averaging_samples", d.samples); s >= 1 && s <= 100 {
		d.samples = s
	}
	d.offset = sensor.BlobFloat(cfg, "offset", d.offset)
	d.beta = sensor.BlobFloat(cfg, "beta", d.beta)
	d.rSeries = sensor.BlobFloat(cfg, "r_series", d.rSeries)
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "NTC Thermistor Settings",
		"properties": map[string]any{
			"ntc_type": map[string]any{
				"type": "string", "title": "Thermistor Type",
				"enum": []any{"10K_3950", "10K_3435", "100K_3950", "custom"},
			},
			"r_series": map[string]any{
				"type": "number", "title": "Series Resistor (Ω)", "default": 10000,
			},
			"averaging_samples": map[string]any{
				"type": "integer", "title": "Averaging Samples",
				"minimum": 1, "maximum": 100, "default": 10,
			},
			"offset": map[string]any{
				"type": "number", "title": "Temperature Offset",
				"minimum": -10.0, "maximum": 10.0, "default": 0.0,
			},
		},
	}
}

func (d *Driver) Calibrate(params map[string]any) error {
	ref, okRef := params["reference"].(float64)
	measured, okMeas := params["measured"].(float64)
	if !okRef || !okMeas {
		return &errcode.E{C: errcode.InvalidConfig, Op: "ntc.Calibrate",
			Msg: "reference and measured are required"}
	}
	d.offset = ref - measured
	return nil
}

func (d *Driver) Diagnostics() map[string]any {
	errorRate := 0.0
	if d.totalReads > 0 {
		errorRate = float64(d.errorCount) / float64(d.totalReads)
	}
	return map[string]any{
		"driver_type":      TypeName,
		"adc_channel":      d.halID,
		"last_temperature": d.lastTemp,
		"last_resistance":  d.lastResistance,
		"total_reads":      d.totalReads,
		"error_count":      d.errorCount,
		"error_rate":       errorRate,
		"ntc_parameters": map[string]any{
			"r_nominal": d.rNominal,
			"beta":      d.beta,
			"r_series":  d.rSeries,
		},
	}
}

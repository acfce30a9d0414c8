// Package pwmout drives a variable-speed load through a PWM channel. Duty
// commands are percentages; the driver clamps them to configured limits,
// applies gamma correction for LED loads and can soft-start through a linear
// ramp advanced from Update.
package pwmout

import (
	"math"

	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/mathx"
	"modesp/x/ramp"
	"modesp/x/strconvx"
	"modesp/x/timex"
)

const TypeName = "pwm"

type Driver struct {
	out hal.PWMOutput

	halID      string
	minDuty    float64
	maxDuty    float64
	rampTimeMs int64
	gamma      float64

	currentDuty  float64
	targetDuty   float64
	r            ramp.Linear
	lastChangeMs int64

	commandCount  uint32
	totalOnTimeMs int64
	lastOnMs      int64

	nowMs func() int64
}

func New() *Driver {
	return &Driver{maxDuty: 100, gamma: 1, nowMs: timex.NowMs}
}

func Register(reg *actuator.Registry) bool {
	return reg.Register(TypeName, func() actuator.Driver { return New() })
}

func (d *Driver) Init(h *hal.HAL, cfg map[string]any) error {
	d.halID = sensor.BlobString(cfg, "hal_id", "")
	if d.halID == "" {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.Init", Msg: "hal_id is required"}
	}
	d.minDuty = sensor.BlobFloat(cfg, "min_duty_percent", 0)
	d.maxDuty = sensor.BlobFloat(cfg, "max_duty_percent", 100)
	d.rampTimeMs = int64(sensor.BlobInt(cfg, "ramp_time_ms", 0))
	d.gamma = sensor.BlobFloat(cfg, "gamma", 1)
	if d.gamma <= 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.Init", Msg: "gamma must be positive"}
	}
	if d.minDuty < 0 || d.maxDuty > 100 || d.minDuty > d.maxDuty {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.Init", Msg: "invalid duty limits"}
	}

	out, err := h.PWMOutput(d.halID)
	if err != nil {
		return err
	}
	d.out = out

	def := mathx.Clamp(sensor.BlobFloat(cfg, "default_duty", 0), d.minDuty, d.maxDuty)
	d.setDuty(def)
	d.targetDuty = def
	return nil
}

// ExecuteCommand accepts a duty percentage as a number or as
// {"duty": <percent>}. With ramp_time_ms configured the new duty is reached
// through a linear ramp driven by Update.
func (d *Driver) ExecuteCommand(cmd any) error {
	var duty float64
	if m, ok := cmd.(map[string]any); ok {
		v, ok := m["duty"]
		if !ok {
			return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.ExecuteCommand", Msg: "object command needs a duty field"}
		}
		duty, ok = v.(float64)
		if !ok {
			if i, isInt := v.(int); isInt {
				duty = float64(i)
			} else {
				return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.ExecuteCommand", Msg: "duty must be a number"}
			}
		}
	} else {
		var err error
		duty, err = actuator.NumberCommand(cmd)
		if err != nil {
			return err
		}
	}

	duty = mathx.Clamp(duty, d.minDuty, d.maxDuty)
	d.targetDuty = duty
	d.commandCount++

	if d.rampTimeMs > 0 && math.Abs(duty-d.currentDuty) > 0.1 {
		d.r.Start(d.currentDuty, duty, d.rampTimeMs, d.nowMs())
	} else {
		d.setDuty(duty)
	}
	return nil
}

func (d *Driver) Update() {
	if d.r.Active() {
		v, _ := d.r.Value(d.nowMs())
		d.setDuty(v)
	}
}

func (d *Driver) EmergencyStop() {
	println("Warn: pwm", d.halID, "emergency stop")
	d.r.Start(0, 0, 0, d.nowMs())
	d.setDuty(0)
	d.targetDuty = 0
}

func (d *Driver) Status() actuator.Status {
	st := actuator.Status{
		IsActive:     d.currentDuty > 0,
		CurrentValue: d.currentDuty,
		State:        strconvx.Itoa(int(d.currentDuty)) + "%",
		LastChangeMs: d.lastChangeMs,
		IsHealthy:    d.out != nil,
	}
	if d.r.Active() {
		st.State += " (ramping to " + strconvx.Itoa(int(d.targetDuty)) + "%)"
	}
	return st
}

func (d *Driver) Type() string        { return TypeName }
func (d *Driver) Description() string { return "PWM duty-cycle output" }
func (d *Driver) IsAvailable() bool   { return d.out != nil }

func (d *Driver) GetConfig() map[string]any {
	return map[string]any{
		"hal_id":           d.halID,
		"min_duty_percent": d.minDuty,
		"max_duty_percent": d.maxDuty,
		"ramp_time_ms":     d.rampTimeMs,
		"gamma":            d.gamma,
	}
}

func (d *Driver) SetConfig(cfg map[string]any) error {
	min := sensor.BlobFloat(cfg, "min_duty_percent", d.minDuty)
	max := sensor.BlobFloat(cfg, "max_duty_percent", d.maxDuty)
	if min < 0 || max > 100 || min > max {
		return &errcode.E{C: errcode.InvalidConfig, Op: "pwmout.SetConfig", Msg: "invalid duty limits"}
	}
	d.minDuty, d.maxDuty = min, max
	if v := sensor.BlobInt(cfg, "ramp_time_ms", int(d.rampTimeMs)); v >= 0 {
		d.rampTimeMs = int64(v)
	}
	if g := sensor.BlobFloat(cfg, "gamma", d.gamma); g > 0 {
		d.gamma = g
	}
	return nil
}

func (d *Driver) UISchema() map[string]any {
	return map[string]any{
		"type":  "object",
		"title": "PWM Output Settings",
		"properties": map[string]any{
			"min_duty_percent": map[string]any{
				"type": "number", "title": "Minimum Duty (%)",
				"minimum": 0, "maximum": 100, "default": 0,
			},
			"max_duty_percent": map[string]any{
				"type": "number", "title": "Maximum Duty (%)",
				"minimum": 0, "maximum": 100, "default": 100,
			},
			"ramp_time_ms": map[string]any{
				"type": "integer", "title": "Ramp Time (ms)",
				"description": "Soft start/stop duration",
				"minimum":     0, "maximum": 10000, "default": 0,
			},
			"gamma": map[string]any{
				"type": "number", "title": "Gamma Correction",
				"description": "For LED dimming (1.0 = linear)",
				"minimum":     0.1, "maximum": 5.0, "default": 1.0,
			},
		},
	}
}

func (d *Driver) Diagnostics() map[string]any {
	total := d.totalOnTimeMs
	if d.currentDuty > 0 && d.lastOnMs > 0 {
		total += d.nowMs() - d.lastOnMs
	}
	return map[string]any{
		"driver_type":      TypeName,
		"pwm":              d.halID,
		"current_duty":     d.currentDuty,
		"target_duty":      d.targetDuty,
		"ramping":          d.r.Active(),
		"command_count":    d.commandCount,
		"total_on_time_ms": total,
	}
}

// setDuty tracks duty in linear percent and pushes the gamma-corrected
// fraction to the channel.
func (d *Driver) setDuty(percent float64) {
	if d.out == nil {
		return
	}
	frac := percent / 100
	if d.gamma != 1 {
		frac = math.Pow(frac, d.gamma)
	}
	if err := d.out.SetDuty(frac); err != nil {
		println("Error: pwm", d.halID, "set duty:", err.Error())
		return
	}
	now := d.nowMs()
	if percent != d.currentDuty {
		d.lastChangeMs = now
	}
	if percent > 0 && d.lastOnMs == 0 {
		d.lastOnMs = now
	} else if percent == 0 && d.lastOnMs > 0 {
		d.totalOnTimeMs += now - d.lastOnMs
		d.lastOnMs = 0
	}
	d.currentDuty = percent
}

// Package sensors owns the configured sensor driver instances and their
// polling cycle. Readings go to each sensor's publish key as retained bus
// messages plus a "sensor.reading" event. A failing driver is counted and
// skipped, never allowed to stop the cycle.
package sensors

import (
	"context"
	"time"

	"modesp/bus"
	"modesp/drivers/sensor"
	"modesp/hal"
	"modesp/x/timex"
)

// Instances past this many consecutive failures no longer count as healthy.
const failureThreshold = 3

var topicConfig = bus.Topic{"config", "sensors"}

type instance struct {
	role       string
	typ        string
	publishKey bus.Topic
	driver     sensor.Driver

	lastReading  sensor.Reading
	pollFailures uint32
}

type Module struct {
	hal      *hal.HAL
	registry *sensor.Registry
	conn     *bus.Connection
	config   *bus.Subscription

	instances      []*instance
	pollIntervalMs int64
	publishOnError bool
	lastPollMs     int64

	updateCount uint32
	totalErrors uint32

	nowMs func() int64
}

// New subscribes to the sensors config section; the retained section, if
// already published, configures the module on its first Update.
func New(h *hal.HAL, reg *sensor.Registry, conn *bus.Connection) *Module {
	return &Module{
		hal:            h,
		registry:       reg,
		conn:           conn,
		config:         conn.Subscribe(topicConfig),
		pollIntervalMs: 100,
		publishOnError: true,
		nowMs:          timex.NowMs,
	}
}

// Configure builds driver instances from the sensors config section:
// {poll_interval_ms, publish_on_error, sensors: [{role, type, publish_key,
// config}]}. A sensor that fails to initialize is logged and skipped so the
// rest of the collection still comes up.
func (m *Module) Configure(cfg map[string]any) {
	m.instances = nil

	if v := sensor.BlobInt(cfg, "poll_interval_ms", int(m.pollIntervalMs)); v > 0 {
		m.pollIntervalMs = int64(v)
	}
	m.publishOnError = sensor.BlobBool(cfg, "publish_on_error", m.publishOnError)

	entries, _ := cfg["sensors"].([]any)
	for _, e := range entries {
		blob, ok := e.(map[string]any)
		if !ok {
			println("Error: sensors: config entry is not an object")
			continue
		}
		if inst := m.createInstance(blob); inst != nil {
			m.instances = append(m.instances, inst)
		}
	}
	println("Info: sensors: configured", len(m.instances), "of", len(entries), "sensors")
}

func (m *Module) createInstance(blob map[string]any) *instance {
	role := sensor.BlobString(blob, "role", "")
	typ := sensor.BlobString(blob, "type", "")
	key := sensor.BlobString(blob, "publish_key", "")
	if role == "" || typ == "" || key == "" {
		println("Error: sensors: entry needs role, type and publish_key")
		return nil
	}

	drv := m.registry.Create(typ)
	if drv == nil {
		println("Error: sensors:", role, "has unknown type", typ)
		return nil
	}
	drvCfg, _ := blob["config"].(map[string]any)
	if err := drv.Init(m.hal, drvCfg); err != nil {
		println("Error: sensors:", role, "init failed:", err.Error())
		return nil
	}

	println("Info: sensors: created", role, "type", typ)
	return &instance{
		role:       role,
		typ:        typ,
		publishKey: bus.Parse(key),
		driver:     drv,
		lastReading: sensor.Reading{
			Unit: "", IsValid: false, Error: "not read yet",
		},
	}
}

// drainConfig replaces the instance set wholesale when a new config section
// arrives, keeping Configure on the module goroutine.
func (m *Module) drainConfig() {
	for {
		select {
		case msg := <-m.config.Channel():
			if cfg, ok := msg.Payload.(map[string]any); ok {
				m.Configure(cfg)
			}
		default:
			return
		}
	}
}

// Update polls every instance once the poll interval has elapsed. Driver
// panics are recovered per instance and recorded as failed reads.
func (m *Module) Update() {
	m.drainConfig()
	m.updateCount++

	now := m.nowMs()
	if now-m.lastPollMs < m.pollIntervalMs {
		return
	}
	m.lastPollMs = now

	for _, inst := range m.instances {
		reading := m.readOne(inst)
		inst.lastReading = reading

		if reading.IsValid || m.publishOnError {
			m.publish(inst, reading)
		}
		if reading.IsValid {
			inst.pollFailures = 0
		} else {
			inst.pollFailures++
			m.totalErrors++
			println("Warn: sensors: read failed:", inst.role, reading.Error)
		}
	}
}

func (m *Module) readOne(inst *instance) (reading sensor.Reading) {
	defer func() {
		if r := recover(); r != nil {
			println("Error: sensors: driver panic:", inst.role)
			reading = sensor.Reading{
				Unit:        inst.lastReading.Unit,
				TimestampMs: m.nowMs(),
				Error:       "driver panic",
			}
		}
	}()
	return inst.driver.Read()
}

func (m *Module) publish(inst *instance, reading sensor.Reading) {
	m.conn.Publish(m.conn.NewMessage(inst.publishKey, reading, true))
	m.conn.Publish(m.conn.NewMessage(bus.T("sensor", "reading"), map[string]any{
		"role":    inst.role,
		"type":    inst.typ,
		"reading": reading,
	}, false))
}

// Run polls at 10 Hz until the context is cancelled. Polling runs on its own
// goroutine so long sensor conversions never stall the control loop.
func (m *Module) Run(ctx context.Context) {
	ticker := time.NewTicker(timex.PeriodFromHz(10))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Update()
		}
	}
}

// Reading returns the last reading for a role.
func (m *Module) Reading(role string) (sensor.Reading, bool) {
	for _, inst := range m.instances {
		if inst.role == role {
			return inst.lastReading, true
		}
	}
	return sensor.Reading{}, false
}

// Roles lists configured sensor roles in configuration order.
func (m *Module) Roles() []string {
	roles := make([]string, 0, len(m.instances))
	for _, inst := range m.instances {
		roles = append(roles, inst.role)
	}
	return roles
}

// Diagnostics returns the per-role driver diagnostics.
func (m *Module) Diagnostics(role string) (map[string]any, bool) {
	for _, inst := range m.instances {
		if inst.role == role {
			return inst.driver.Diagnostics(), true
		}
	}
	return nil, false
}

// HealthScore is the percentage of instances that are available and below
// the consecutive-failure threshold.
func (m *Module) HealthScore() int {
	if len(m.instances) == 0 {
		return 0
	}
	healthy := 0
	for _, inst := range m.instances {
		if inst.driver.IsAvailable() && inst.pollFailures < failureThreshold {
			healthy++
		}
	}
	return healthy * 100 / len(m.instances)
}

func (m *Module) IsHealthy() bool {
	for _, inst := range m.instances {
		if inst.pollFailures > 10 {
			return false
		}
	}
	return len(m.instances) > 0
}

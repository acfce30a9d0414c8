// Package actuators owns the configured actuator driver instances. Commands
// arrive on each actuator's command topic and are drained by the update
// cycle, so every driver call stays on the module goroutine. Status goes to
// the actuator's status topic as a retained message.
package actuators

import (
	"context"
	"time"

	"modesp/bus"
	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/errcode"
	"modesp/hal"
	"modesp/x/timex"
)

const errorThreshold = 10

var (
	topicConfig = bus.Topic{"config", "actuators"}

	errDriverPanic = &errcode.E{C: errcode.Error, Op: "actuators", Msg: "driver panic"}
	errRoleUnknown = &errcode.E{C: errcode.NotAvailable, Op: "actuators", Msg: "unknown role"}
)

// statusPayload is a driver status with module metadata merged in.
type statusPayload struct {
	actuator.Status
	Role         string `json:"role"`
	Type         string `json:"type"`
	CommandCount uint32 `json:"command_count"`
	ErrorCount   uint32 `json:"error_count"`
}

type instance struct {
	role      string
	typ       string
	statusKey bus.Topic
	driver    actuator.Driver
	commands  *bus.Subscription

	commandCount uint32
	errorCount   uint32
}

type Module struct {
	hal      *hal.HAL
	registry *actuator.Registry
	conn     *bus.Connection
	config   *bus.Subscription

	instances        []*instance
	updateIntervalMs int64

	updateCount   uint32
	totalCommands uint32
	commandErrors uint32
	updateErrors  uint32
}

// New subscribes to the actuators config section; the retained section, if
// already published, configures the module on its first Update.
func New(h *hal.HAL, reg *actuator.Registry, conn *bus.Connection) *Module {
	return &Module{
		hal:              h,
		registry:         reg,
		conn:             conn,
		config:           conn.Subscribe(topicConfig),
		updateIntervalMs: 10,
	}
}

// Configure builds driver instances from the actuators config section:
// {update_interval_ms, actuators: [{role, type, command_key, status_key,
// config}]}. Each instance subscribes to its command topic; a broken entry
// is logged and skipped.
func (m *Module) Configure(cfg map[string]any) {
	for _, inst := range m.instances {
		inst.commands.Unsubscribe()
	}
	m.instances = nil

	if v := sensor.BlobInt(cfg, "update_interval_ms", int(m.updateIntervalMs)); v > 0 {
		m.updateIntervalMs = int64(v)
	}

	entries, _ := cfg["actuators"].([]any)
	for _, e := range entries {
		blob, ok := e.(map[string]any)
		if !ok {
			println("Error: actuators: config entry is not an object")
			continue
		}
		if inst := m.createInstance(blob); inst != nil {
			m.instances = append(m.instances, inst)
			m.publishStatus(inst)
		}
	}
	println("Info: actuators: configured", len(m.instances), "of", len(entries), "actuators")
}

func (m *Module) createInstance(blob map[string]any) *instance {
	role := sensor.BlobString(blob, "role", "")
	typ := sensor.BlobString(blob, "type", "")
	cmdKey := sensor.BlobString(blob, "command_key", "")
	statusKey := sensor.BlobString(blob, "status_key", "")
	if role == "" || typ == "" || cmdKey == "" || statusKey == "" {
		println("Error: actuators: entry needs role, type, command_key and status_key")
		return nil
	}

	drv := m.registry.Create(typ)
	if drv == nil {
		println("Error: actuators:", role, "has unknown type", typ)
		return nil
	}
	drvCfg, _ := blob["config"].(map[string]any)
	if err := drv.Init(m.hal, drvCfg); err != nil {
		println("Error: actuators:", role, "init failed:", err.Error())
		return nil
	}

	println("Info: actuators: created", role, "type", typ)
	return &instance{
		role:      role,
		typ:       typ,
		statusKey: bus.Parse(statusKey),
		driver:    drv,
		commands:  m.conn.Subscribe(bus.Parse(cmdKey)),
	}
}

// Update applies any pending reconfiguration, drains pending commands,
// advances every driver and refreshes retained status once a second.
func (m *Module) Update() {
	m.drainConfig()
	m.updateCount++
	every := uint32(1000 / m.updateIntervalMs)
	if every == 0 {
		every = 1
	}
	refresh := m.updateCount%every == 0

	for _, inst := range m.instances {
		m.drainCommands(inst)
		m.updateOne(inst)
		if refresh {
			m.publishStatus(inst)
		}
	}
}

// drainConfig replaces the instance set wholesale when a new config section
// arrives, on the module goroutine like every other driver call.
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

func (m *Module) drainCommands(inst *instance) {
	for {
		select {
		case msg := <-inst.commands.Channel():
			m.execute(inst, msg.Payload)
		default:
			return
		}
	}
}

func (m *Module) execute(inst *instance, cmd any) {
	err := m.executeOne(inst, cmd)
	inst.commandCount++
	m.totalCommands++
	if err != nil {
		inst.errorCount++
		m.commandErrors++
		println("Warn: actuators: command failed:", inst.role, err.Error())
	}

	m.publishStatus(inst)
	m.conn.Publish(m.conn.NewMessage(bus.T("actuator", "command"), map[string]any{
		"role":    inst.role,
		"command": cmd,
		"success": err == nil,
	}, false))
}

func (m *Module) executeOne(inst *instance, cmd any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			println("Error: actuators: driver panic:", inst.role)
			err = errDriverPanic
		}
	}()
	return inst.driver.ExecuteCommand(cmd)
}

func (m *Module) updateOne(inst *instance) {
	defer func() {
		if r := recover(); r != nil {
			println("Error: actuators: driver panic in update:", inst.role)
			inst.errorCount++
			m.updateErrors++
		}
	}()
	inst.driver.Update()
}

func (m *Module) publishStatus(inst *instance) {
	m.conn.Publish(m.conn.NewMessage(inst.statusKey, statusPayload{
		Status:       inst.driver.Status(),
		Role:         inst.role,
		Type:         inst.typ,
		CommandCount: inst.commandCount,
		ErrorCount:   inst.errorCount,
	}, true))
}

// EmergencyStopAll forces every actuator to its safe state, bypassing
// protection timers, and announces it on the bus.
func (m *Module) EmergencyStopAll() {
	println("Warn: actuators: emergency stop all")
	for _, inst := range m.instances {
		inst.driver.EmergencyStop()
		m.publishStatus(inst)
	}
	m.conn.Publish(m.conn.NewMessage(bus.T("actuator", "emergency_stop"), nil, false))
}

// Run advances the module at 100 Hz until the context is cancelled.
func (m *Module) Run(ctx context.Context) {
	ticker := time.NewTicker(timex.PeriodFromHz(100))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.EmergencyStopAll()
			return
		case <-ticker.C:
			m.Update()
		}
	}
}

// Status returns the current merged status for a role.
func (m *Module) Status(role string) (actuator.Status, bool) {
	for _, inst := range m.instances {
		if inst.role == role {
			return inst.driver.Status(), true
		}
	}
	return actuator.Status{}, false
}

// Command routes a command to a role directly, for in-process callers like
// the console. Bus clients publish to the command topic instead.
func (m *Module) Command(role string, cmd any) error {
	for _, inst := range m.instances {
		if inst.role == role {
			err := m.executeOne(inst, cmd)
			inst.commandCount++
			m.totalCommands++
			if err != nil {
				inst.errorCount++
				m.commandErrors++
			}
			m.publishStatus(inst)
			return err
		}
	}
	return errRoleUnknown
}

// Roles lists configured actuator roles in configuration order.
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

// HealthScore is the command success ratio, or availability when no command
// has run yet. Update-path panics are counted per instance, not here, so the
// score stays within 0-100.
func (m *Module) HealthScore() int {
	if len(m.instances) == 0 {
		return 0
	}
	if m.totalCommands == 0 {
		available := 0
		for _, inst := range m.instances {
			if inst.driver.IsAvailable() {
				available++
			}
		}
		return available * 100 / len(m.instances)
	}
	ok := m.totalCommands - m.commandErrors
	return int(ok * 100 / m.totalCommands)
}

func (m *Module) IsHealthy() bool {
	if len(m.instances) == 0 {
		return false
	}
	for _, inst := range m.instances {
		if inst.errorCount > errorThreshold || !inst.driver.IsAvailable() {
			return false
		}
	}
	return true
}

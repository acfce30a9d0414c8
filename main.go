package main

import (
	"context"
	"time"

	"modesp/bus"
	"modesp/drivers"
	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/hal"
	"modesp/hal/boards"
	"modesp/modules/actuators"
	"modesp/modules/sensors"
	"modesp/services/config"
	"modesp/services/heartbeat"
)

// Firmware entry point. The board name is baked in at build time; the host
// daemon in cmd/modespd takes it from the command line instead.
const boardName = "rev_a_refrigerator"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("Info: main: boot, board", boardName)

	ctx := context.WithValue(context.Background(), config.CtxBoardKey, boardName)

	b := bus.NewBus(64)

	// Retained config sections must be in place before the modules wire up.
	if err := config.NewService().Publish(ctx, b.NewConnection("config")); err != nil {
		println("Error: main: config:", err.Error())
		return
	}

	def, ok := boards.ByName(boardName)
	if !ok {
		println("Error: main: unknown board:", boardName)
		return
	}
	h := hal.New(def)
	if err := h.Init(); err != nil {
		println("Error: main: hal init:", err.Error())
		return
	}

	sensReg := sensor.NewRegistry()
	drivers.RegisterAllSensors(sensReg)
	actReg := actuator.NewRegistry()
	drivers.RegisterAllActuators(actReg)

	// The modules pick up their retained config sections on the first tick
	// and reconfigure live when a section is republished.
	sm := sensors.New(h, sensReg, b.NewConnection("sensors"))
	am := actuators.New(h, actReg, b.NewConnection("actuators"))

	// The two collection loops must never block each other.
	go sm.Run(ctx)
	go am.Run(ctx)

	hb := &heartbeat.Service{Sensors: sm, Actuators: am}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("Error: main: heartbeat:", err.Error())
	}

	println("Info: main: running")
	select {}
}

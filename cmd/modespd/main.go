// Command modespd runs the full controller as a host process: fake HAL,
// real modules and services, diagnostic console on stdin/stdout. The board
// name comes from the first argument and defaults to the refrigerator.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modesp/bus"
	"modesp/drivers"
	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/hal"
	"modesp/hal/boards"
	"modesp/modules/actuators"
	"modesp/modules/sensors"
	"modesp/services/bridge"
	"modesp/services/config"
	"modesp/services/console"
	"modesp/services/heartbeat"
)

const defaultBoard = "rev_a_refrigerator"

// stdio joins stdin and stdout into the console's terminal.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func main() {
	board := defaultBoard
	if len(os.Args) > 1 {
		board = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = context.WithValue(ctx, config.CtxBoardKey, board)

	b := bus.NewBus(64)

	if err := config.NewService().Publish(ctx, b.NewConnection("config")); err != nil {
		println("Error: modespd: config:", err.Error())
		os.Exit(1)
	}

	def, ok := boards.ByName(board)
	if !ok {
		println("Error: modespd: unknown board:", board)
		os.Exit(1)
	}
	h := hal.New(def)
	if err := h.Init(); err != nil {
		println("Error: modespd: hal init:", err.Error())
		os.Exit(1)
	}

	sensReg := sensor.NewRegistry()
	drivers.RegisterAllSensors(sensReg)
	actReg := actuator.NewRegistry()
	drivers.RegisterAllActuators(actReg)

	// The modules pick up their retained config sections on the first tick
	// and reconfigure live when a section is republished.
	sm := sensors.New(h, sensReg, b.NewConnection("sensors"))
	am := actuators.New(h, actReg, b.NewConnection("actuators"))

	go sm.Run(ctx)
	go am.Run(ctx)

	hb := &heartbeat.Service{Sensors: sm, Actuators: am}
	if err := hb.Start(ctx, b.NewConnection("heartbeat")); err != nil {
		println("Error: modespd: heartbeat:", err.Error())
	}

	// Bridge only comes up when the board config carries a bridge section.
	if _, ok := b.Retained(bus.T("config", "bridge")); ok {
		go bridge.Start(ctx, b.NewConnection("bridge"))
	}

	// A signal while the console blocks on stdin still stops the process.
	go func() {
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond)
		os.Exit(0)
	}()

	println("Info: modespd: running on board", board)
	con := &console.Service{
		HAL:           h,
		Sensors:       sm,
		Actuators:     am,
		SensorTypes:   sensReg,
		ActuatorTypes: actReg,
	}
	con.Run(ctx, stdio{})

	cancel()
	time.Sleep(200 * time.Millisecond)
}

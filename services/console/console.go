// Package console is a line-oriented diagnostic shell over any
// io.ReadWriter. On the host it sits on stdin/stdout; behind the bridge it
// can serve a serial link. It only dispatches through the modules, so every
// command goes down the same paths the controller itself uses.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"modesp/drivers/actuator"
	"modesp/drivers/sensor"
	"modesp/hal"
	"modesp/modules/actuators"
	"modesp/modules/sensors"
)

const prompt = "modesp> "

// Service wires the shell to the live modules. All fields must be set
// before Run.
type Service struct {
	HAL           *hal.HAL
	Sensors       *sensors.Module
	Actuators     *actuators.Module
	SensorTypes   *sensor.Registry
	ActuatorTypes *actuator.Registry
}

// Run reads commands line by line until the reader closes or ctx is
// cancelled. Cancellation is only observed between lines; the read itself
// blocks on rw.
func (s *Service) Run(ctx context.Context, rw io.ReadWriter) {
	sc := bufio.NewScanner(rw)
	for {
		fmt.Fprint(rw, prompt)
		if !sc.Scan() {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.Exec(sc.Text(), rw)
	}
}

// Exec runs one command line and writes the response to w.
func (s *Service) Exec(line string, w io.Writer) {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintln(w, "parse error:", err)
		return
	}
	if len(args) == 0 {
		return
	}

	switch args[0] {
	case "drivers":
		s.cmdDrivers(w)
	case "scan":
		s.cmdScan(w, args[1:])
	case "sensors":
		s.cmdSensors(w)
	case "read":
		s.cmdRead(w, args[1:])
	case "set":
		s.cmdSet(w, args[1:])
	case "stop":
		s.Actuators.EmergencyStopAll()
		fmt.Fprintln(w, "emergency stop issued; all actuators forced to safe state")
	case "health":
		s.cmdHealth(w)
	case "help":
		s.cmdHelp(w)
	default:
		fmt.Fprintln(w, "unknown command:", args[0])
		s.cmdHelp(w)
	}
}

func (s *Service) cmdHelp(w io.Writer) {
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  drivers              list registered driver types")
	fmt.Fprintln(w, "  scan <hal_id>        search a 1-Wire bus for devices")
	fmt.Fprintln(w, "  sensors              list sensor roles and last readings")
	fmt.Fprintln(w, "  read <role>          show one sensor reading in detail")
	fmt.Fprintln(w, "  set <role> <value>   command an actuator (on, off or a number)")
	fmt.Fprintln(w, "  stop                 emergency stop all actuators")
	fmt.Fprintln(w, "  health               module health scores")
}

func (s *Service) cmdDrivers(w io.Writer) {
	fmt.Fprintln(w, "sensor types:  ", strings.Join(s.SensorTypes.Types(), ", "))
	fmt.Fprintln(w, "actuator types:", strings.Join(s.ActuatorTypes.Types(), ", "))
}

func (s *Service) cmdScan(w io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(w, "usage: scan <hal_id>")
		return
	}
	bus, err := s.HAL.OneWireBus(args[0])
	if err != nil {
		fmt.Fprintln(w, "scan:", err)
		return
	}
	devices := bus.SearchDevices()
	fmt.Fprintf(w, "%s: %d device(s)\n", args[0], len(devices))
	for _, addr := range devices {
		fmt.Fprintln(w, " ", addr.String())
	}
}

func (s *Service) cmdSensors(w io.Writer) {
	roles := s.Sensors.Roles()
	if len(roles) == 0 {
		fmt.Fprintln(w, "no sensors configured")
		return
	}
	for _, role := range roles {
		r, _ := s.Sensors.Reading(role)
		if r.IsValid {
			fmt.Fprintf(w, "%-20s %.2f %s\n", role, r.Value, r.Unit)
		} else if r.Error != "" {
			fmt.Fprintf(w, "%-20s invalid: %s\n", role, r.Error)
		} else {
			fmt.Fprintf(w, "%-20s no reading yet\n", role)
		}
	}
}

func (s *Service) cmdRead(w io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(w, "usage: read <role>")
		return
	}
	r, ok := s.Sensors.Reading(args[0])
	if !ok {
		fmt.Fprintln(w, "unknown sensor role:", args[0])
		return
	}
	fmt.Fprintln(w, "role:     ", args[0])
	fmt.Fprintf(w, "value:     %.4f %s\n", r.Value, r.Unit)
	fmt.Fprintln(w, "valid:    ", r.IsValid)
	fmt.Fprintln(w, "timestamp:", r.TimestampMs, "ms")
	if r.Error != "" {
		fmt.Fprintln(w, "error:    ", r.Error)
	}
	if diag, ok := s.Sensors.Diagnostics(args[0]); ok {
		fmt.Fprintln(w, "diag:     ", diag)
	}
}

func (s *Service) cmdSet(w io.Writer, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(w, "usage: set <role> <on|off|number>")
		return
	}
	cmd, err := parseCommand(args[1])
	if err != nil {
		fmt.Fprintln(w, "set:", err)
		return
	}
	if err := s.Actuators.Command(args[0], cmd); err != nil {
		fmt.Fprintln(w, "set:", err)
		return
	}
	fmt.Fprintln(w, "ok")
}

func (s *Service) cmdHealth(w io.Writer) {
	fmt.Fprintf(w, "sensors:   %d%% healthy=%v\n", s.Sensors.HealthScore(), s.Sensors.IsHealthy())
	fmt.Fprintf(w, "actuators: %d%% healthy=%v\n", s.Actuators.HealthScore(), s.Actuators.IsHealthy())
}

// parseCommand turns a shell argument into a driver command value: on/off
// map to booleans, anything else must parse as a number.
func parseCommand(arg string) (any, error) {
	switch arg {
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	}
	v, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return nil, fmt.Errorf("not on, off or a number: %q", arg)
	}
	return v, nil
}

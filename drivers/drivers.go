// Package drivers wires the built-in driver set into registries. Registration
// is explicit so a binary only carries the drivers it registers and tests can
// build registries with fakes.
package drivers

import (
	"modesp/drivers/actuator"
	"modesp/drivers/actuator/gpiooutput"
	"modesp/drivers/actuator/pwmout"
	"modesp/drivers/actuator/relay"
	"modesp/drivers/sensor"
	"modesp/drivers/sensor/aht20drv"
	"modesp/drivers/sensor/ds18b20async"
	"modesp/drivers/sensor/gpioinput"
	"modesp/drivers/sensor/ntc"
	"modesp/drivers/sensor/pressure420"
)

// RegisterAllSensors registers every built-in sensor driver.
func RegisterAllSensors(reg *sensor.Registry) {
	ds18b20async.Register(reg)
	ntc.Register(reg)
	gpioinput.Register(reg)
	pressure420.Register(reg)
	aht20drv.Register(reg)
}

// RegisterAllActuators registers every built-in actuator driver.
func RegisterAllActuators(reg *actuator.Registry) {
	relay.Register(reg)
	gpiooutput.Register(reg)
	pwmout.Register(reg)
}

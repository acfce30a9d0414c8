// Package boards holds static per-revision resource tables. A board
// definition is pure data: hal_id, pin assignment and electrical hints for
// every resource the HAL owns. Platform factories turn these into live
// channels at init.
package boards

// NoPin marks an unused optional pin (e.g. a 1-Wire power rail).
const NoPin = -1

type GpioOutputDef struct {
	ID          string
	Pin         uint8
	ActiveHigh  bool
	Description string
}

type GpioInputDef struct {
	ID          string
	Pin         uint8
	PullUp      bool
	Description string
}

type OneWireDef struct {
	ID          string
	DataPin     uint8
	PowerPin    int16 // NoPin when the bus has no switched rail
	Description string
}

type ADCDef struct {
	ID          string
	Channel     uint8
	AttenDB     uint8
	Description string
}

type PWMDef struct {
	ID          string
	Pin         uint8
	FreqHz      uint32
	Description string
}

type I2CDef struct {
	ID          string
	Port        uint8
	SCL         uint8
	SDA         uint8
	FreqHz      uint32
	Description string
}

// Def is one board revision's complete resource table.
type Def struct {
	Name    string
	Version string

	GpioOutputs []GpioOutputDef
	GpioInputs  []GpioInputDef
	OneWire     []OneWireDef
	ADC         []ADCDef
	PWM         []PWMDef
	I2C         []I2CDef
}

// RevARefrigerator is the original refrigerator controller board: four
// relays, two 1-Wire buses, four ADC inputs and status LEDs.
func RevARefrigerator() Def {
	return Def{
		Name:    "rev_a_refrigerator",
		Version: "1.0",
		GpioOutputs: []GpioOutputDef{
			{ID: "RELAY_COMPRESSOR", Pin: 4, ActiveHigh: true, Description: "Main compressor relay"},
			{ID: "RELAY_FAN", Pin: 5, ActiveHigh: true, Description: "Evaporator fan relay"},
			{ID: "RELAY_DEFROST", Pin: 18, ActiveHigh: true, Description: "Defrost heater relay"},
			{ID: "RELAY_LIGHTS", Pin: 19, ActiveHigh: true, Description: "Internal lights relay"},
			{ID: "LED_STATUS", Pin: 2, ActiveHigh: false, Description: "Status LED (built-in)"},
			{ID: "LED_ALARM", Pin: 21, ActiveHigh: false, Description: "Alarm indicator LED"},
		},
		GpioInputs: []GpioInputDef{
			{ID: "INPUT_DOOR_SWITCH", Pin: 15, PullUp: true, Description: "Door open/close switch"},
			{ID: "INPUT_DEFROST_END", Pin: 16, PullUp: true, Description: "Defrost end switch"},
			{ID: "INPUT_EMERGENCY", Pin: 17, PullUp: true, Description: "Emergency stop button"},
		},
		OneWire: []OneWireDef{
			{ID: "ONEWIRE_CHAMBER", DataPin: 32, PowerPin: 33, Description: "Chamber temperature sensors"},
			{ID: "ONEWIRE_EVAPORATOR", DataPin: 14, PowerPin: NoPin, Description: "Evaporator temperature sensors"},
		},
		ADC: []ADCDef{
			{ID: "ADC_PRESSURE_HIGH", Channel: 0, AttenDB: 12, Description: "High pressure sensor"},
			{ID: "ADC_PRESSURE_LOW", Channel: 1, AttenDB: 12, Description: "Low pressure sensor"},
			{ID: "ADC_AMBIENT_TEMP", Channel: 2, AttenDB: 12, Description: "Ambient temperature (NTC)"},
			{ID: "ADC_SPARE_INPUT", Channel: 3, AttenDB: 12, Description: "Spare analog input"},
		},
		PWM: []PWMDef{
			{ID: "PWM_EVAP_FAN", Pin: 23, FreqHz: 25000, Description: "Evaporator fan speed (4-wire)"},
		},
	}
}

// RevBRipeningChamber controls a fruit ripening chamber: six relays, button
// inputs, an I2C sensor bus and three 1-Wire buses.
func RevBRipeningChamber() Def {
	return Def{
		Name:    "rev_b_ripening_chamber",
		Version: "2.0",
		GpioOutputs: []GpioOutputDef{
			{ID: "VENTILATION_FAN", Pin: 1, ActiveHigh: true, Description: "Ventilation fan"},
			{ID: "HEATER", Pin: 2, ActiveHigh: true, Description: "Chamber heater"},
			{ID: "HUMIDIFIER", Pin: 3, ActiveHigh: true, Description: "Humidifier"},
			{ID: "ETHYLENE_VALVE", Pin: 4, ActiveHigh: true, Description: "Ethylene gas valve"},
			{ID: "EXHAUST_FAN", Pin: 5, ActiveHigh: true, Description: "Exhaust fan"},
			{ID: "CO2_SCRUBBER", Pin: 6, ActiveHigh: true, Description: "CO2 scrubber"},
		},
		GpioInputs: []GpioInputDef{
			{ID: "DOOR_SWITCH", Pin: 9, PullUp: true, Description: "Chamber door switch"},
			{ID: "EMERGENCY_STOP", Pin: 10, PullUp: true, Description: "Emergency stop button"},
			{ID: "CYCLE_START", Pin: 11, PullUp: true, Description: "Ripening cycle start"},
			{ID: "MANUAL_VENT", Pin: 12, PullUp: true, Description: "Manual ventilation"},
		},
		OneWire: []OneWireDef{
			{ID: "CHAMBER_TEMP", DataPin: 8, PowerPin: NoPin, Description: "Chamber temperature"},
			{ID: "PRODUCT_TEMP", DataPin: 7, PowerPin: NoPin, Description: "Product temperature"},
			{ID: "EXHAUST_TEMP", DataPin: 14, PowerPin: NoPin, Description: "Exhaust temperature"},
		},
		ADC: []ADCDef{
			{ID: "HUMIDITY_SENSOR", Channel: 0, AttenDB: 12, Description: "Humidity sensor"},
			{ID: "CO2_SENSOR", Channel: 1, AttenDB: 12, Description: "CO2 concentration"},
			{ID: "ETHYLENE_SENSOR", Channel: 2, AttenDB: 12, Description: "Ethylene concentration"},
		},
		PWM: []PWMDef{
			{ID: "CIRCULATION_FAN", Pin: 13, FreqHz: 25000, Description: "Air circulation fan speed"},
		},
		I2C: []I2CDef{
			{ID: "I2C_SENSORS", Port: 0, SCL: 15, SDA: 16, FreqHz: 400000, Description: "Environmental sensors"},
		},
	}
}

// ByName resolves a board definition from its config name.
func ByName(name string) (Def, bool) {
	switch name {
	case "rev_a_refrigerator":
		return RevARefrigerator(), true
	case "rev_b_ripening_chamber":
		return RevBRipeningChamber(), true
	}
	return Def{}, false
}

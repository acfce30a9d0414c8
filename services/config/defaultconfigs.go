package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// One JSON blob per board revision. Key: board name (same value placed in
// ctx under CtxBoardKey). Regenerate from the deployment repo when the
// channel layout changes.
// -----------------------------------------------------------------------------

const cfgRevARefrigerator = `{
  "sensors": {
    "poll_interval_ms": 100,
    "publish_on_error": true,
    "sensors": [
      {
        "role": "chamber_temp",
        "type": "ds18b20_async",
        "publish_key": "state.sensor.chamber_temp",
        "config": {
          "hal_id": "ONEWIRE_CHAMBER",
          "address": "28FF641E8016C5A3",
          "resolution": 12,
          "offset": 0.0
        }
      },
      {
        "role": "evaporator_temp",
        "type": "ds18b20_async",
        "publish_key": "state.sensor.evaporator_temp",
        "config": {
          "hal_id": "ONEWIRE_EVAPORATOR",
          "address": "28FF2B45A1160342",
          "resolution": 11
        }
      },
      {
        "role": "ambient_temp",
        "type": "ntc",
        "publish_key": "state.sensor.ambient_temp",
        "config": {
          "hal_id": "ADC_AMBIENT_TEMP",
          "profile": "10K_3950",
          "averaging_samples": 5
        }
      },
      {
        "role": "high_pressure",
        "type": "pressure_4_20ma",
        "publish_key": "state.sensor.high_pressure",
        "config": {
          "hal_id": "ADC_PRESSURE_HIGH",
          "pressure_min": 0.0,
          "pressure_max": 30.0,
          "alarm_high": 25.0
        }
      },
      {
        "role": "door_switch",
        "type": "gpio_input",
        "publish_key": "state.sensor.door_switch",
        "config": {
          "hal_id": "INPUT_DOOR_SWITCH",
          "invert": true,
          "debounce_ms": 50,
          "active_label": "open",
          "inactive_label": "closed"
        }
      }
    ]
  },
  "actuators": {
    "update_interval_ms": 10,
    "actuators": [
      {
        "role": "compressor",
        "type": "relay",
        "command_key": "command.compressor",
        "status_key": "state.actuator.compressor",
        "config": {
          "hal_id": "RELAY_COMPRESSOR",
          "min_off_time_s": 180,
          "min_on_time_s": 60,
          "inrush_delay_ms": 500
        }
      },
      {
        "role": "defrost_heater",
        "type": "relay",
        "command_key": "command.defrost_heater",
        "status_key": "state.actuator.defrost_heater",
        "config": {
          "hal_id": "RELAY_DEFROST",
          "min_off_time_s": 300
        }
      },
      {
        "role": "chamber_light",
        "type": "gpio_output",
        "command_key": "command.chamber_light",
        "status_key": "state.actuator.chamber_light",
        "config": {
          "hal_id": "RELAY_LIGHTS"
        }
      },
      {
        "role": "alarm_led",
        "type": "gpio_output",
        "command_key": "command.alarm_led",
        "status_key": "state.actuator.alarm_led",
        "config": {
          "hal_id": "LED_ALARM",
          "blink_on_ms": 500,
          "blink_off_ms": 500
        }
      },
      {
        "role": "evaporator_fan",
        "type": "pwm",
        "command_key": "command.evaporator_fan",
        "status_key": "state.actuator.evaporator_fan",
        "config": {
          "hal_id": "PWM_EVAP_FAN",
          "min_duty_percent": 20.0,
          "ramp_time_ms": 2000,
          "default_duty": 0.0
        }
      }
    ]
  },
  "bridge": {
    "topics": ["state", "actuator", "sensor"]
  },
  "heartbeat": {
    "interval": 2
  }
}`

const cfgRevBRipeningChamber = `{
  "sensors": {
    "poll_interval_ms": 200,
    "publish_on_error": true,
    "sensors": [
      {
        "role": "chamber_climate",
        "type": "aht20",
        "publish_key": "state.sensor.chamber_temp",
        "config": {
          "hal_id": "I2C_SENSORS",
          "channel": "temperature"
        }
      },
      {
        "role": "chamber_humidity",
        "type": "aht20",
        "publish_key": "state.sensor.chamber_humidity",
        "config": {
          "hal_id": "I2C_SENSORS",
          "channel": "humidity"
        }
      },
      {
        "role": "product_temp",
        "type": "ds18b20_async",
        "publish_key": "state.sensor.product_temp",
        "config": {
          "hal_id": "PRODUCT_TEMP",
          "address": "28FF9A02B3170D51",
          "resolution": 12
        }
      },
      {
        "role": "door_switch",
        "type": "gpio_input",
        "publish_key": "state.sensor.door_switch",
        "config": {
          "hal_id": "DOOR_SWITCH",
          "debounce_ms": 50
        }
      }
    ]
  },
  "actuators": {
    "update_interval_ms": 10,
    "actuators": [
      {
        "role": "ventilation_fan",
        "type": "relay",
        "command_key": "command.ventilation_fan",
        "status_key": "state.actuator.ventilation_fan",
        "config": {
          "hal_id": "VENTILATION_FAN",
          "min_on_time_s": 30
        }
      },
      {
        "role": "humidifier",
        "type": "relay",
        "command_key": "command.humidifier",
        "status_key": "state.actuator.humidifier",
        "config": {
          "hal_id": "HUMIDIFIER"
        }
      },
      {
        "role": "circulation_fan",
        "type": "pwm",
        "command_key": "command.circulation_fan",
        "status_key": "state.actuator.circulation_fan",
        "config": {
          "hal_id": "CIRCULATION_FAN",
          "ramp_time_ms": 1000
        }
      }
    ]
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"rev_a_refrigerator":     []byte(cfgRevARefrigerator),
	"rev_b_ripening_chamber": []byte(cfgRevBRipeningChamber),
}

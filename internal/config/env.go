package config

import (
	"strconv"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/log2"
)

// Environment names, first four are compatible with earlier deployments.
const (
	EnvHost          = "MQTT_HOST"
	EnvTopic         = "MQTT_TOPIC"
	EnvQOS           = "MQTT_QOS"
	EnvSerialPort    = "SERIAL_PORT"
	EnvBackend       = "DSMR_MQTT_BACKEND"
	EnvPayloadFormat = "DSMR_PAYLOAD_FORMAT"
	EnvRetain        = "DSMR_MQTT_RETAIN"
	EnvSerialBaud    = "DSMR_SERIAL_BAUD"
	EnvPersistRoot   = "DSMR_PERSIST_ROOT"
	EnvMetricsListen = "DSMR_METRICS_LISTEN"
	EnvLogDebug      = "DSMR_LOG_DEBUG"
)

// ApplyEnv overrides fields with non-empty variables. Unset and empty are same.
// Non-integer MQTT_QOS means 0, other malformed values are errors.
func (c *Config) ApplyEnv(log *log2.Log, getenv func(string) string) error {
	errs := make([]error, 0, 4)
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := getenv(name); v != "" {
			x, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, errors.NotValidf("env %s=%s", name, v))
				return
			}
			*dst = x
		}
	}
	flag := func(name string, dst *bool) {
		if v := getenv(name); v != "" {
			x, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, errors.NotValidf("env %s=%s", name, v))
				return
			}
			*dst = x
		}
	}

	str(EnvHost, &c.Mqtt.Host)
	str(EnvTopic, &c.Mqtt.Topic)
	if v := getenv(EnvQOS); v != "" {
		x, err := strconv.Atoi(v)
		if err != nil {
			log.Errorf("env %s=%s not integer, using qos=0", EnvQOS, v)
			x = 0
		}
		c.Mqtt.QOS = x
	}
	str(EnvSerialPort, &c.Serial.Port)
	str(EnvBackend, &c.Mqtt.Backend)
	str(EnvPayloadFormat, &c.Mqtt.PayloadFormat)
	flag(EnvRetain, &c.Mqtt.Retain)
	num(EnvSerialBaud, &c.Serial.Baud)
	str(EnvPersistRoot, &c.Persist.Root)
	str(EnvMetricsListen, &c.Metrics.Listen)
	flag(EnvLogDebug, &c.LogDebug)
	return helpers.FoldErrors(errs)
}

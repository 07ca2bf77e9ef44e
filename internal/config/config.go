// Package config is process configuration: defaults, optional file, environment.
// Resolved once at startup, read-only after Load.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/hardware/serial"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/measure"
)

const (
	DefaultHost       = "tcp://10.10.10.13:1883"
	DefaultTopic      = "dsmr"
	DefaultSerialPort = "/dev/ttyUSB1"
	DefaultClientID   = "dsmr-reader"
	DefaultKeepalive  = 30
	DefaultBackoff    = 5 * time.Second

	BackendGomqtt = "gomqtt"
	BackendPaho   = "paho"
)

type Config struct {
	LogDebug bool `hcl:"log_debug" yaml:"log_debug"`

	Mqtt struct { //nolint:maligned
		Host              string `hcl:"host" yaml:"host"`
		Topic             string `hcl:"topic" yaml:"topic"`
		QOS               int    `hcl:"qos" yaml:"qos"`
		Retain            bool   `hcl:"retain" yaml:"retain"`
		Backend           string `hcl:"backend" yaml:"backend"`
		ClientID          string `hcl:"client_id" yaml:"client_id"`
		KeepaliveSec      int    `hcl:"keepalive_sec" yaml:"keepalive_sec"`
		NetworkTimeoutSec int    `hcl:"network_timeout_sec" yaml:"network_timeout_sec"`
		PayloadFormat     string `hcl:"payload_format" yaml:"payload_format"`
		Username          string `hcl:"username" yaml:"username"`
		Password          string `hcl:"password" yaml:"password"`
		LogDebug          bool   `hcl:"log_debug" yaml:"log_debug"`
	} `hcl:"mqtt" yaml:"mqtt"`

	Serial struct {
		Port            string `hcl:"port" yaml:"port"`
		Baud            int    `hcl:"baud" yaml:"baud"`
		TimeoutMs       int    `hcl:"timeout_ms" yaml:"timeout_ms"`
		DataRequestChip string `hcl:"data_request_chip" yaml:"data_request_chip"`
		DataRequestLine int    `hcl:"data_request_line" yaml:"data_request_line"`
	} `hcl:"serial" yaml:"serial"`

	Supervisor struct {
		BackoffSec int `hcl:"backoff_sec" yaml:"backoff_sec"`
	} `hcl:"supervisor" yaml:"supervisor"`

	Persist struct {
		Root string `hcl:"root" yaml:"root"`
	} `hcl:"persist" yaml:"persist"`

	Metrics struct {
		Listen string `hcl:"listen" yaml:"listen"`
	} `hcl:"metrics" yaml:"metrics"`
}

func Default() *Config {
	c := &Config{}
	c.Mqtt.Host = DefaultHost
	c.Mqtt.Topic = DefaultTopic
	c.Mqtt.Backend = BackendGomqtt
	c.Mqtt.ClientID = DefaultClientID
	c.Mqtt.KeepaliveSec = DefaultKeepalive
	c.Mqtt.PayloadFormat = string(measure.PayloadPlain)
	c.Serial.Port = DefaultSerialPort
	c.Serial.Baud = serial.DefaultBaud
	c.Supervisor.BackoffSec = int(DefaultBackoff / time.Second)
	return c
}

func (c *Config) Validate() error {
	errs := make([]error, 0, 8)
	if u, err := url.ParseRequestURI(c.Mqtt.Host); err != nil {
		errs = append(errs, errors.Annotatef(err, "mqtt.host=%s", c.Mqtt.Host))
	} else if u.Host == "" {
		errs = append(errs, errors.NotValidf("mqtt.host=%s without address", c.Mqtt.Host))
	}
	if strings.ContainsAny(c.Mqtt.Topic, "+#") {
		errs = append(errs, errors.NotValidf("mqtt.topic=%s wildcards", c.Mqtt.Topic))
	}
	switch c.Mqtt.QOS {
	case 0, 1:
	case 2:
		errs = append(errs, errors.NotSupportedf("mqtt.qos=2"))
	default:
		errs = append(errs, errors.NotValidf("mqtt.qos=%d", c.Mqtt.QOS))
	}
	switch c.Mqtt.Backend {
	case BackendGomqtt, BackendPaho:
	default:
		errs = append(errs, errors.NotValidf("mqtt.backend=%s valid: %s %s", c.Mqtt.Backend, BackendGomqtt, BackendPaho))
	}
	if c.Mqtt.KeepaliveSec < 0 || c.Mqtt.KeepaliveSec > 0xffff {
		errs = append(errs, errors.NotValidf("mqtt.keepalive_sec=%d", c.Mqtt.KeepaliveSec))
	}
	if _, err := measure.ParsePayloadFormat(c.Mqtt.PayloadFormat); err != nil {
		errs = append(errs, errors.Annotate(err, "mqtt.payload_format"))
	}
	if c.Serial.Port == "" {
		errs = append(errs, errors.NotValidf("serial.port empty"))
	}
	switch c.Serial.Baud {
	case 9600, 115200:
	default:
		errs = append(errs, errors.NotSupportedf("serial.baud=%d valid: 9600 115200", c.Serial.Baud))
	}
	if c.Serial.DataRequestLine < 0 {
		errs = append(errs, errors.NotValidf("serial.data_request_line=%d", c.Serial.DataRequestLine))
	}
	if c.Serial.DataRequestLine != 0 && c.Serial.DataRequestChip == "" {
		errs = append(errs, errors.NotValidf("serial.data_request_line without data_request_chip"))
	}
	if c.Supervisor.BackoffSec < 0 {
		errs = append(errs, errors.NotValidf("supervisor.backoff_sec=%d", c.Supervisor.BackoffSec))
	}
	return helpers.FoldErrors(errs)
}

func (c *Config) MeasureOptions() measure.Options {
	f, _ := measure.ParsePayloadFormat(c.Mqtt.PayloadFormat)
	return measure.Options{
		Prefix: c.Mqtt.Topic,
		QOS:    byte(c.Mqtt.QOS),
		Retain: c.Mqtt.Retain,
		Format: f,
	}
}

func (c *Config) SerialOptions() serial.Options {
	return serial.Options{
		Baud:    c.Serial.Baud,
		Timeout: helpers.IntMillisecondDefault(c.Serial.TimeoutMs, serial.DefaultTimeout),
	}
}

func (c *Config) Backoff() time.Duration {
	return helpers.IntSecondDefault(c.Supervisor.BackoffSec, DefaultBackoff)
}

func (c *Config) NetworkTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Mqtt.NetworkTimeoutSec, 30*time.Second)
}

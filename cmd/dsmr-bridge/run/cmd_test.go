package run

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/dsmr-bridge/bus/mqtt"
	"github.com/temoto/dsmr-bridge/bus/paho"
	"github.com/temoto/dsmr-bridge/internal/config"
	"github.com/temoto/dsmr-bridge/log2"
)

func TestPublisherFunc(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	cases := []struct {
		backend string
		check   func(t testing.TB, pf func() (interface{}, error))
	}{
		{config.BackendGomqtt, func(t testing.TB, pf func() (interface{}, error)) {
			p, err := pf()
			require.NoError(t, err)
			assert.IsType(t, &mqtt.Publisher{}, p)
		}},
		{config.BackendPaho, func(t testing.TB, pf func() (interface{}, error)) {
			p, err := pf()
			require.NoError(t, err)
			assert.IsType(t, &paho.Publisher{}, p)
		}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.backend, func(t *testing.T) {
			cfg := config.Default()
			cfg.Mqtt.Backend = c.backend
			f, err := PublisherFunc(cfg, log)
			require.NoError(t, err)
			c.check(t, func() (interface{}, error) { return f(context.Background()) })
		})
	}

	cfg := config.Default()
	cfg.Mqtt.Backend = "amqp"
	_, err := PublisherFunc(cfg, log)
	assert.True(t, errors.IsNotSupported(err))
}

func TestNewReporter(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	cfg := config.Default()
	_, err := newReporter(cfg, log)
	require.NoError(t, err)

	cfg.Persist.Root = t.TempDir()
	r, err := newReporter(cfg, log)
	require.NoError(t, err)
	r.Report(errors.New("test"))
}

func TestMainArgs(t *testing.T) {
	t.Parallel()

	err := Main(context.Background(), config.Default(), nil, []string{"extra"})
	assert.True(t, errors.IsNotValid(err))
}

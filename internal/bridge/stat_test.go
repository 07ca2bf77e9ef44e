package bridge

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewStats(reg)
	s.Failures.WithLabelValues(KindRead.String()).Inc()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(mfs))
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, name := range []string{
		"dsmr_telegrams_total",
		"dsmr_messages_published_total",
		"dsmr_run_failures_total",
		"dsmr_restarts_total",
		"dsmr_last_telegram_timestamp_seconds",
		"dsmr_serial_read_bytes_total",
		"dsmr_log_errors_total",
	} {
		assert.True(t, names[name], name)
	}
}

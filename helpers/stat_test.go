package helpers

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatReader(t *testing.T) {
	t.Parallel()

	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_bytes_total"})
	s := NewStatReader(strings.NewReader(strings.Repeat(".", 1024)), counter)
	assert.Equal(t, float64(0), testutil.ToFloat64(counter))
	buf := make([]byte, 17)
	_, _ = s.Read(buf[:0])
	assert.Equal(t, float64(0), testutil.ToFloat64(counter))
	_, _ = s.Read(buf[:5])
	assert.Equal(t, float64(5), testutil.ToFloat64(counter))
	_, _ = s.Read(buf)
	assert.Equal(t, float64(22), testutil.ToFloat64(counter))
}

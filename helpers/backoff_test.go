package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffConstant(t *testing.T) {
	t.Parallel()

	b := NewConstantBackoff(5 * time.Second)
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	for i := 0; i < 3; i++ {
		b.Failure()
		d := b.DelayBefore()
		assert.True(t, d > 4*time.Second && d <= 5*time.Second, "delay=%v", d)
	}
	b.Reset()
	assert.Equal(t, time.Duration(0), b.DelayBefore())
}

func TestBackoffGrow(t *testing.T) {
	t.Parallel()

	b := &Backoff{Min: 100 * time.Millisecond, Max: time.Second, K: 2, Res: 100 * time.Millisecond}
	expect := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for _, e := range expect {
		b.Failure()
		d := b.DelayBefore()
		// round() truncates elapsed time since Failure()
		assert.True(t, d == e*time.Millisecond || d == e*time.Millisecond-b.Res, "expected=%v delay=%v", e*time.Millisecond, d)
	}
}

func TestBackoffElapsed(t *testing.T) {
	t.Parallel()

	b := NewConstantBackoff(20 * time.Millisecond)
	b.Failure()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, time.Duration(0), b.DelayBefore())
}

package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	err := FoldErrors([]error{fmt.Errorf("qos=3"), nil, fmt.Errorf("port=empty")})
	assert.EqualError(t, err, "qos=3\nport=empty")

	// single error keeps its type for errors.Is* checks
	notValid := errors.NotValidf("env MQTT_HOST=x")
	err = FoldErrors([]error{nil, notValid})
	assert.Equal(t, notValid, err)
	assert.True(t, errors.IsNotValid(err))
}

func TestIntDefault(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5*time.Second, IntSecondDefault(0, 5*time.Second))
	assert.Equal(t, 7*time.Second, IntSecondDefault(7, 5*time.Second))
	assert.Equal(t, time.Second, IntMillisecondDefault(-1, time.Second))
	assert.Equal(t, 250*time.Millisecond, IntMillisecondDefault(250, time.Second))
}

package serial

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
)

func TestDataRequest(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	lines := &gpio_mock.MockLines{}
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_OUTPUT, dataRequestConsumer, uint32(17)).Return(lines, nil)
	lines.On("SetBulk", byte(1)).Return().Once()
	lines.On("SetBulk", byte(0)).Return().Once()
	lines.On("Flush").Return(nil).Twice()
	lines.On("Close").Return(nil).Once()
	chip.On("Close").Return(nil).Once()

	dr, err := NewDataRequest(chip, 17)
	require.NoError(t, err)
	require.NoError(t, dr.Close())
	chip.AssertExpectations(t)
	lines.AssertExpectations(t)
}

func TestDataRequestFlushError(t *testing.T) {
	t.Parallel()

	chip := &gpio_mock.MockChip{}
	lines := &gpio_mock.MockLines{}
	chip.On("OpenLines", gpio.GPIOHANDLE_REQUEST_OUTPUT, dataRequestConsumer, uint32(3)).Return(lines, nil)
	lines.On("SetBulk", byte(1)).Return()
	lines.On("Flush").Return(errors.New("EBUSY"))
	lines.On("Close").Return(nil)

	_, err := NewDataRequest(chip, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EBUSY")
	lines.AssertCalled(t, "Close")
	chip.AssertNotCalled(t, "Close")
}

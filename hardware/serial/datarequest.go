package serial

import (
	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/gpio-cdev-go"
)

const dataRequestConsumer = "p1-data-request"

// DataRequest drives P1 "data request" line. Meter sends telegrams only while it is active.
type DataRequest struct {
	chip  gpio.Chiper
	lines gpio.Lineser
}

func OpenDataRequest(chipPath string, line uint32) (*DataRequest, error) {
	chip, err := gpio.Open(chipPath, "dsmr-bridge")
	if err != nil {
		return nil, errors.Annotatef(err, "gpio open chip=%s", chipPath)
	}
	dr, err := NewDataRequest(chip, line)
	if err != nil {
		chip.Close()
		return nil, err
	}
	return dr, nil
}

// NewDataRequest activates line on already open chip. Close releases both.
func NewDataRequest(chip gpio.Chiper, line uint32) (*DataRequest, error) {
	lines, err := chip.OpenLines(gpio.GPIOHANDLE_REQUEST_OUTPUT, dataRequestConsumer, line)
	if err != nil {
		return nil, errors.Annotatef(err, "gpio line=%d", line)
	}
	lines.SetBulk(1)
	if err = lines.Flush(); err != nil {
		lines.Close()
		return nil, errors.Annotatef(err, "gpio line=%d set", line)
	}
	return &DataRequest{chip: chip, lines: lines}, nil
}

func (self *DataRequest) Close() error {
	self.lines.SetBulk(0)
	return helpers.FoldErrors([]error{
		errors.Annotate(self.lines.Flush(), "gpio release"),
		self.lines.Close(),
		self.chip.Close(),
	})
}

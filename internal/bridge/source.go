package bridge

import (
	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/hardware/serial"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/internal/config"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/p1"
)

// Source is lazy non-restartable sequence of readouts.
// Close must unblock pending Next.
type Source interface {
	Next() (p1.Readout, error)
	Close() error
}

type portSource struct {
	port serial.Port
	r    *p1.Reader
	dr   *serial.DataRequest
}

// NewSource reads telegrams from port. Serial bytes are counted in stats when not nil.
func NewSource(port serial.Port, stats *Stats) Source {
	var counter helpers.Adder = nopAdder{}
	if stats != nil {
		counter = stats.SerialBytes
	}
	return &portSource{port: port, r: p1.NewReader(helpers.NewStatReader(port, counter))}
}

// OpenSerialSource opens configured device and data request line.
func OpenSerialSource(c *config.Config, stats *Stats, log *log2.Log) (Source, error) {
	var dr *serial.DataRequest
	if c.Serial.DataRequestChip != "" {
		var err error
		if dr, err = serial.OpenDataRequest(c.Serial.DataRequestChip, uint32(c.Serial.DataRequestLine)); err != nil {
			return nil, errors.Annotate(err, "data request")
		}
		log.Debugf("data request chip=%s line=%d active", c.Serial.DataRequestChip, c.Serial.DataRequestLine)
	}
	port, err := serial.Open(c.Serial.Port, c.SerialOptions())
	if err != nil {
		if dr != nil {
			_ = dr.Close()
		}
		return nil, err
	}
	s := NewSource(port, stats).(*portSource)
	s.dr = dr
	return s, nil
}

func (s *portSource) Next() (p1.Readout, error) { return s.r.Next() }

func (s *portSource) Close() error {
	errs := []error{s.port.Close()}
	if errs[0] == serial.ErrClosed {
		errs[0] = nil
	}
	if s.dr != nil {
		errs = append(errs, s.dr.Close())
		s.dr = nil
	}
	return helpers.FoldErrors(errs)
}

type nopAdder struct{}

func (nopAdder) Add(float64) {}

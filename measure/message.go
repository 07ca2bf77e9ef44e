package measure

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// Message is one outbound bus message, derived from exactly one Measurement.
type Message struct {
	Topic   string
	Payload []byte
	QOS     byte
	Retain  bool
}

func (m *Message) String() string {
	if m == nil {
		return "message=nil"
	}
	return fmt.Sprintf("Topic=%q QOS=%d Retain=%t Payload=%q", m.Topic, m.QOS, m.Retain, m.Payload)
}

// Delivery options shared by all messages. QOS and Retain are uniform,
// there is no per-field policy.
type Options struct {
	Prefix string
	QOS    byte
	Retain bool
	Format PayloadFormat
}

func Topic(prefix string, f Field) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return string(f)
	}
	return prefix + "/" + string(f)
}

// Messages returns one message per measurement, same order.
// Measurement with unencodable payload is skipped and returned in errs.
func (s Set) Messages(opt Options) (ms []Message, errs []error) {
	ms = make([]Message, 0, len(s))
	for _, m := range s {
		payload, err := opt.Format.Encode(m)
		if err != nil {
			errs = append(errs, errors.Annotatef(err, "field=%s", m.Field))
			continue
		}
		ms = append(ms, Message{
			Topic:   Topic(opt.Prefix, m.Field),
			Payload: payload,
			QOS:     opt.QOS,
			Retain:  opt.Retain,
		})
	}
	return ms, errs
}

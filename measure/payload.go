package measure

import (
	"encoding/json"
	"strconv"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes/wrappers"
	"github.com/juju/errors"
)

type PayloadFormat string

const (
	// decimal value without unit, or text as is
	PayloadPlain PayloadFormat = "plain"
	// {"value":1.193,"unit":"kW"} or {"text":"..."}
	PayloadJSON PayloadFormat = "json"
	// google.protobuf.DoubleValue or StringValue
	PayloadProto PayloadFormat = "proto"
)

func ParsePayloadFormat(s string) (PayloadFormat, error) {
	switch f := PayloadFormat(s); f {
	case "":
		return PayloadPlain, nil
	case PayloadPlain, PayloadJSON, PayloadProto:
		return f, nil
	}
	return "", errors.NotValidf("payload format=%s", s)
}

type jsonPayload struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Text  *string  `json:"text,omitempty"`
}

func (f PayloadFormat) Encode(m Measurement) ([]byte, error) {
	switch f {
	case PayloadPlain, "":
		if m.Numeric {
			return []byte(strconv.FormatFloat(m.Value, 'f', -1, 64)), nil
		}
		return []byte(m.Text), nil

	case PayloadJSON:
		var j jsonPayload
		if m.Numeric {
			j.Value = &m.Value
			j.Unit = m.Unit
		} else {
			j.Text = &m.Text
		}
		b, err := json.Marshal(&j)
		return b, errors.Annotate(err, "json")

	case PayloadProto:
		var pb proto.Message
		if m.Numeric {
			pb = &wrappers.DoubleValue{Value: m.Value}
		} else {
			pb = &wrappers.StringValue{Value: m.Text}
		}
		b, err := proto.Marshal(pb)
		return b, errors.Annotate(err, "proto")
	}
	return nil, errors.NotValidf("payload format=%s", f)
}

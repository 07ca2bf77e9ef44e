// Package measure converts decoded P1 objects into bus messages.
// Everything here is pure: no IO, no logging.
package measure

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/p1"
)

type Measurement struct {
	Field   Field
	Numeric bool
	Value   float64
	Unit    string
	Text    string
}

// Set is measurements of one telegram in telegram order.
type Set []Measurement

// FromObject returns errors.NotSupported for objects without measurement field.
func FromObject(o p1.Object) (Measurement, error) {
	f := FieldOf(o.Code)
	if f == "" {
		return Measurement{}, errors.NotSupportedf("measurement for code=%s", o.Code)
	}
	m := Measurement{Field: f}
	switch o.Kind {
	case p1.KindNumber, p1.KindMbus:
		m.Numeric = true
		m.Value = o.Value
		m.Unit = o.Unit
	case p1.KindText, p1.KindHexText:
		m.Text = o.Text
	case p1.KindTime:
		m.Text = o.Time.Format(time.RFC3339)
	default:
		return Measurement{}, errors.NotValidf("code=%s kind=%d", o.Code, o.Kind)
	}
	return m, nil
}

// Collect is best effort: objects failing to decode or convert are skipped
// and returned in second value, telegram is never rejected here.
func Collect(t *p1.Telegram) (Set, []error) {
	objs, errs := t.Objects()
	set := make(Set, 0, len(objs))
	for _, o := range objs {
		m, err := FromObject(o)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set = append(set, m)
	}
	return set, errs
}

package p1

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber       // value with optional unit: (000123.456*kWh) (0002)
	KindText         // plain string: (50)
	KindHexText      // hex encoded octet string: (4B3845...)
	KindTime         // TST: (101209113020W)
	KindMbus         // M-Bus capture time and value: (101209112500W)(12785.123*m3)
)

// Object is one decoded COSEM value.
type Object struct {
	Code  string // full OBIS reference "1-0:1.8.1"
	Kind  Kind
	Value float64
	Unit  string
	Text  string
	Time  time.Time
}

func (o Object) IsNumber() bool { return o.Kind == KindNumber || o.Kind == KindMbus }

// OBIS value group C.D.E -> kind
// Channel (A-B) is checked separately, gas and other M-Bus devices use 0-1..0-4.
var objectKinds = map[string]Kind{
	"1-3:0.2.8":   KindText,
	"0-0:1.0.0":   KindTime,
	"0-0:96.1.1":  KindHexText,
	"1-0:1.8.1":   KindNumber,
	"1-0:1.8.2":   KindNumber,
	"1-0:2.8.1":   KindNumber,
	"1-0:2.8.2":   KindNumber,
	"0-0:96.14.0": KindNumber,
	"1-0:1.7.0":   KindNumber,
	"1-0:2.7.0":   KindNumber,
	"0-0:96.7.21": KindNumber,
	"0-0:96.7.9":  KindNumber,
	"1-0:32.32.0": KindNumber,
	"1-0:52.32.0": KindNumber,
	"1-0:72.32.0": KindNumber,
	"1-0:32.36.0": KindNumber,
	"1-0:52.36.0": KindNumber,
	"1-0:72.36.0": KindNumber,
	"0-0:96.13.0": KindHexText,
	"1-0:32.7.0":  KindNumber,
	"1-0:52.7.0":  KindNumber,
	"1-0:72.7.0":  KindNumber,
	"1-0:31.7.0":  KindNumber,
	"1-0:51.7.0":  KindNumber,
	"1-0:71.7.0":  KindNumber,
	"1-0:21.7.0":  KindNumber,
	"1-0:41.7.0":  KindNumber,
	"1-0:61.7.0":  KindNumber,
	"1-0:22.7.0":  KindNumber,
	"1-0:42.7.0":  KindNumber,
	"1-0:62.7.0":  KindNumber,
}

func KindOf(code string) Kind {
	if k, ok := objectKinds[code]; ok {
		return k
	}
	// 0-n:24.2.1 M-Bus delivered value, 0-n:24.3.0 in DSMR 2.2
	if len(code) == len("0-1:24.2.1") && strings.HasPrefix(code, "0-") &&
		(strings.HasSuffix(code, ":24.2.1") || strings.HasSuffix(code, ":24.3.0")) {
		if ch := code[2]; ch >= '1' && ch <= '4' {
			return KindMbus
		}
	}
	return KindInvalid
}

// Objects decodes every line independently.
// Unknown codes produce ErrUnknownObject, malformed values *DecodeError.
// Both slices are in telegram order.
func (t *Telegram) Objects() ([]Object, []error) {
	objs := make([]Object, 0, len(t.Lines))
	var errs []error
	for _, line := range t.Lines {
		o, err := line.Object()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		objs = append(objs, o)
	}
	return objs, errs
}

func (self Line) Object() (Object, error) {
	if self.err != nil {
		return Object{}, self.err
	}
	o := Object{Code: self.Code, Kind: KindOf(self.Code)}
	var err error
	switch o.Kind {
	case KindNumber:
		if err = self.expectGroups(1); err == nil {
			o.Value, o.Unit, err = parseNumber(self.Groups[0])
		}

	case KindText:
		if err = self.expectGroups(1); err == nil {
			o.Text = self.Groups[0]
		}

	case KindHexText:
		if err = self.expectGroups(1); err == nil {
			o.Text, err = parseHexText(self.Groups[0])
		}

	case KindTime:
		if err = self.expectGroups(1); err == nil {
			o.Time, err = ParseTime(self.Groups[0])
		}

	case KindMbus:
		// DSMR 4+ (time)(value), DSMR 2.2 adds (unit) groups: (time)(00)(60)(1)(0-1:24.2.1)(m3)(value)
		if err = self.expectGroups(2); err == nil {
			last := self.Groups[len(self.Groups)-1]
			if o.Time, err = ParseTime(self.Groups[0]); err == nil {
				o.Value, o.Unit, err = parseNumber(last)
			}
			if o.Unit == "" && len(self.Groups) >= 7 {
				o.Unit = self.Groups[len(self.Groups)-2]
			}
		}

	default:
		return Object{}, errors.Annotatef(ErrUnknownObject, "code=%s line=%d", self.Code, self.Num)
	}
	if err != nil {
		if _, ok := err.(*DecodeError); !ok {
			err = newDecodeError(self.Num, "code=%s %s", self.Code, err.Error())
		}
		return Object{}, err
	}
	return o, nil
}

func (self Line) expectGroups(min int) error {
	if len(self.Groups) < min {
		return newDecodeError(self.Num, "code=%s expected at least %d values, found %d", self.Code, min, len(self.Groups))
	}
	return nil
}

// "000123.456*kWh" -> 123.456, "kWh"
func parseNumber(s string) (float64, string, error) {
	num, unit := s, ""
	if i := strings.IndexByte(s, '*'); i >= 0 {
		num, unit = s[:i], s[i+1:]
	}
	if num == "" {
		return 0, "", errors.Errorf("empty number")
	}
	if !isDecimal(num) {
		return 0, "", errors.Errorf("number='%s' invalid", num)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, "", errors.Errorf("number='%s' invalid", num)
	}
	return v, unit, nil
}

// Digits with optional single '.', rejects what ParseFloat also takes: NaN, Inf, exponent, hex.
func isDecimal(s string) bool {
	digits, dot := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			return false
		}
	}
	return digits != 0
}

func parseHexText(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.Errorf("hex text='%s' invalid", s)
	}
	return latin1ToUTF8(b)
}

var (
	zoneWinter = time.FixedZone("CET", 1*60*60)
	zoneSummer = time.FixedZone("CEST", 2*60*60)
)

// ParseTime decodes TST "YYMMDDhhmmssX", X is W (winter) or S (summer) time.
// DSMR 2.2 omits X, such timestamps are taken as winter time.
func ParseTime(s string) (time.Time, error) {
	if len(s) == 12 {
		s += "W"
	}
	if len(s) != 13 {
		return time.Time{}, errors.Errorf("timestamp='%s' expected YYMMDDhhmmssX", s)
	}
	var zone *time.Location
	switch s[12] {
	case 'W':
		zone = zoneWinter
	case 'S':
		zone = zoneSummer
	default:
		return time.Time{}, errors.Errorf("timestamp='%s' unknown DST flag", s)
	}
	t, err := time.ParseInLocation("060102150405", s[:12], zone)
	if err != nil {
		return time.Time{}, errors.Errorf("timestamp='%s' invalid", s)
	}
	return t, nil
}

package p1

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/temoto/dsmr-bridge/crc"
)

// Telegram is checksum-verified readout split into COSEM lines.
// Values are not decoded yet, see Objects().
type Telegram struct {
	// meter identification without leading '/', e.g. "ISk5\2MT382-1000"
	Header      string
	Lines       []Line
	Checksum    uint16
	HasChecksum bool
}

// Line is one COSEM object as written in telegram: "1-0:1.8.1(000123.456*kWh)".
// Groups are contents of parentheses.
type Line struct {
	Num    int
	Code   string
	Groups []string
	err    error
}

func (self Line) String() string {
	return fmt.Sprintf("%s(%s)", self.Code, strings.Join(self.Groups, ")("))
}

// Telegram returns *DecodeError when framing is broken or checksum mismatch.
// Individual malformed lines are kept and reported later by Objects().
func (r Readout) Telegram() (*Telegram, error) {
	raw := r.Raw
	if len(raw) == 0 || raw[0] != '/' {
		return nil, newDecodeError(1, "expected header '/'")
	}
	bang := bytes.LastIndexByte(raw, '!')
	if bang < 0 {
		return nil, newDecodeError(0, "expected footer '!'")
	}

	t := &Telegram{}
	footer := strings.TrimSpace(string(raw[bang+1:]))
	switch len(footer) {
	case 0: // DSMR 2.2 and 3 telegrams have no checksum
	case 4:
		expect, err := strconv.ParseUint(footer, 16, 16)
		if err != nil {
			return nil, newDecodeError(0, "checksum='%s' not hex", footer)
		}
		actual := crc.CRC16(raw[:bang+1])
		if actual != uint16(expect) {
			return nil, newDecodeError(0, "checksum mismatch telegram=%04X computed=%04X", expect, actual)
		}
		t.Checksum = actual
		t.HasChecksum = true
	default:
		return nil, newDecodeError(0, "invalid footer='%s'", footer)
	}

	lines := strings.Split(string(raw[1:bang]), "\n")
	t.Header = strings.TrimSpace(lines[0])
	if t.Header == "" {
		return nil, newDecodeError(1, "empty header")
	}
	t.Lines = make([]Line, 0, len(lines))
	for i, s := range lines[1:] {
		num := i + 2
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		// DSMR 2.2 puts M-Bus value on continuation line
		if s[0] == '(' && len(t.Lines) != 0 {
			groups, err := splitGroups(s)
			last := &t.Lines[len(t.Lines)-1]
			if err != nil && last.err == nil {
				last.err = newDecodeError(num, "%s", err.Error())
			}
			last.Groups = append(last.Groups, groups...)
			continue
		}
		t.Lines = append(t.Lines, parseLine(num, s))
	}
	return t, nil
}

func parseLine(num int, s string) Line {
	line := Line{Num: num}
	open := strings.IndexByte(s, '(')
	if open <= 0 {
		line.Code = s
		line.err = newDecodeError(num, "expected code(value) line='%s'", s)
		return line
	}
	line.Code = s[:open]
	groups, err := splitGroups(s[open:])
	if err != nil {
		line.err = newDecodeError(num, "code=%s %s", line.Code, err.Error())
	}
	line.Groups = groups
	return line
}

// "(a)(b)(c)" -> [a b c]
func splitGroups(s string) ([]string, error) {
	groups := make([]string, 0, 2)
	for len(s) != 0 {
		if s[0] != '(' {
			return groups, fmt.Errorf("unexpected '%c' outside parentheses", s[0])
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return groups, fmt.Errorf("unbalanced parentheses")
		}
		groups = append(groups, s[1:end])
		s = s[end+1:]
	}
	return groups, nil
}

package p1

import (
	"fmt"

	"github.com/juju/errors"
)

// DecodeError means telegram or object content is malformed.
// Line is 1-based telegram line number, 0 when not applicable.
type DecodeError struct {
	Line int
	Msg  string
}

func newDecodeError(line int, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Error() string {
	if e.Line == 0 {
		return "p1 decode: " + e.Msg
	}
	return fmt.Sprintf("p1 decode line=%d: %s", e.Line, e.Msg)
}

func IsDecodeError(err error) bool {
	_, ok := errors.Cause(err).(*DecodeError)
	return ok
}

// Object code not known to this decoder. Not fatal, such objects are skipped.
var ErrUnknownObject = errors.New("p1 unknown object")

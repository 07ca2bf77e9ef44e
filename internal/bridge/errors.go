package bridge

import (
	"fmt"

	"github.com/juju/errors"
)

// Kind classifies why a pipeline run ended.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindConnection
	KindRead
	KindDecode
	KindPublish
	KindEndOfStream
)

var kindNames = [...]string{
	KindUnknown:     "unknown",
	KindConnection:  "connection",
	KindRead:        "read",
	KindDecode:      "decode",
	KindPublish:     "publish",
	KindEndOfStream: "end_of_stream",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error carries Kind through juju annotations.
type Error struct {
	Kind Kind
	Err  error
}

func NewError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if e, ok := errors.Cause(err).(*Error); ok && e.Kind == kind {
		return err
	}
	return errors.Trace(&Error{Kind: kind, Err: err})
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + " error"
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

// No Cause method: errors.Cause must stop at *Error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf finds classification in err or any annotation of it.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	if wrapper, ok := err.(interface{ Underlying() error }); ok {
		if k := KindOf(wrapper.Underlying()); k != KindUnknown {
			return k
		}
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind
	}
	return KindUnknown
}

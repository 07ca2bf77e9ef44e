package bridge

import (
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("serial EIO")
	cases := []struct {
		name   string
		err    error
		expect Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", base, KindUnknown},
		{"direct", &Error{Kind: KindRead, Err: base}, KindRead},
		{"new", NewError(KindPublish, base), KindPublish},
		{"annotated", errors.Annotate(NewError(KindDecode, base), "run"), KindDecode},
		{"annotated-twice", errors.Annotatef(errors.Trace(NewError(KindEndOfStream, io.EOF)), "x=%d", 1), KindEndOfStream},
		{"reclassified", NewError(KindConnection, NewError(KindRead, base)), KindConnection},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expect, KindOf(c.err))
		})
	}
}

func TestNewError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewError(KindRead, nil))
	e := NewError(KindPublish, errors.New("broker gone"))
	assert.Equal(t, "publish: broker gone", e.Error())
	assert.Equal(t, e, NewError(KindPublish, e))
	assert.Equal(t, "end_of_stream", KindEndOfStream.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestClassifyRead(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindEndOfStream, KindOf(classifyRead(errors.Trace(io.EOF))))
	assert.Equal(t, KindRead, KindOf(classifyRead(errors.Annotate(io.ErrUnexpectedEOF, "read telegram"))))
	assert.Equal(t, KindRead, KindOf(classifyRead(errors.Timeoutf("serial read"))))
}

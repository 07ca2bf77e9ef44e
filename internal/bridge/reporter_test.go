package bridge

import (
	"bytes"
	"io"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/dsmr-bridge/log2"
)

func TestPersistReporter(t *testing.T) {
	t.Parallel()

	log := log2.NewTest(t, log2.LDebug)
	root := t.TempDir()
	p, err := NewPersistReporter(root, log)
	require.NoError(t, err)
	assert.Equal(t, RunState{}, p.State())

	p.Report(NewError(KindRead, errors.New("serial EIO")))
	p.Report(errors.Annotate(NewError(KindEndOfStream, io.EOF), "run"))
	s1 := p.State()
	assert.Equal(t, uint64(2), s1.Failures)
	assert.Equal(t, "end_of_stream", s1.LastKind)
	assert.Equal(t, "run: end_of_stream: EOF", s1.LastError)
	assert.False(t, s1.LastErrorTime.IsZero())

	// restart
	p2, err := NewPersistReporter(root, log)
	require.NoError(t, err)
	s2 := p2.State()
	assert.Equal(t, s1.Failures, s2.Failures)
	assert.Equal(t, s1.LastKind, s2.LastKind)
	assert.Equal(t, s1.LastError, s2.LastError)
	assert.True(t, s1.LastErrorTime.Equal(s2.LastErrorTime))
	p2.Report(NewError(KindDecode, errors.New("checksum")))
	assert.Equal(t, uint64(3), p2.State().Failures)
}

func TestPersistReporterEmptyRoot(t *testing.T) {
	t.Parallel()

	_, err := NewPersistReporter("", nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotValid(err))
}

func TestMultiReporter(t *testing.T) {
	t.Parallel()

	buf := bytes.NewBuffer(nil)
	log := log2.NewWriter(buf, log2.LInfo)
	log.SetFlags(0)
	var got []Kind
	r := MultiReporter(
		NewLogReporter(log),
		nil,
		ReporterFunc(func(err error) { got = append(got, KindOf(err)) }),
	)
	r.Report(NewError(KindPublish, errors.New("broker rejected")))
	assert.Equal(t, []Kind{KindPublish}, got)
	assert.Equal(t, "error: pipeline kind=publish err=publish: broker rejected\n", buf.String())
}

package serial

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPort(t *testing.T) {
	t.Parallel()

	p := NewMockPort()
	p.Feed([]byte("hello"))
	p.Feed([]byte("!"))
	p.EOF()

	buf := make([]byte, 3)
	n, err := p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hel", string(buf[:n]))
	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "lo", string(buf[:n]))
	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "!", string(buf[:n]))
	_, err = p.Read(buf)
	assert.Equal(t, io.EOF, err)
}

func TestMockPortCloseUnblocks(t *testing.T) {
	t.Parallel()

	p := NewMockPort()
	errch := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 1))
		errch <- err
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, p.Close())
	select {
	case err := <-errch:
		assert.Equal(t, ErrClosed, err)
	case <-time.After(time.Second):
		t.Fatal("Read not unblocked by Close")
	}
	assert.True(t, p.IsClosed())
	assert.Equal(t, ErrClosed, p.Close())
}

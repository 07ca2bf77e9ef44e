package serial

import (
	"io"
	"sync"
)

type mockChunk struct {
	b   []byte
	err error
}

// MockPort is in-memory Port for tests. Writes never block.
type MockPort struct {
	chunks    chan mockChunk
	closed    chan struct{}
	closeOnce sync.Once
	rest      []byte
}

func NewMockPort() *MockPort {
	return &MockPort{
		chunks: make(chan mockChunk, 1024),
		closed: make(chan struct{}),
	}
}

// Feed queues bytes for Read.
func (self *MockPort) Feed(b []byte) {
	self.chunks <- mockChunk{b: append([]byte(nil), b...)}
}

// Fail makes next Read after queued data return err.
func (self *MockPort) Fail(err error) { self.chunks <- mockChunk{err: err} }

// EOF ends the stream, Read returns io.EOF after queued data.
func (self *MockPort) EOF() { self.Fail(io.EOF) }

func (self *MockPort) Read(p []byte) (int, error) {
	if len(self.rest) == 0 {
		select {
		case c := <-self.chunks:
			if c.err != nil {
				return 0, c.err
			}
			self.rest = c.b
		case <-self.closed:
			return 0, ErrClosed
		}
	}
	n := copy(p, self.rest)
	self.rest = self.rest[n:]
	return n, nil
}

func (self *MockPort) Close() error {
	err := ErrClosed
	self.closeOnce.Do(func() {
		close(self.closed)
		err = nil
	})
	return err
}

func (self *MockPort) IsClosed() bool {
	select {
	case <-self.closed:
		return true
	default:
		return false
	}
}

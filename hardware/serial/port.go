// Package serial is P1 port access: raw serial device and optional data request GPIO line.
package serial

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	DefaultBaud    = 115200
	DefaultTimeout = 1 * time.Second
)

var ErrClosed = errors.New("serial port closed")

// Port is a byte source. Close must unblock pending Read.
type Port interface {
	io.ReadCloser
}

type Options struct {
	Baud    int
	Timeout time.Duration
}

type filePort struct {
	f        *os.File
	r        fdReader
	t2       termios2
	done     chan struct{}
	doneOnce sync.Once
}

// Open configures termios and returns port, every Read waits at most opt.Timeout.
func Open(path string, opt Options) (Port, error) {
	if opt.Baud == 0 {
		opt.Baud = DefaultBaud
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	f, err := os.OpenFile(path, unix.O_RDONLY|unix.O_NOCTTY, 0600)
	if err != nil {
		return nil, errors.Annotatef(err, "serial open path=%s", path)
	}
	self := &filePort{f: f, done: make(chan struct{})}
	self.r = fdReader{fd: f.Fd(), timeout: opt.Timeout, done: self.done}
	if err = io_reset_termios(f.Fd(), &self.t2, opt.Baud); err != nil {
		f.Close()
		return nil, errors.Annotatef(err, "serial termios path=%s baud=%d", path, opt.Baud)
	}
	return self, nil
}

func (self *filePort) Read(p []byte) (int, error) {
	n, err := self.r.Read(p)
	if n == 0 && err == nil {
		// tty hangup
		err = io.EOF
	}
	return n, err
}

func (self *filePort) Close() error {
	err := ErrClosed
	self.doneOnce.Do(func() {
		close(self.done)
		err = self.f.Close()
	})
	return err
}

package serial

import (
	"os"
	"time"
	"unsafe"

	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

const (
	cBOTHER   = 0x1000
	cFIONREAD = 0x541b
	cNCCS     = 19
	cTCSETSF2 = 0x402c542d
)

type ErrTimeoutT string

func (e ErrTimeoutT) Error() string { return string(e) }
func (ErrTimeoutT) Timeout() bool   { return true }

type Timeouter interface {
	Timeout() bool
}

func IsTimeout(err error) bool {
	t, ok := errors.Cause(err).(Timeouter)
	return ok && t.Timeout()
}

type cc_t byte
type speed_t uint32
type tcflag_t uint32
type termios2 struct {
	c_iflag  tcflag_t    // input mode flags
	c_oflag  tcflag_t    // output mode flags
	c_cflag  tcflag_t    // control mode flags
	c_lflag  tcflag_t    // local mode flags
	c_line   cc_t        // line discipline
	c_cc     [cNCCS]cc_t // control characters
	c_ispeed speed_t     // input speed
	c_ospeed speed_t     // output speed
}

// fdReader waits for at least one byte with timeout, then reads what is available.
// Closing done aborts the wait.
type fdReader struct {
	fd      uintptr
	timeout time.Duration
	done    <-chan struct{}
}

func (self fdReader) Read(p []byte) (int, error) {
	if err := io_wait_read(self.fd, 1, self.timeout, self.done); err != nil {
		return 0, err
	}
	n, err := unix.Read(int(self.fd), p)
	if n < 0 {
		n = 0
	}
	return n, err
}

func ioctl(fd uintptr, op, arg uintptr) error {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, op, arg)
	if errno != 0 {
		return os.NewSyscallError("SYS_IOCTL", errno)
	} else if r != 0 {
		return errors.New("unknown error from SYS_IOCTL")
	}
	return nil
}

func io_wait_read(fd uintptr, min int, wait time.Duration, done <-chan struct{}) error {
	var out int32
	tfinal := time.Now().Add(wait)
	step := wait / 16
	if step < time.Millisecond {
		step = time.Millisecond
	}
	for {
		select {
		case <-done:
			return ErrClosed
		default:
		}
		if err := ioctl(fd, uintptr(cFIONREAD), uintptr(unsafe.Pointer(&out))); err != nil {
			return err
		}
		if int(out) >= min {
			return nil
		}
		if time.Now().After(tfinal) {
			return ErrTimeoutT("serial read timeout")
		}
		select {
		case <-done:
			return ErrClosed
		case <-time.After(step):
		}
	}
}

// P1 line settings: DSMR 2.2 and 3 use 9600 7E1, DSMR 4+ use 115200 8N1.
func io_reset_termios(fd uintptr, t2 *termios2, baud int) error {
	switch baud {
	case 9600:
		*t2 = termios2{
			c_iflag: unix.IGNBRK | unix.IGNPAR | unix.ISTRIP,
			c_cflag: cBOTHER | unix.CLOCAL | unix.CREAD | unix.CS7 | unix.PARENB,
		}
	case 115200:
		*t2 = termios2{
			c_iflag: unix.IGNBRK | unix.IGNPAR,
			c_cflag: cBOTHER | unix.CLOCAL | unix.CREAD | unix.CS8,
		}
	default:
		return errors.NotSupportedf("baud=%d, valid: 9600 115200", baud)
	}
	t2.c_ispeed = speed_t(baud)
	t2.c_ospeed = speed_t(baud)
	t2.c_cc[unix.VMIN] = 1
	return io_tcsetsf2(fd, t2)
}

// flush input and output
func io_tcsetsf2(fd uintptr, t2 *termios2) error {
	return ioctl(fd, uintptr(cTCSETSF2), uintptr(unsafe.Pointer(t2)))
}

package p1

import (
	"bufio"
	"bytes"
	"io"

	"github.com/juju/errors"
)

// DSMR 5 telegrams are below 2KB, leave room for long text messages and M-Bus channels.
const DefaultMaxSize = 16 << 10

// Raw bytes of exactly one telegram, from '/' to end of '!' line inclusive.
type Readout struct {
	Raw []byte
}

// Reader is a lazy sequence of Readouts over serial byte stream.
// It does not retry: any error from underlying reader ends the sequence.
type Reader struct {
	r       *bufio.Reader
	MaxSize int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{
		r:       bufio.NewReaderSize(r, 1024),
		MaxSize: DefaultMaxSize,
	}
}

// Next returns next framed telegram.
// Returns, in this order:
// - io.EOF if stream ended cleanly between telegrams
// - *DecodeError if telegram exceeds MaxSize
// - underlying read error otherwise, io.ErrUnexpectedEOF for stream end inside telegram
func (self *Reader) Next() (Readout, error) {
	// skip garbage until start of telegram, normal after open in the middle of transmission
	for {
		b, err := self.r.ReadByte()
		if err != nil {
			return Readout{}, errors.Trace(err)
		}
		if b == '/' {
			break
		}
	}

	buf := bytes.NewBuffer(make([]byte, 0, 1024))
	buf.WriteByte('/')
	lineStart := 0
	for {
		chunk, err := self.r.ReadSlice('\n')
		buf.Write(chunk)
		if buf.Len() > self.MaxSize {
			return Readout{}, newDecodeError(0, "telegram size exceeds %d", self.MaxSize)
		}
		if err == bufio.ErrBufferFull {
			// long line, keep reading
			continue
		}
		if err != nil {
			if errors.Cause(err) == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Readout{}, errors.Annotatef(err, "read telegram after %d bytes", buf.Len())
		}
		if buf.Bytes()[lineStart] == '!' {
			return Readout{Raw: buf.Bytes()}, nil
		}
		lineStart = buf.Len()
	}
}

package helpers

import (
	"io"
)

// Adder is satisfied by prometheus.Counter and expvar-like counters.
type Adder interface {
	Add(float64)
}

type StatReader struct {
	R io.Reader
	V Adder
}

var _ io.Reader = &StatReader{}

func NewStatReader(r io.Reader, v Adder) io.Reader {
	return &StatReader{R: r, V: v}
}

func (sr *StatReader) Read(p []byte) (n int, err error) {
	n, err = sr.R.Read(p)
	if n > 0 {
		sr.V.Add(float64(n))
	}
	return
}

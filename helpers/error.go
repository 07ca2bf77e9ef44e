package helpers

import (
	"strings"

	"github.com/juju/errors"
)

// FoldErrors returns nil, the only non-nil error as is, or all messages line by line.
func FoldErrors(errs []error) error {
	var first error
	var b strings.Builder
	n := 0
	for _, e := range errs {
		if e == nil {
			continue
		}
		if n == 0 {
			first = e
		} else {
			b.WriteByte('\n')
		}
		b.WriteString(e.Error())
		n++
	}
	if n <= 1 {
		return first
	}
	return errors.New(b.String())
}

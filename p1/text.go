package p1

import (
	"github.com/juju/errors"
	"github.com/paulrosania/go-charset/charset"
	_ "github.com/paulrosania/go-charset/data"
)

// Meter text messages are ISO-8859-1 octet strings.
const textCharset = "iso-8859-1"

func latin1ToUTF8(b []byte) (string, error) {
	tr, err := charset.TranslatorFrom(textCharset)
	if err != nil {
		// charset data not installed, ISO-8859-1 maps 1:1 onto first 256 code points
		rs := make([]rune, len(b))
		for i, c := range b {
			rs[i] = rune(c)
		}
		return string(rs), nil
	}
	_, out, err := tr.Translate(b, true)
	if err != nil {
		return "", errors.Annotatef(err, "charset=%s translate", textCharset)
	}
	return string(out), nil
}

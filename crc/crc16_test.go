package crc

import (
	"testing"
)

func makeCheckN(fun func(uint16, []byte) uint16, tag string) func(t *testing.T, v1 uint16, vs []byte, expect uint16) {
	return func(t *testing.T, v1 uint16, vs []byte, expect uint16) {
		if result := fun(v1, vs); result != expect {
			t.Errorf("%s(%04x, %q) = %04x expected=%04x", tag, v1, vs, result, expect)
		}
	}
}

func referenceN(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = CRC16_reference(crc, b)
	}
	return crc
}

func TestReference(t *testing.T) {
	check := makeCheckN(referenceN, "CRC16_reference")
	check(t, 0, nil, 0x0000)
	check(t, 0, []byte("123456789"), 0xbb3d)
}

func TestLookup(t *testing.T) {
	check := makeCheckN(CRC16_n, "CRC16_n")
	check(t, 0, nil, 0x0000)
	check(t, 0, []byte("123456789"), 0xbb3d)

	for i := 0; i < 256; i++ {
		if a, b := CRC16_next(0x1234, byte(i)), CRC16_reference(0x1234, byte(i)); a != b {
			t.Errorf("CRC16_next(1234, %02x)=%04x reference=%04x", i, a, b)
		}
	}
}

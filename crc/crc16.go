// Package crc implements CRC16/ARC used by DSMR P1 telegrams:
// polynomial x^16+x^15+x^2+1 (0x8005), reflected (0xA001), init 0, no final xor.
package crc

const CRC16_POLY_A001 uint16 = 0xa001

var table16 = makeTable16()

func makeTable16() *[256]uint16 {
	t := new([256]uint16)
	for i := range t {
		t[i] = CRC16_reference(0, byte(i))
	}
	return t
}

// Bitwise, one byte. Used to build lookup table and as test reference.
func CRC16_reference(crc uint16, data byte) uint16 {
	crc ^= uint16(data)
	for i := 0; i < 8; i++ {
		if crc&1 != 0 {
			crc = (crc >> 1) ^ CRC16_POLY_A001
		} else {
			crc >>= 1
		}
	}
	return crc
}

func CRC16_next(crc uint16, data byte) uint16 {
	return (crc >> 8) ^ table16[byte(crc)^data]
}

func CRC16_n(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = (crc >> 8) ^ table16[byte(crc)^b]
	}
	return crc
}

func CRC16(data []byte) uint16 { return CRC16_n(0, data) }

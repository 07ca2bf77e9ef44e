// Package p1 decodes DSMR P1 telegrams read from a smart meter serial port.
//
// Reader frames the byte stream into Readouts, one per telegram, from '/' up to
// and including the "!CRC" line. Readout.Telegram verifies checksum and splits
// COSEM lines. Telegram.Objects decodes each line independently so one broken
// value does not reject the whole telegram.
package p1

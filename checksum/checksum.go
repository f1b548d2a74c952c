// Package checksum provides the integrity checks used by OOK sensor
// protocols: a truncated additive byte sum and even parity.
package checksum

import "math/bits"

// Sum8 returns the sum of data truncated to one byte.
func Sum8(data []byte) (sum byte) {
	for _, v := range data {
		sum += v
	}
	return
}

// Valid reports whether the final byte of msg is the Sum8 of the bytes
// preceding it.
func Valid(msg []byte) bool {
	if len(msg) < 2 {
		return false
	}
	return Sum8(msg[:len(msg)-1]) == msg[len(msg)-1]
}

// Parity returns the population count of v mod 2.
func Parity(v uint) uint8 {
	return uint8(bits.OnesCount(v) & 1)
}

// ParityByte checks a byte whose most significant bit is even parity over
// the remaining seven.
func ParityByte(b byte) bool {
	return Parity(uint(b&0x7F)) == b>>7
}

// SetParityByte returns b with its most significant bit set to the parity
// of the remaining seven.
func SetParityByte(b byte) byte {
	b &= 0x7F
	return b | Parity(uint(b))<<7
}

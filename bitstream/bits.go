// Package bitstream turns pulse sequences into bit sequences. It provides
// a pulse-width decoder, a Manchester decoder driven by an explicit
// transition table and a small bit container shared by both.
package bitstream

import (
	"fmt"
	"strings"
)

// Bits is a packed bit sequence, most significant bit first. When Len is
// not a multiple of 8 the live bits of the final byte occupy its low-order
// positions.
type Bits struct {
	Bytes []byte
	Len   int
}

// NewBits returns an empty sequence with room for n bits.
func NewBits(n int) Bits {
	return Bits{Bytes: make([]byte, 0, (n+7)>>3)}
}

// Append adds one bit, anything non-zero counts as 1.
func (b *Bits) Append(bit byte) {
	if b.Len&7 == 0 {
		b.Bytes = append(b.Bytes, 0)
	}

	last := len(b.Bytes) - 1
	b.Bytes[last] <<= 1
	if bit != 0 {
		b.Bytes[last] |= 1
	}
	b.Len++
}

// Bit returns bit i, counting from the first bit appended.
func (b Bits) Bit(i int) byte {
	if i < 0 || i >= b.Len {
		panic(fmt.Sprintf("bitstream: bit %d out of range [0,%d)", i, b.Len))
	}

	width := 8
	if byteIdx := i >> 3; byteIdx == len(b.Bytes)-1 && b.Len&7 != 0 {
		width = b.Len & 7
	}

	return (b.Bytes[i>>3] >> uint(width-1-i&7)) & 1
}

// Values unpacks the sequence one bit per byte.
func (b Bits) Values() []byte {
	v := make([]byte, b.Len)
	for i := range v {
		v[i] = b.Bit(i)
	}
	return v
}

// String renders the bits as 0s and 1s in groups of four.
func (b Bits) String() string {
	var sb strings.Builder
	for i := 0; i < b.Len; i++ {
		if i > 0 && i&3 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('0' + b.Bit(i))
	}
	return sb.String()
}

// Hex renders the packed bytes.
func (b Bits) Hex() string {
	return fmt.Sprintf("%02X", b.Bytes)
}

// Reader walks a bit sequence.
type Reader struct {
	bits  Bits
	thumb int
}

func (b Bits) Reader() *Reader {
	return &Reader{bits: b}
}

func (r *Reader) EOF() bool {
	return r.thumb >= r.bits.Len
}

// Bit returns the next bit.
func (r *Reader) Bit() (byte, bool) {
	if r.EOF() {
		return 0, false
	}
	bit := r.bits.Bit(r.thumb)
	r.thumb++
	return bit, true
}

// NibbleLSB reads four bits, the first read being the least significant.
// Nothing is consumed when fewer than four bits remain.
func (r *Reader) NibbleLSB() (byte, bool) {
	if r.thumb+4 > r.bits.Len {
		return 0, false
	}

	var n byte
	for i := 0; i < 4; i++ {
		n |= r.bits.Bit(r.thumb+i) << uint(i)
	}
	r.thumb += 4
	return n, true
}

// Remaining consumes and renders the rest of the sequence.
func (r *Reader) Remaining() string {
	var sb strings.Builder
	for i := 0; !r.EOF(); i++ {
		if i > 0 && i&3 == 0 {
			sb.WriteByte(' ')
		}
		bit, _ := r.Bit()
		sb.WriteByte('0' + bit)
	}
	return sb.String()
}

// NibblesLSB renders the sequence as LSB-first hex nibbles, with any
// leftover bits appended in binary.
func (b Bits) NibblesLSB() string {
	var sb strings.Builder
	r := b.Reader()
	for !r.EOF() {
		n, ok := r.NibbleLSB()
		if !ok {
			sb.WriteString("+b:")
			sb.WriteString(r.Remaining())
			break
		}
		fmt.Fprintf(&sb, "%x", n)
	}
	return sb.String()
}

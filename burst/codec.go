// RTLOOK - An rtl-sdr receiver for on-off keyed sensors in the 433MHz ISM band.
// Copyright (C) 2015 Douglas Hall
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package burst

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Wire layout, all fields little-endian:
//
//	tag      u32  0x36360001
//	position u64  ns since capture start
//	count    u32
//	count * { high u32 ns, low u32 ns, freq i32 Hz }
const (
	Tag        = 0x36360001
	HeaderLen  = 4 + 8 + 4
	PulseLen   = 4 + 4 + 4
	maxPayload = math.MaxInt32
)

var order = binary.LittleEndian

var (
	// ErrCorrupt marks a datagram that is not a well formed burst. Receivers
	// should log it and keep going.
	ErrCorrupt = errors.New("burst: corrupt packet")

	ErrTooLarge = errors.New("burst: encoded size overflows")
)

// EncodedLen returns the size of a burst of n pulses on the wire.
func EncodedLen(n int) (int, error) {
	if n < 0 || n > (maxPayload-HeaderLen)/PulseLen {
		return 0, errors.Wrapf(ErrTooLarge, "%d pulses", n)
	}
	return HeaderLen + n*PulseLen, nil
}

// AppendEncode appends the wire form of b to dst.
func AppendEncode(dst []byte, b *Burst) ([]byte, error) {
	n, err := EncodedLen(len(b.Pulses))
	if err != nil {
		return dst, err
	}

	if cap(dst)-len(dst) < n {
		grown := make([]byte, len(dst), len(dst)+n)
		copy(grown, dst)
		dst = grown
	}

	dst = order.AppendUint32(dst, Tag)
	dst = order.AppendUint64(dst, b.Position)
	dst = order.AppendUint32(dst, uint32(len(b.Pulses)))
	for _, p := range b.Pulses {
		dst = order.AppendUint32(dst, p.High)
		dst = order.AppendUint32(dst, p.Low)
		dst = order.AppendUint32(dst, uint32(p.Freq))
	}

	return dst, nil
}

// Encode returns the wire form of b.
func Encode(b *Burst) ([]byte, error) {
	return AppendEncode(nil, b)
}

// Decode parses one datagram. Every malformed input yields an error
// satisfying errors.Is(err, ErrCorrupt). The returned burst's capacity
// equals its pulse count.
func Decode(data []byte) (*Burst, error) {
	if len(data) < HeaderLen {
		return nil, errors.Wrapf(ErrCorrupt, "truncated header: %d bytes", len(data))
	}

	if tag := order.Uint32(data); tag != Tag {
		return nil, errors.Wrapf(ErrCorrupt, "bad tag: 0x%08X", tag)
	}

	position := order.Uint64(data[4:])
	count := uint64(order.Uint32(data[12:]))

	body := data[HeaderLen:]
	need := count * PulseLen
	switch {
	case uint64(len(body)) < need:
		return nil, errors.Wrapf(ErrCorrupt, "truncated pulses: need %d bytes, have %d", need, len(body))
	case uint64(len(body)) > need:
		return nil, errors.Wrapf(ErrCorrupt, "trailing bytes: %d", uint64(len(body))-need)
	}

	b := NewBurst(position, int(count))
	for idx := 0; idx < len(body); idx += PulseLen {
		b.Pulses = append(b.Pulses, Pulse{
			High: order.Uint32(body[idx:]),
			Low:  order.Uint32(body[idx+4:]),
			Freq: int32(order.Uint32(body[idx+8:])),
		})
	}

	return b, nil
}

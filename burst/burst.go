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

// Package burst holds the pulse and burst types shared by the capture and
// decode sides, the assembler which groups pulses into bursts, the wire
// codec used to ship them over multicast and a tar based archive format.
package burst

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// DefaultCapacity is the number of pulses a burst may hold unless
// configured otherwise.
const DefaultCapacity = 512 * 8

// ErrCapacity is returned when appending to a full burst.
var ErrCapacity = errors.New("burst: capacity exceeded")

// Pulse is one high period followed by the low period preceding the next
// rise, or the end of the transmission.
type Pulse struct {
	High uint32 // ns
	Low  uint32 // ns
	Freq int32  // Hz, offset from center frequency
}

func (p Pulse) String() string {
	return fmt.Sprintf("{High:%d Low:%d Freq:%d}", p.High, p.Low, p.Freq)
}

// Burst is a run of pulses bounded by silence. Position is the time of the
// first rise in nanoseconds since the capture started.
type Burst struct {
	Position uint64
	Pulses   []Pulse
}

// NewBurst returns an empty burst able to hold capacity pulses.
func NewBurst(position uint64, capacity int) *Burst {
	return &Burst{
		Position: position,
		Pulses:   make([]Pulse, 0, capacity),
	}
}

// Append adds p to the burst. A full burst is left untouched and
// ErrCapacity is returned.
func (b *Burst) Append(p Pulse) error {
	if len(b.Pulses) == cap(b.Pulses) {
		return ErrCapacity
	}
	b.Pulses = append(b.Pulses, p)
	return nil
}

func (b *Burst) Len() int { return len(b.Pulses) }

func (b *Burst) Cap() int { return cap(b.Pulses) }

// Reset empties the burst keeping its storage.
func (b *Burst) Reset(position uint64) {
	b.Position = position
	b.Pulses = b.Pulses[:0]
}

// Offset returns the burst position as a duration.
func (b *Burst) Offset() time.Duration {
	return time.Duration(b.Position)
}

func (b *Burst) String() string {
	return fmt.Sprintf("{Position:%s Pulses:%d}", b.Offset(), len(b.Pulses))
}

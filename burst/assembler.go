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
	log "github.com/sirupsen/logrus"
)

// DefaultMinPulses is the shortest burst handed to the sink unless
// configured otherwise.
const DefaultMinPulses = 16

// Assembler groups pulses from the extractor into bursts. A single burst
// is reused for every transmission, so the sink must not retain it past
// the call.
type Assembler struct {
	MinPulses int

	burst    *Burst
	active   bool
	overflow bool
	sink     func(*Burst)

	Sent       int
	Discarded  int
	Overflowed int
}

func NewAssembler(capacity, minPulses int, sink func(*Burst)) *Assembler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Assembler{
		MinPulses: minPulses,
		burst:     NewBurst(0, capacity),
		sink:      sink,
	}
}

// Pulse accepts the next pulse. rise is the position in nanoseconds of the
// pulse's rising edge and is used as the burst position when p is the
// first pulse after silence. A terminal pulse closes the burst.
func (a *Assembler) Pulse(p Pulse, rise uint64, terminal bool) {
	if !a.active {
		a.burst.Reset(rise)
		a.active = true
		a.overflow = false
	}

	if err := a.burst.Append(p); err != nil && !a.overflow {
		// Keep what fits, drop the rest of this transmission.
		a.overflow = true
		a.Overflowed++
		log.WithFields(log.Fields{
			"position": a.burst.Offset(),
			"capacity": a.burst.Cap(),
		}).Warn("burst capacity exceeded, dropping remainder")
	}

	if !terminal {
		return
	}
	a.active = false

	if a.burst.Len() < a.MinPulses {
		a.Discarded++
		if log.IsLevelEnabled(log.DebugLevel) {
			log.WithFields(log.Fields{
				"position": a.burst.Offset(),
				"pulses":   a.burst.Len(),
			}).Debug("burst too short")
		}
		return
	}

	a.Sent++
	a.sink(a.burst)
}

// Active reports whether a burst is being accumulated.
func (a *Assembler) Active() bool {
	return a.active
}

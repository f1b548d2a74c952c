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

// Package pulse reduces a stream of uint8 IQ samples to on-off keyed
// pulses using envelope detection with hysteresis, estimating the carrier
// offset of each pulse from the rotation of the IQ vector.
package pulse

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/burst"
)

// Config specifies the detector thresholds.
type Config struct {
	SampleRate    uint32
	Alpha         float64       // smoothing factor of the power filter
	RiseThreshold float64       // filtered power above which a high begins
	DropThreshold float64       // filtered power below which a high ends
	MaxLow        time.Duration // silence which terminates a burst
	PowerInterval uint64        // samples per average power log line, 0 disables
}

func NewConfig() Config {
	return Config{
		SampleRate:    250000,
		Alpha:         0.2,
		RiseThreshold: 0.25,
		DropThreshold: 0.1,
		MaxLow:        8 * time.Millisecond,
		PowerInterval: 100000,
	}
}

func (cfg Config) Log() {
	log.WithFields(log.Fields{
		"sample_rate":    cfg.SampleRate,
		"alpha":          cfg.Alpha,
		"rise_threshold": cfg.RiseThreshold,
		"drop_threshold": cfg.DropThreshold,
		"max_low":        cfg.MaxLow,
	}).Info("pulse detector")
}

// Sink receives pulses in chronological order. rise is the position of
// the pulse's rising edge in nanoseconds since the first sample. A
// terminal pulse is followed by silence longer than MaxLow, or by the end
// of the stream.
type Sink interface {
	Pulse(p burst.Pulse, rise uint64, terminal bool)
}

type state byte

const (
	idle state = iota
	high
	low
)

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case high:
		return "high"
	}
	return "low"
}

// Extractor carries detector state across successive sample blocks. All
// sample indices are absolute, counted from the first sample processed.
type Extractor struct {
	cfg  Config
	sink Sink
	lut  PowerLUT

	maxLow uint64

	state    state
	filtered float64
	sample   uint64
	rise     uint64
	drop     uint64

	quadrant       uint8
	cw, ccw, crazy int

	carry    byte
	hasCarry bool

	powerSum   float64
	powerCount uint64
}

func NewExtractor(cfg Config, sink Sink) *Extractor {
	e := &Extractor{
		cfg:  cfg,
		sink: sink,
		lut:  NewPowerLUT(),
	}

	e.maxLow = uint64(cfg.MaxLow) * uint64(cfg.SampleRate) / uint64(time.Second)

	return e
}

// Samples returns the number of IQ pairs consumed so far.
func (e *Extractor) Samples() uint64 {
	return e.sample
}

// Process consumes a block of interleaved IQ bytes. A trailing odd byte
// is held for the next call.
func (e *Extractor) Process(block []byte) {
	if e.hasCarry && len(block) > 0 {
		e.step(e.carry, block[0])
		block = block[1:]
		e.hasCarry = false
	}

	n := len(block) &^ 1
	for idx := 0; idx < n; idx += 2 {
		e.step(block[idx], block[idx+1])
	}

	if n < len(block) {
		e.carry = block[n]
		e.hasCarry = true
	}
}

// Flush ends the stream, closing any pulse in progress as terminal.
func (e *Extractor) Flush() {
	switch e.state {
	case high:
		e.drop = e.sample
		e.emit(e.sample, true)
	case low:
		e.emit(e.sample, true)
	}
	e.state = idle
	e.hasCarry = false
}

func (e *Extractor) step(i, q byte) {
	power := e.lut[i] + e.lut[q]
	e.diagnostics(power)

	quadrant := Quadrant(i, q)
	if e.state == high {
		switch motion[e.quadrant<<2|quadrant] {
		case cw:
			e.cw++
		case ccw:
			e.ccw++
		case crazy:
			e.crazy++
		}
	}
	e.quadrant = quadrant

	e.filtered = e.cfg.Alpha*power + (1-e.cfg.Alpha)*e.filtered

	switch {
	case e.state == high && e.filtered < e.cfg.DropThreshold:
		e.drop = e.sample
		e.state = low
	case e.state != high && e.filtered > e.cfg.RiseThreshold:
		// Leaving idle, the previous pulse was already closed.
		if e.state == low {
			e.emit(e.sample, false)
		}
		e.state = high
		e.rise = e.sample
		e.drop = 0
		e.cw, e.ccw, e.crazy = 0, 0, 0
	case e.state == low && e.sample-e.drop > e.maxLow:
		e.emit(e.sample, true)
		e.state = idle
	}

	e.sample++
}

func (e *Extractor) emit(end uint64, terminal bool) {
	hiLen := e.drop - e.rise
	lowLen := end - e.drop

	p := burst.Pulse{
		High: saturate(SamplesToNs(hiLen, e.cfg.SampleRate)),
		Low:  saturate(SamplesToNs(lowLen, e.cfg.SampleRate)),
		Freq: Frequency(e.cw, e.ccw, e.crazy, hiLen, e.cfg.SampleRate),
	}

	e.sink.Pulse(p, SamplesToNs(e.rise, e.cfg.SampleRate), terminal)
}

func (e *Extractor) diagnostics(power float64) {
	if e.cfg.PowerInterval == 0 {
		return
	}

	e.powerSum += power
	e.powerCount++
	if e.powerCount < e.cfg.PowerInterval {
		return
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithField("power", math.Sqrt(e.powerSum/float64(e.powerCount))).Debug("average power")
	}
	e.powerSum, e.powerCount = 0, 0
}

// SamplesToNs converts a sample count to nanoseconds, avoiding the
// intermediate overflow of samples*1e9.
func SamplesToNs(samples uint64, sampleRate uint32) uint64 {
	rate := uint64(sampleRate)
	if rate == 0 {
		return 0
	}
	whole := samples / rate
	frac := samples % rate
	return whole*uint64(time.Second) + frac*uint64(time.Second)/rate
}

// Frequency estimates the carrier offset in Hz over a high period of
// hiLen samples. Each quarter turn of the IQ vector counts toward a cycle;
// transitions to the opposite quadrant are ambiguous and are assumed to
// be two quarter turns in the prevailing direction.
func Frequency(cw, ccw, crazy int, hiLen uint64, sampleRate uint32) int32 {
	if hiLen == 0 || sampleRate == 0 {
		return 0
	}

	cycles := float64(cw-ccw) / 4
	switch {
	case cycles > 0:
		cycles += float64(crazy) / 2
	case cycles < 0:
		cycles -= float64(crazy) / 2
	}

	f := math.Round(cycles / (float64(hiLen) / float64(sampleRate)))
	switch {
	case f > math.MaxInt32:
		return math.MaxInt32
	case f < math.MinInt32:
		return math.MinInt32
	}
	return int32(f)
}

func saturate(ns uint64) uint32 {
	if ns > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(ns)
}

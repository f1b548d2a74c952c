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

// Package acurite decodes Acurite 592TXR tower sensors and the two halves
// of the 5-in-1 weather station.
package acurite

import (
	"math"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/bitstream"
	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/checksum"
	"github.com/bemasher/rtlook/parse"
)

const Name = "acurite"

func init() {
	parse.Register(Name, NewParser)
}

func NewParser() parse.Parser {
	return New()
}

// Window is the acceptance region of one pulse shape.
type Window struct {
	High bitstream.Range
	Low  bitstream.Range
}

func (w Window) Match(p burst.Pulse) bool {
	return w.High.Contains(p.High) && w.Low.Contains(p.Low)
}

var (
	Start = Window{bitstream.Range{Min: 600000, Max: 700000}, bitstream.Range{Min: 500000, Max: 600000}}
	One   = Window{bitstream.Range{Min: 400000, Max: 500000}, bitstream.Range{Min: 100000, Max: 220000}}
	Zero  = Window{bitstream.Range{Min: 200000, Max: 300000}, bitstream.Range{Min: 300000, Max: 400000}}
	Stop  = Window{bitstream.Range{Min: 200000, Max: 300000}, bitstream.AtLeast(500000)}
)

// Message types carried in the low six bits of the status byte.
const (
	Type592TXR  = 0x04
	Type5n1Temp = 0x38 // wind speed, temperature, humidity
	Type5n1Rain = 0x31 // wind speed, wind direction, rainfall
)

const bufferLen = 8

var (
	ErrFraming     = errors.New("acurite: not a whole number of bytes")
	ErrOverrun     = errors.New("acurite: message overran buffer")
	ErrChecksum    = errors.New("acurite: checksum mismatch")
	ErrShort       = errors.New("acurite: message too short")
	ErrParity      = errors.New("acurite: parity mismatch")
	ErrLength      = errors.New("acurite: wrong length for message type")
	ErrUnknownType = errors.New("acurite: unknown message type")
)

type state byte

const (
	idle state = iota
	seenStart
	inMessage
)

// Stats counts what the framing automaton has seen.
type Stats struct {
	Noise       int // pulses ignored while idle
	FalseStarts int // start patterns not followed by data
	Aborted     int // messages interrupted by an unexpected pulse
	Discarded   int // framed messages failing validation
	Reports     int
}

// Decoder holds framing state and the pending halves of 5-in-1 readings.
// It is not safe for concurrent use.
type Decoder struct {
	state state
	data  [bufferLen]byte
	bits  int

	fragments map[station]*fragment
	seen      map[string]bool

	stats Stats
}

func New() *Decoder {
	return &Decoder{fragments: make(map[station]*fragment)}
}

func (d *Decoder) Name() string { return Name }

func (d *Decoder) Stats() Stats { return d.stats }

// Parse decodes every message of a burst. Framing restarts at the
// beginning of each burst; pending fragments carry over. Identical
// repeats of a message within the burst are decoded once.
func (d *Decoder) Parse(b *burst.Burst) (reports []parse.Report) {
	d.state = idle
	d.seen = make(map[string]bool)
	defer func() { d.seen = nil }()

	for _, p := range b.Pulses {
		if r, ok := d.Feed(p); ok {
			reports = append(reports, r)
		}
	}

	return
}

// Feed advances the framing automaton by one pulse and returns a report
// when the pulse completes one.
func (d *Decoder) Feed(p burst.Pulse) (parse.Report, bool) {
	switch d.state {
	case idle:
		if Start.Match(p) {
			d.state = seenStart
		} else {
			d.stats.Noise++
		}
		return parse.Report{}, false

	case seenStart:
		if Start.Match(p) {
			return parse.Report{}, false
		}
		if !One.Match(p) && !Zero.Match(p) {
			d.state = idle
			d.stats.FalseStarts++
			return parse.Report{}, false
		}
		d.state = inMessage
		d.bits = 0
		d.data = [bufferLen]byte{}
	}

	switch {
	case One.Match(p):
		if d.bits < bufferLen*8 {
			d.data[d.bits>>3] |= 1 << uint(7-d.bits&7)
		}
		d.bits++
	case Zero.Match(p):
		d.bits++
	case Stop.Match(p):
		d.state = idle
		return d.stop()
	default:
		d.state = idle
		d.stats.Aborted++
		if log.IsLevelEnabled(log.DebugLevel) {
			log.WithFields(log.Fields{
				"protocol": Name,
				"bits":     d.bits,
				"pulse":    p,
			}).Debug("message fell apart")
		}
	}

	return parse.Report{}, false
}

func (d *Decoder) stop() (parse.Report, bool) {
	var err error
	switch {
	case d.bits&7 != 0:
		err = errors.Wrapf(ErrFraming, "%d bits", d.bits)
	case d.bits > bufferLen*8:
		err = errors.Wrapf(ErrOverrun, "%d bits", d.bits)
	}
	if err != nil {
		d.discard(err)
		return parse.Report{}, false
	}

	msg := d.data[:d.bits>>3]
	if d.seen != nil {
		if d.seen[string(msg)] {
			return parse.Report{}, false
		}
		d.seen[string(msg)] = true
	}

	r, ok, err := d.Message(msg)
	if err != nil {
		d.discard(err)
		return parse.Report{}, false
	}
	if ok {
		d.stats.Reports++
	}
	return r, ok
}

func (d *Decoder) discard(err error) {
	d.stats.Discarded++
	if log.IsLevelEnabled(log.DebugLevel) {
		log.WithFields(log.Fields{
			"protocol": Name,
			"reason":   err,
		}).Debug("message discarded")
	}
}

// Message validates one framed message and decodes it. A valid half of a
// 5-in-1 reading whose other half has not arrived yields neither a report
// nor an error.
func (d *Decoder) Message(msg []byte) (r parse.Report, ok bool, err error) {
	if !checksum.Valid(msg) {
		return r, false, errors.Wrapf(ErrChecksum, "% X", msg)
	}

	if len(msg)*8 < 56 {
		return r, false, errors.Wrapf(ErrShort, "%d bits", len(msg)*8)
	}

	status := msg[2]
	battery := status >> 6 & 1
	msgType := status & 0x3F
	if status>>7 != checksum.Parity(uint(msgType))^battery {
		return r, false, errors.Wrap(ErrParity, "message type")
	}

	switch msgType {
	case Type592TXR:
		return decode592TXR(msg, battery == 0)
	case Type5n1Temp, Type5n1Rain:
		return d.decode5n1(msg, msgType, battery == 0)
	}

	return r, false, errors.Wrapf(ErrUnknownType, "0x%02X", msgType)
}

var channels = [4]uint8{3, 0, 2, 1}

func channel(b byte) uint8 {
	return channels[b>>6&0x03]
}

func decode592TXR(msg []byte, batteryLow bool) (r parse.Report, ok bool, err error) {
	if len(msg) != 7 {
		return r, false, errors.Wrapf(ErrLength, "592TXR: %d bits", len(msg)*8)
	}

	if !checksum.ParityByte(msg[3]) {
		return r, false, errors.Wrap(ErrParity, "humidity")
	}
	if !checksum.ParityByte(msg[4]) || !checksum.ParityByte(msg[5]) {
		return r, false, errors.Wrap(ErrParity, "temperature")
	}

	raw := int(msg[4]&0x7F)<<7 | int(msg[5]&0x7F)

	r = parse.Report{
		Protocol:    Name,
		Channel:     channel(msg[0]),
		ID:          uint16(msg[0]&0x3F)<<8 | uint16(msg[1]),
		BatteryLow:  batteryLow,
		Temperature: float64(raw-1000) / 10,
		Humidity:    msg[3] & 0x7F,
	}
	return r, true, nil
}

// Wind direction codes mapped to 16 point compass positions, 0 = N.
var directions = [16]uint8{14, 11, 13, 12, 15, 10, 0, 9, 3, 6, 4, 5, 2, 7, 1, 8}

// WindSpeed converts the anemometer count to m/s.
func WindSpeed(pulses uint16) float64 {
	if pulses == 0 {
		return 0
	}
	kmh := float64(pulses)*0.8278 + 1.0
	return round(kmh*0.27778, 10)
}

func (d *Decoder) decode5n1(msg []byte, msgType byte, batteryLow bool) (r parse.Report, ok bool, err error) {
	if len(msg) != 8 {
		return r, false, errors.Wrapf(ErrLength, "5-in-1: %d bits", len(msg)*8)
	}

	key := station{channel(msg[0]), uint16(msg[0]&0x0F)<<8 | uint16(msg[1])}
	pulses := uint16(msg[3])<<3&0xF8 | uint16(msg[4]>>4&0x07)
	wind := WindSpeed(pulses)

	frag := d.fragment(key)

	switch msgType {
	case Type5n1Temp:
		raw := int(msg[4])<<7&0x780 | int(msg[5]&0x7F)
		tempF := float64(raw-400) * 0.1

		frag.climate = &climate{
			temperature: round((tempF-32)*100/180, 10),
			humidity:    msg[6] & 0x7F,
		}
		if frag.weather == nil {
			return r, false, nil
		}
		r = frag.merge(key, batteryLow, wind)
		frag.weather = nil

	case Type5n1Rain:
		raw := int(msg[5])<<7&0x3F80 | int(msg[6]&0x7F)

		frag.weather = &weather{
			direction: directions[msg[4]&0x0F],
			rainfall:  round(float64(raw)/100*25.4, 100),
		}
		if frag.climate == nil {
			return r, false, nil
		}
		r = frag.merge(key, batteryLow, wind)
		frag.climate = nil
	}

	return r, true, nil
}

func round(v, scale float64) float64 {
	return math.Round(v*scale) / scale
}

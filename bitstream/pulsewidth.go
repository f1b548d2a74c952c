package bitstream

import (
	"github.com/pkg/errors"

	"github.com/bemasher/rtlook/burst"
)

var (
	ErrLowRange  = errors.New("bitstream: low duration out of range")
	ErrHighRange = errors.New("bitstream: high duration out of range")
)

// PulseWidth decodes bursts where the length of each high period carries
// one bit and the lows only provide timing.
type PulseWidth struct {
	Zero Range `koanf:"zero_high"`
	One  Range `koanf:"one_high"`
	Low  Range `koanf:"low"`
}

// Timings of the Fine Offset WH1080 and La Crosse WS2300 families.
var (
	WH1080 = PulseWidth{
		Zero: Range{1400000, 1600000},
		One:  Range{400000, 600000},
		Low:  AtLeast(900000),
	}
	WS2300 = PulseWidth{
		Zero: Range{1300000, 1500000},
		One:  Range{250000, 400000},
		Low:  AtLeast(900000),
	}
)

// Validate rejects overlapping zero and one windows.
func (pw PulseWidth) Validate() error {
	if pw.Zero.Overlaps(pw.One) {
		return errors.Errorf("bitstream: zero window %s overlaps one window %s", pw.Zero, pw.One)
	}
	return nil
}

// Decode emits one bit per pulse. The first pulse whose low or high falls
// outside its window stops decoding; the bits decoded before it are
// returned with the error and must not be trusted.
func (pw PulseWidth) Decode(pulses []burst.Pulse) (Bits, error) {
	bits := NewBits(len(pulses))

	for idx, p := range pulses {
		if !pw.Low.Contains(p.Low) {
			return bits, errors.Wrapf(ErrLowRange, "pulse %d: low %dns not in %s", idx, p.Low, pw.Low)
		}

		switch {
		case pw.Zero.Contains(p.High):
			bits.Append(0)
		case pw.One.Contains(p.High):
			bits.Append(1)
		default:
			return bits, errors.Wrapf(ErrHighRange, "pulse %d: high %dns not in %s or %s", idx, p.High, pw.Zero, pw.One)
		}
	}

	return bits, nil
}

package bitstream

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/bemasher/rtlook/burst"
)

var (
	ErrManchester      = errors.New("bitstream: invalid manchester sequence")
	ErrTrailingSymbols = errors.New("bitstream: symbols after end of transmission")
)

// Symbol is the category of one half of a pulse.
type Symbol byte

const (
	Spurious Symbol = iota
	ShortHigh
	LongHigh
	ShortLow
	LongLow
	EndMarker
)

var symbolNames = [...]string{
	Spurious:  "?",
	ShortHigh: "-",
	LongHigh:  "--",
	ShortLow:  "_",
	LongLow:   "__",
	EndMarker: ".",
}

func (s Symbol) String() string {
	if int(s) < len(symbolNames) {
		return symbolNames[s]
	}
	return "!"
}

// Symbols renders a symbol sequence compactly, e.g. "-__-_.".
func Symbols(syms []Symbol) string {
	var sb strings.Builder
	for _, s := range syms {
		sb.WriteString(s.String())
	}
	return sb.String()
}

// State of the Manchester automaton. Carrier states expect the half-bit
// which carries no data, data states expect the half-bit that does.
type State byte

const (
	Carrier0 State = iota
	Carrier1
	Data0
	Data1
)

func (s State) String() string {
	switch s {
	case Carrier0:
		return "carrier-0"
	case Carrier1:
		return "carrier-1"
	case Data0:
		return "data-0"
	case Data1:
		return "data-1"
	}
	return "invalid"
}

type action byte

const (
	none action = iota
	emit0
	emit1
	stop
)

type step struct {
	state  State
	symbol Symbol
}

type move struct {
	act  action
	next State
}

// Pairs missing from the table are decode failures.
var transitions = map[step]move{
	{Data1, ShortLow}:     {none, Carrier0},
	{Data1, LongLow}:      {emit0, Data0},
	{Data1, EndMarker}:    {stop, Carrier0},
	{Carrier0, ShortHigh}: {emit1, Data1},
	{Data0, ShortHigh}:    {none, Carrier1},
	{Data0, LongHigh}:     {emit1, Data1},
	{Carrier1, ShortLow}:  {emit0, Data0},
	{Carrier1, EndMarker}: {stop, Carrier0},
}

// DecodeSymbols runs the automaton from Carrier0. On failure the bits
// emitted so far are returned alongside the error.
func DecodeSymbols(syms []Symbol) (Bits, error) {
	bits := NewBits(len(syms) / 2)
	state := Carrier0
	done := false

	for idx, sym := range syms {
		if done {
			return bits, errors.Wrapf(ErrTrailingSymbols, "symbol %d", idx)
		}

		m, ok := transitions[step{state, sym}]
		if !ok {
			return bits, errors.Wrapf(ErrManchester, "symbol %d: %q in state %s", idx, sym, state)
		}

		switch m.act {
		case emit0:
			bits.Append(0)
		case emit1:
			bits.Append(1)
		case stop:
			done = true
		}
		state = m.next
	}

	return bits, nil
}

// Manchester classifies pulse halves by duration and decodes the result.
type Manchester struct {
	ShortHigh Range
	LongHigh  Range
	ShortLow  Range
	LongLow   Range
}

// Symbols classifies each pulse into a high and a low symbol. The low of
// the final pulse is always the end marker.
func (m Manchester) Symbols(pulses []burst.Pulse) []Symbol {
	syms := make([]Symbol, 0, len(pulses)*2)

	for idx, p := range pulses {
		switch {
		case m.ShortHigh.Contains(p.High):
			syms = append(syms, ShortHigh)
		case m.LongHigh.Contains(p.High):
			syms = append(syms, LongHigh)
		default:
			syms = append(syms, Spurious)
		}

		switch {
		case idx == len(pulses)-1:
			syms = append(syms, EndMarker)
		case m.ShortLow.Contains(p.Low):
			syms = append(syms, ShortLow)
		case m.LongLow.Contains(p.Low):
			syms = append(syms, LongLow)
		default:
			syms = append(syms, Spurious)
		}
	}

	return syms
}

func (m Manchester) Decode(pulses []burst.Pulse) (Bits, error) {
	return DecodeSymbols(m.Symbols(pulses))
}

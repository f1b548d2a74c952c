// Package quantify groups the pulse durations of an unknown transmission
// into clusters and guesses a Manchester symbol assignment from them.
package quantify

import (
	"fmt"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bemasher/rtlook/bitstream"
	"github.com/bemasher/rtlook/burst"
)

// DefaultTolerance is the relative growth allowed at each cluster edge.
const DefaultTolerance = 0.2

// Cluster is a run of similar durations.
type Cluster struct {
	Min, Max uint32
	Values   []float64
	Symbol   bitstream.Symbol
}

func (c *Cluster) Count() int { return len(c.Values) }

func (c *Cluster) Range() bitstream.Range {
	return bitstream.Range{Min: c.Min, Max: c.Max}
}

func (c *Cluster) Mean() float64 {
	return stat.Mean(c.Values, nil)
}

// StdDev is the sample standard deviation, zero for a single member.
func (c *Cluster) StdDev() float64 {
	if len(c.Values) < 2 {
		return 0
	}
	return stat.StdDev(c.Values, nil)
}

// Total is the sum of member durations.
func (c *Cluster) Total() float64 {
	return floats.Sum(c.Values)
}

func (c *Cluster) String() string {
	return fmt.Sprintf("%d..%d n=%d mean=%.0f sd=%.0f %s",
		c.Min, c.Max, c.Count(), c.Mean(), c.StdDev(), c.Symbol)
}

func combine(a, b *Cluster) *Cluster {
	c := &Cluster{
		Min:    a.Min,
		Max:    a.Max,
		Values: make([]float64, 0, len(a.Values)+len(b.Values)),
	}
	c.Values = append(c.Values, a.Values...)
	c.Values = append(c.Values, b.Values...)

	if b.Min < c.Min {
		c.Min = b.Min
	}
	if b.Max > c.Max {
		c.Max = b.Max
	}
	return c
}

// Clusters are ordered by Min.
type Clusters []*Cluster

// Lookup returns the cluster containing v, or nil.
func (cs Clusters) Lookup(v uint32) *Cluster {
	for _, c := range cs {
		if v >= c.Min && v <= c.Max {
			return c
		}
	}
	return nil
}

// GuessAndGrow seeds a cluster at the median of the unclaimed values and
// widens it by tolerance at both edges until no more values join, then
// repeats on whatever is left.
func GuessAndGrow(values []uint32, tolerance float64) Clusters {
	pool := make([]uint32, len(values))
	copy(pool, values)
	sort.Slice(pool, func(i, j int) bool { return pool[i] < pool[j] })

	grow := func(left, right int) (int, int) {
		min := float64(pool[left]) * (1 - tolerance)
		max := float64(pool[right]) * (1 + tolerance)

		for left > 0 && float64(pool[left-1]) >= min {
			left--
		}
		for right+1 < len(pool) && float64(pool[right+1]) <= max {
			right++
		}
		return left, right
	}

	var clusters Clusters
	for len(pool) > 0 {
		center := len(pool) / 2
		left, right := grow(center, center)

		for {
			l, r := grow(left, right)
			if l == left && r == right {
				break
			}
			left, right = l, r
		}

		c := &Cluster{
			Min:    pool[left],
			Max:    pool[right],
			Values: make([]float64, 0, right-left+1),
		}
		for _, v := range pool[left : right+1] {
			c.Values = append(c.Values, float64(v))
		}
		clusters = append(clusters, c)

		pool = append(pool[:left], pool[right+1:]...)
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Min < clusters[j].Min })
	return clusters
}

// FoldLeadingRunt merges a single member cluster holding exactly the
// first duration of the burst into its successor. The first high after
// silence is often stretched or clipped by the detector's rise time.
func FoldLeadingRunt(cs Clusters, first uint32) Clusters {
	if len(cs) < 2 {
		return cs
	}

	for i, c := range cs {
		if c.Min > first {
			break
		}
		if c.Count() == 1 && c.Min == first && i+1 < len(cs) {
			folded := make(Clusters, 0, len(cs)-1)
			folded = append(folded, cs[:i]...)
			folded = append(folded, combine(cs[i], cs[i+1]))
			return append(folded, cs[i+2:]...)
		}
	}
	return cs
}

// AssignSymbols labels two high clusters short and long, and three low
// clusters short, long and, when it holds a single duration, end marker.
// Any other shape is left spurious.
func AssignSymbols(highs, lows Clusters) {
	if len(highs) == 2 {
		highs[0].Symbol = bitstream.ShortHigh
		highs[1].Symbol = bitstream.LongHigh
	}
	if len(lows) == 3 {
		lows[0].Symbol = bitstream.ShortLow
		lows[1].Symbol = bitstream.LongLow
		if lows[2].Count() == 1 {
			lows[2].Symbol = bitstream.EndMarker
		}
	}
}

// Manchester derives a duration classifier from labelled clusters.
func Manchester(highs, lows Clusters) (m bitstream.Manchester, ok bool) {
	if len(highs) != 2 || len(lows) < 2 {
		return m, false
	}
	if highs[0].Symbol != bitstream.ShortHigh || lows[0].Symbol != bitstream.ShortLow {
		return m, false
	}

	m.ShortHigh = highs[0].Range()
	m.LongHigh = highs[1].Range()
	m.ShortLow = lows[0].Range()
	m.LongLow = lows[1].Range()
	return m, true
}

// Result describes one analyzed burst.
type Result struct {
	Position uint64
	Pulses   int
	Highs    Clusters
	Lows     Clusters
	Symbols  []bitstream.Symbol
	Bits     bitstream.Bits
	Err      error // Manchester decode failure
}

// Analyze clusters the highs and lows of b, labels them and attempts a
// Manchester decode of the resulting symbols.
func Analyze(b *burst.Burst, tolerance float64) Result {
	r := Result{Position: b.Position, Pulses: b.Len()}
	if b.Len() == 0 {
		r.Err = bitstream.ErrManchester
		return r
	}

	highs := make([]uint32, b.Len())
	lows := make([]uint32, b.Len())
	for idx, p := range b.Pulses {
		highs[idx] = p.High
		lows[idx] = p.Low
	}

	r.Highs = FoldLeadingRunt(GuessAndGrow(highs, tolerance), highs[0])
	r.Lows = GuessAndGrow(lows, tolerance)
	AssignSymbols(r.Highs, r.Lows)

	r.Symbols = make([]bitstream.Symbol, 0, b.Len()*2)
	for _, p := range b.Pulses {
		r.Symbols = append(r.Symbols, symbol(r.Highs, p.High), symbol(r.Lows, p.Low))
	}

	r.Bits, r.Err = bitstream.DecodeSymbols(r.Symbols)
	return r
}

func symbol(cs Clusters, v uint32) bitstream.Symbol {
	if c := cs.Lookup(v); c != nil {
		return c.Symbol
	}
	return bitstream.Spurious
}

// Log writes the analysis in the layout of the analyze command.
func (r Result) Log() {
	entry := log.WithFields(log.Fields{
		"position": r.Position,
		"pulses":   r.Pulses,
	})

	for idx, c := range r.Highs {
		entry.WithField("cluster", idx).Info("high ", c)
	}
	for idx, c := range r.Lows {
		entry.WithField("cluster", idx).Info("low ", c)
	}

	entry.Info(":: ", bitstream.Symbols(r.Symbols))

	if r.Err != nil {
		entry.WithError(r.Err).Info("manchester decode failed")
		return
	}
	entry.Info("manchester: ", r.Bits.NibblesLSB())
}

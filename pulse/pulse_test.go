package pulse

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/gen"
)

type record struct {
	Pulse    burst.Pulse
	Rise     uint64
	Terminal bool
}

type recorder []record

func (r *recorder) Pulse(p burst.Pulse, rise uint64, terminal bool) {
	*r = append(*r, record{p, rise, terminal})
}

const sampleRate = 250000

// One sample at 250kHz.
const tick = 4000

func testConfig() Config {
	cfg := NewConfig()
	cfg.SampleRate = sampleRate
	cfg.PowerInterval = 0
	return cfg
}

func TestSamplesToNs(t *testing.T) {
	assert.Equal(t, uint64(tick), SamplesToNs(1, sampleRate))
	assert.Equal(t, uint64(time.Second), SamplesToNs(sampleRate, sampleRate))
	assert.Equal(t, uint64(0), SamplesToNs(10, 0))

	// 40 days of samples, samples*1e9 alone would overflow.
	days := uint64(40 * 24 * 3600)
	assert.Equal(t, days*uint64(time.Second), SamplesToNs(days*sampleRate, sampleRate))
}

func TestFrequency(t *testing.T) {
	cases := []struct {
		name           string
		cw, ccw, crazy int
		want           int32
	}{
		{"clockwise", 100, 0, 0, 25000},
		{"counter clockwise", 0, 100, 0, -25000},
		{"crazy adds to clockwise", 100, 0, 10, 30000},
		{"crazy adds to counter clockwise", 0, 100, 10, -30000},
		{"crazy ignored when balanced", 4, 4, 10, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			// 250 samples is 1ms.
			assert.Equal(t, c.want, Frequency(c.cw, c.ccw, c.crazy, 250, sampleRate))
		})
	}

	assert.Equal(t, int32(0), Frequency(10, 0, 0, 0, sampleRate))
}

func TestQuadrant(t *testing.T) {
	assert.Equal(t, uint8(0), Quadrant(200, 200))
	assert.Equal(t, uint8(1), Quadrant(50, 200))
	assert.Equal(t, uint8(2), Quadrant(50, 50))
	assert.Equal(t, uint8(3), Quadrant(200, 50))
	assert.Equal(t, uint8(0), Quadrant(128, 128))

	// A quarter turn counter clockwise and its reverse.
	assert.Equal(t, ccw, motion[0<<2|1])
	assert.Equal(t, cw, motion[1<<2|0])
	assert.Equal(t, crazy, motion[0<<2|2])
	assert.Equal(t, none, motion[3<<2|3])
}

func TestPowerLUT(t *testing.T) {
	lut := NewPowerLUT()
	assert.Equal(t, 0.0, lut[128])
	assert.Equal(t, 1.0, lut[0])

	out := make([]float64, 2)
	lut.Execute([]byte{128, 128, 0, 128}, out)
	assert.Equal(t, []float64{0, 1}, out)
}

var testPulses = []burst.Pulse{
	{High: 400000, Low: 800000},
	{High: 800000, Low: 400000},
	{High: 400000, Low: 20000000},
}

func TestExtractor(t *testing.T) {
	const lead = 500
	signal := gen.OOK(testPulses, lead, 10000, sampleRate)

	var rec recorder
	e := NewExtractor(testConfig(), &rec)
	e.Process(signal)
	e.Flush()

	require.Len(t, rec, len(testPulses))

	var position uint64 = lead * tick
	for idx, r := range rec {
		want := testPulses[idx]

		// The power filter delays both edges, the drop more than the rise.
		assert.InDelta(t, want.High, r.Pulse.High, 12*tick, "pulse %d high", idx)
		if idx < len(rec)-1 {
			assert.InDelta(t, want.Low, r.Pulse.Low, 12*tick, "pulse %d low", idx)
		}
		assert.InDelta(t, 10000, r.Pulse.Freq, 2000, "pulse %d freq", idx)
		assert.InDelta(t, position, r.Rise, 2*tick, "pulse %d rise", idx)
		assert.Equal(t, idx == len(rec)-1, r.Terminal, "pulse %d terminal", idx)

		position += uint64(want.High) + uint64(want.Low)
	}

	// Terminal after the silence limit, not at the end of the signal.
	last := rec[len(rec)-1].Pulse
	assert.InDelta(t, uint64(8*time.Millisecond), last.Low, 2*tick)
}

func TestExtractorNegativeOffset(t *testing.T) {
	signal := gen.OOK(testPulses[:1], 100, -20000, sampleRate)

	var rec recorder
	e := NewExtractor(testConfig(), &rec)
	e.Process(signal)
	e.Flush()

	require.Len(t, rec, 1)
	assert.InDelta(t, -20000, rec[0].Pulse.Freq, 3000)
}

func TestExtractorBlockBoundaries(t *testing.T) {
	signal := gen.OOK(testPulses, 333, 7000, sampleRate)

	var whole recorder
	e := NewExtractor(testConfig(), &whole)
	e.Process(signal)
	e.Flush()

	// Odd block sizes split IQ pairs across calls.
	for _, size := range []int{1, 7, 512, 4097} {
		var split recorder
		e := NewExtractor(testConfig(), &split)
		for idx := 0; idx < len(signal); idx += size {
			end := idx + size
			if end > len(signal) {
				end = len(signal)
			}
			e.Process(signal[idx:end])
		}
		e.Flush()

		if diff := cmp.Diff(whole, split); diff != "" {
			t.Fatalf("block size %d mismatch (-whole +split):\n%s", size, diff)
		}
	}
	assert.Equal(t, uint64(len(signal)/2), e.Samples())
}

func TestExtractorFlush(t *testing.T) {
	t.Run("in low", func(t *testing.T) {
		pulses := []burst.Pulse{{High: 400000, Low: 1000000}}
		var rec recorder
		e := NewExtractor(testConfig(), &rec)
		e.Process(gen.OOK(pulses, 10, 0, sampleRate))
		require.Empty(t, rec)

		e.Flush()
		require.Len(t, rec, 1)
		assert.True(t, rec[0].Terminal)

		e.Flush()
		assert.Len(t, rec, 1)
	})

	t.Run("in high", func(t *testing.T) {
		var rec recorder
		e := NewExtractor(testConfig(), &rec)
		e.Process(gen.OOK([]burst.Pulse{{High: 400000}}, 10, 0, sampleRate))
		e.Flush()

		require.Len(t, rec, 1)
		assert.True(t, rec[0].Terminal)
		assert.Equal(t, uint32(0), rec[0].Pulse.Low)
		assert.InDelta(t, 400000, rec[0].Pulse.High, 2*tick)
	})
}

func TestExtractorSilence(t *testing.T) {
	var rec recorder
	e := NewExtractor(testConfig(), &rec)
	e.Process(gen.Silence(100000))
	e.Flush()
	assert.Empty(t, rec)
}

func TestSaturate(t *testing.T) {
	assert.Equal(t, uint32(math.MaxUint32), saturate(math.MaxUint32+1))
	assert.Equal(t, uint32(7), saturate(7))
}

type discard struct{}

func (discard) Pulse(burst.Pulse, uint64, bool) {}

func BenchmarkPowerLUT(b *testing.B) {
	lut := NewPowerLUT()
	input := make([]byte, 1<<15)
	output := make([]float64, 1<<14)

	b.SetBytes(int64(len(input)))
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		lut.Execute(input, output)
	}
}

func BenchmarkProcess(b *testing.B) {
	signal := gen.OOK(gen.AcuritePulses(make([]byte, 7), 3), 1000, 10000, sampleRate)
	e := NewExtractor(testConfig(), discard{})

	b.SetBytes(int64(len(signal)))
	b.ReportAllocs()
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		e.Process(signal)
	}
}

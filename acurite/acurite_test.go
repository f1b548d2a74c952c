package acurite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/gen"
	"github.com/bemasher/rtlook/parse"
	"github.com/bemasher/rtlook/pulse"
)

func newBurst(pulses []burst.Pulse) *burst.Burst {
	return &burst.Burst{Pulses: pulses}
}

func TestWindows(t *testing.T) {
	windows := []Window{Start, One, Zero, Stop}
	nominal := []burst.Pulse{gen.AcuriteStart, gen.AcuriteOne, gen.AcuriteZero, gen.AcuriteStop}

	for i, p := range nominal {
		for j, w := range windows {
			assert.Equal(t, i == j, w.Match(p), "pulse %d window %d", i, j)
		}
	}
}

func TestMessage592TXR(t *testing.T) {
	msg := []byte{0xD2, 0x34, 0x44, 0x2D, 0x09, 0x3F, 0xBF}
	require.Equal(t, gen.Acurite592TXR(1, 0x1234, true, 215, 45), msg)

	d := New()
	r, ok, err := d.Message(msg)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, parse.Report{
		Protocol:    Name,
		Channel:     1,
		ID:          0x1234,
		Temperature: 21.5,
		Humidity:    45,
	}, r)
}

func TestMessage592TXRNegative(t *testing.T) {
	r, ok, err := New().Message(gen.Acurite592TXR(3, 7, false, -125, 90))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, uint8(3), r.Channel)
	assert.Equal(t, uint16(7), r.ID)
	assert.True(t, r.BatteryLow)
	assert.InDelta(t, -12.5, r.Temperature, 1e-9)
	assert.Equal(t, uint8(90), r.Humidity)
}

// fix recomputes the checksum so only the parity check can fail.
func fix(msg []byte) []byte {
	sum := byte(0)
	for _, b := range msg[:len(msg)-1] {
		sum += b
	}
	msg[len(msg)-1] = sum
	return msg
}

func TestMessageParity(t *testing.T) {
	for _, idx := range []int{2, 3, 4, 5} {
		msg := gen.Acurite592TXR(1, 0x1234, true, 215, 45)
		msg[idx] ^= 0x80
		fix(msg)

		r, ok, err := New().Message(msg)
		assert.False(t, ok, "byte %d", idx)
		assert.ErrorIs(t, err, ErrParity, "byte %d", idx)
		assert.Equal(t, parse.Report{}, r)
	}
}

func TestMessageErrors(t *testing.T) {
	d := New()

	msg := gen.Acurite592TXR(1, 0x1234, true, 215, 45)
	msg[1] ^= 0x01
	_, ok, err := d.Message(msg)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrChecksum)

	_, _, err = d.Message([]byte{0x01, 0x02, 0x03})
	assert.ErrorIs(t, err, ErrShort)

	// Type 0x04 in a 64 bit message.
	long := append(gen.Acurite592TXR(1, 0x1234, true, 215, 45)[:6], 0x00, 0x00)
	_, _, err = d.Message(fix(long))
	assert.ErrorIs(t, err, ErrLength)

	// Type 0x38 in a 56 bit message.
	short := gen.Acurite5n1Temp(1, 0x123, true, 0, 720, 40)[:7]
	_, _, err = d.Message(fix(short))
	assert.ErrorIs(t, err, ErrLength)

	unknown := gen.Acurite592TXR(1, 0x1234, true, 215, 45)
	unknown[2] = 0x0A // type 0x0A, battery 0, parity 0
	_, _, err = d.Message(fix(unknown))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestWindSpeed(t *testing.T) {
	assert.Equal(t, 0.0, WindSpeed(0))
	assert.InDelta(t, 0.5, WindSpeed(1), 1e-9)
	assert.InDelta(t, 2.6, WindSpeed(10), 1e-9)
	assert.InDelta(t, 58.9, WindSpeed(255), 1e-9)
}

func expectedMerged(windSpeed float64) parse.Report {
	wind := windSpeed
	direction := uint8(0)
	rain := 31.75
	return parse.Report{
		Protocol:      Name,
		Channel:       2,
		ID:            0x123,
		Temperature:   22.2,
		Humidity:      40,
		WindSpeed:     &wind,
		WindDirection: &direction,
		Rainfall:      &rain,
	}
}

func TestCorrelation(t *testing.T) {
	temp := gen.Acurite5n1Temp(2, 0x123, true, 10, 720, 40)
	rain := gen.Acurite5n1Rain(2, 0x123, true, 10, 6, 125)

	t.Run("TempThenRain", func(t *testing.T) {
		d := New()

		_, ok, err := d.Message(temp)
		require.NoError(t, err)
		assert.False(t, ok)

		r, ok, err := d.Message(rain)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, expectedMerged(2.6).Equal(r), "%+v", r)

		climate, weather := d.Pending(2, 0x123)
		assert.False(t, climate)
		assert.True(t, weather)
	})

	t.Run("RainThenTemp", func(t *testing.T) {
		d := New()

		_, ok, err := d.Message(rain)
		require.NoError(t, err)
		assert.False(t, ok)

		r, ok, err := d.Message(temp)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, expectedMerged(2.6).Equal(r), "%+v", r)

		climate, weather := d.Pending(2, 0x123)
		assert.True(t, climate)
		assert.False(t, weather)
	})

	t.Run("Single", func(t *testing.T) {
		for _, msg := range [][]byte{temp, rain} {
			d := New()
			_, ok, err := d.Message(msg)
			assert.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("WindFromLatest", func(t *testing.T) {
		d := New()

		_, ok, _ := d.Message(temp)
		require.False(t, ok)

		r, ok, err := d.Message(gen.Acurite5n1Rain(2, 0x123, true, 0, 6, 125))
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, expectedMerged(0).Equal(r), "%+v", r)
	})

	t.Run("Stations", func(t *testing.T) {
		d := New()

		_, ok, _ := d.Message(temp)
		require.False(t, ok)

		// Another station's wind half must not consume this one's climate.
		_, ok, err := d.Message(gen.Acurite5n1Rain(2, 0x456, true, 10, 6, 125))
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, _ = d.Message(gen.Acurite5n1Rain(1, 0x123, true, 10, 6, 125))
		assert.False(t, ok)

		r, ok, _ := d.Message(rain)
		require.True(t, ok)
		assert.Equal(t, uint16(0x123), r.ID)
	})
}

func TestFeed(t *testing.T) {
	msg := gen.Acurite592TXR(1, 0x1234, true, 215, 45)

	t.Run("Valid", func(t *testing.T) {
		d := New()

		var reports []parse.Report
		for _, p := range gen.AcuritePulses(msg, 1) {
			if r, ok := d.Feed(p); ok {
				reports = append(reports, r)
			}
		}

		require.Len(t, reports, 1)
		assert.InDelta(t, 21.5, reports[0].Temperature, 1e-9)
		assert.Equal(t, 1, d.Stats().Reports)
	})

	t.Run("Noise", func(t *testing.T) {
		d := New()
		noise := burst.Pulse{High: 50000, Low: 50000}

		pulses := []burst.Pulse{noise, noise}
		pulses = append(pulses, gen.AcuritePulses(msg, 1)...)

		var n int
		for _, p := range pulses {
			if _, ok := d.Feed(p); ok {
				n++
			}
		}
		assert.Equal(t, 1, n)
		assert.Equal(t, 2, d.Stats().Noise)
	})

	t.Run("FalseStart", func(t *testing.T) {
		d := New()
		d.Feed(gen.AcuriteStart)
		d.Feed(gen.AcuriteStop)
		assert.Equal(t, 1, d.Stats().FalseStarts)
		assert.Equal(t, idle, d.state)
	})

	t.Run("Aborted", func(t *testing.T) {
		d := New()
		pulses := gen.AcuritePulses(msg, 1)
		pulses[20] = burst.Pulse{High: 350000, Low: 350000}

		for _, p := range pulses {
			_, ok := d.Feed(p)
			assert.False(t, ok)
		}
		assert.Equal(t, 1, d.Stats().Aborted)
	})

	t.Run("Framing", func(t *testing.T) {
		d := New()
		pulses := gen.AcuritePulses(msg, 1)
		// Drop one bit.
		pulses = append(pulses[:10], pulses[11:]...)

		for _, p := range pulses {
			_, ok := d.Feed(p)
			assert.False(t, ok)
		}
		assert.Equal(t, 1, d.Stats().Discarded)
	})

	t.Run("Overrun", func(t *testing.T) {
		d := New()
		pulses := gen.AcuritePulses(make([]byte, 9), 1)

		for _, p := range pulses {
			_, ok := d.Feed(p)
			assert.False(t, ok)
		}
		assert.Equal(t, 1, d.Stats().Discarded)
	})

	t.Run("Resync", func(t *testing.T) {
		d := New()
		bad := append([]byte(nil), msg...)
		bad[6] ^= 0xFF

		pulses := gen.AcuritePulses(bad, 1)
		pulses = append(pulses, gen.AcuritePulses(msg, 1)...)

		var n int
		for _, p := range pulses {
			if _, ok := d.Feed(p); ok {
				n++
			}
		}
		assert.Equal(t, 1, n)
		assert.Equal(t, 1, d.Stats().Discarded)
	})
}

func TestParseRepeats(t *testing.T) {
	msg := gen.Acurite592TXR(1, 0x1234, true, 215, 45)

	d := New()
	reports := d.Parse(newBurst(gen.AcuritePulses(msg, 3)))
	assert.Len(t, reports, 1)

	// Bursts are independent.
	reports = d.Parse(newBurst(gen.AcuritePulses(msg, 3)))
	assert.Len(t, reports, 1)
}

func TestParseSplit(t *testing.T) {
	temp := gen.Acurite5n1Temp(2, 0x123, true, 10, 720, 40)
	rain := gen.Acurite5n1Rain(2, 0x123, true, 10, 6, 125)

	d := New()
	assert.Empty(t, d.Parse(newBurst(gen.AcuritePulses(temp, 3))))

	reports := d.Parse(newBurst(gen.AcuritePulses(rain, 3)))
	require.Len(t, reports, 1)
	assert.True(t, expectedMerged(2.6).Equal(reports[0]), "%+v", reports[0])
}

func TestRegistered(t *testing.T) {
	p, err := parse.NewParser(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, p.Name())
}

// TestPipeline runs a synthesized transmission through detection, burst
// assembly, the wire codec and the decoder.
func TestPipeline(t *testing.T) {
	const sampleRate = 1000000

	msg := gen.Acurite592TXR(2, 0x0321, false, 42, 67)
	signal := gen.OOK(gen.AcuritePulses(msg, 3), 1000, 15000, sampleRate)

	var packets [][]byte
	a := burst.NewAssembler(burst.DefaultCapacity, burst.DefaultMinPulses, func(b *burst.Burst) {
		data, err := burst.Encode(b)
		require.NoError(t, err)
		packets = append(packets, data)
	})

	cfg := pulse.NewConfig()
	cfg.SampleRate = sampleRate
	cfg.PowerInterval = 0

	e := pulse.NewExtractor(cfg, a)
	e.Process(signal)
	e.Flush()

	require.Len(t, packets, 1)

	b, err := burst.Decode(packets[0])
	require.NoError(t, err)
	assert.Equal(t, 3*(4+56+1), b.Len())

	reports := New().Parse(b)
	require.Len(t, reports, 1)

	r := reports[0]
	assert.Equal(t, uint8(2), r.Channel)
	assert.Equal(t, uint16(0x0321), r.ID)
	assert.True(t, r.BatteryLow)
	assert.InDelta(t, 4.2, r.Temperature, 1e-9)
	assert.Equal(t, uint8(67), r.Humidity)
}

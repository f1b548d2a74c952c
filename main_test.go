package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/rtlook/bitstream"
	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/gen"
	"github.com/bemasher/rtlook/parse"
	"github.com/bemasher/rtlook/transport"
)

func TestUintMap(t *testing.T) {
	var m UintMap
	require.NoError(t, m.UnmarshalText([]byte("1, 3")))
	assert.Equal(t, UintMap{1: true, 3: true}, m)

	assert.Error(t, m.UnmarshalText([]byte("x")))
	assert.Error(t, m.UnmarshalText([]byte("70000")))
}

func TestFilters(t *testing.T) {
	r := parse.Report{Protocol: "acurite", Channel: 2, ID: 801, Temperature: 4.2}

	assert.True(t, ChannelFilter{UintMap{2: true}}.Filter(r))
	assert.False(t, ChannelFilter{UintMap{1: true}}.Filter(r))
	assert.True(t, IDFilter{UintMap{801: true}}.Filter(r))
	assert.False(t, IDFilter{UintMap{802: true}}.Filter(r))

	uf := NewUniqueFilter()
	assert.True(t, uf.Filter(r))
	assert.False(t, uf.Filter(r))

	other := r
	other.Channel = 3
	assert.True(t, uf.Filter(other))

	r.Temperature = 4.3
	assert.True(t, uf.Filter(r))
	assert.False(t, uf.Filter(r))
}

func testMessage() parse.LogMessage {
	return parse.LogMessage{
		Time:     time.Date(2015, 6, 1, 12, 30, 0, 0, time.UTC),
		Position: 1500 * time.Millisecond,
		Source:   "archive",
		Report:   parse.Report{Protocol: "acurite", Channel: 1, ID: 4660, Temperature: 21.5, Humidity: 45},
	}
}

func TestNewEncoder(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder("plain", &buf, false)
		require.NoError(t, err)
		require.NoError(t, enc.Encode(testMessage()))
		assert.Equal(t, testMessage().StringNoOffset()+"\n", buf.String())
		assert.NotContains(t, buf.String(), "Position")
	})

	t.Run("plain positions", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder("PLAIN", &buf, true)
		require.NoError(t, err)
		require.NoError(t, enc.Encode(testMessage()))
		assert.Contains(t, buf.String(), "Position:1.5s")
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder("csv", &buf, false)
		require.NoError(t, err)
		require.NoError(t, enc.Encode(testMessage()))
		require.NoError(t, enc.Encode(testMessage()))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, strings.Join(parse.LogHeader, ","), lines[0])
		assert.Equal(t, lines[1], lines[2])
		assert.Len(t, strings.Split(lines[1], ","), len(parse.LogHeader))
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder("json", &buf, false)
		require.NoError(t, err)
		require.NoError(t, enc.Encode(testMessage()))
		assert.Contains(t, buf.String(), `"temperature":21.5`)
		assert.NotContains(t, buf.String(), "wind_speed")
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewEncoder("gob", &bytes.Buffer{}, false)
		assert.Error(t, err)
	})
}

func TestPacer(t *testing.T) {
	clock := time.Unix(0, 0)
	p := pacer{rate: 2, now: func() time.Time { return clock }}

	assert.Equal(t, time.Duration(0), p.delay(uint64(5*time.Second)))

	clock = clock.Add(100 * time.Millisecond)
	assert.Equal(t, 400*time.Millisecond, p.delay(uint64(6*time.Second)))

	clock = clock.Add(time.Second)
	assert.Less(t, p.delay(uint64(6*time.Second)), time.Duration(0))
	assert.Equal(t, time.Duration(0), p.delay(uint64(4*time.Second)))

	unpaced := pacer{}
	assert.NoError(t, unpaced.wait(context.Background(), 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, unpaced.wait(ctx, 1))
}

func writeArchive(t *testing.T, bursts ...*burst.Burst) string {
	t.Helper()

	filename := filepath.Join(t.TempDir(), "bursts.tar")
	f, err := os.Create(filename)
	require.NoError(t, err)
	defer f.Close()

	w := burst.NewWriter(f, "test-session")
	for _, b := range bursts {
		require.NoError(t, w.Write(b))
	}
	require.NoError(t, w.Close())

	return filename
}

func TestInputArchive(t *testing.T) {
	filename := writeArchive(t,
		&burst.Burst{Position: 10, Pulses: []burst.Pulse{{High: 1, Low: 2}}},
		&burst.Burst{Position: 20, Pulses: []burst.Pulse{{High: 3, Low: 4}}},
		&burst.Burst{Position: 30, Pulses: []burst.Pulse{{High: 5, Low: 6}}},
	)

	in := Input{Archive: filename}
	assert.True(t, in.Recorded())

	var positions []uint64
	err := in.Each(context.Background(), transport.Config{}, func(b *burst.Burst, _ time.Time, source string) error {
		positions = append(positions, b.Position)
		assert.True(t, strings.HasSuffix(source, ".burst"))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20, 30}, positions)

	positions = nil
	err = in.Each(context.Background(), transport.Config{}, func(b *burst.Burst, _ time.Time, _ string) error {
		positions = append(positions, b.Position)
		return errDone
	})
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, positions)
}

func TestInputMissing(t *testing.T) {
	in := Input{Archive: filepath.Join(t.TempDir(), "missing.tar")}
	err := in.Each(context.Background(), transport.Config{}, func(*burst.Burst, time.Time, string) error { return nil })
	assert.Error(t, err)
}

func TestDecodeArchive(t *testing.T) {
	msg := gen.Acurite592TXR(2, 0x321, false, 42, 67)
	filename := writeArchive(t, &burst.Burst{Position: 1000, Pulses: gen.AcuritePulses(msg, 3)})

	p, err := parse.NewParser("acurite")
	require.NoError(t, err)

	var reports []parse.Report
	err = Input{Archive: filename}.Each(context.Background(), transport.Config{}, func(b *burst.Burst, _ time.Time, _ string) error {
		reports = append(reports, p.Parse(b)...)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, reports, 1)
	assert.Equal(t, uint8(2), reports[0].Channel)
	assert.Equal(t, uint16(0x321), reports[0].ID)
	assert.Equal(t, 4.2, reports[0].Temperature)
}

func TestAnalyzePulseWidth(t *testing.T) {
	custom := bitstream.PulseWidth{
		Zero: bitstream.Range{Min: 100, Max: 200},
		One:  bitstream.Range{Min: 300, Max: 400},
		Low:  bitstream.AtLeast(100),
	}

	cases := []struct {
		name string
		want bitstream.PulseWidth
		ok   bool
	}{
		{"none", bitstream.PulseWidth{}, false},
		{"wh1080", bitstream.WH1080, true},
		{"ws2300", bitstream.WS2300, true},
		{"config", custom, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmd := AnalyzeCmd{PulseWidth: c.name}
			pw, ok := cmd.pulseWidth(custom)
			assert.Equal(t, c.ok, ok)
			assert.Equal(t, c.want, pw)
		})
	}
}

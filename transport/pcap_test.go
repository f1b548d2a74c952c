package transport

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bemasher/rtlook/burst"
)

func udpFrame(t *testing.T, dstPort uint16, payload []byte) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x01, 0x00, 0x5E, 0, 0, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      1,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(236, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: 50000, DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))

	return buf.Bytes()
}

func TestReadPcap(t *testing.T) {
	first, err := burst.Encode(testBurst(1000, 20))
	require.NoError(t, err)
	second, err := burst.Encode(testBurst(2000, 30))
	require.NoError(t, err)

	var file bytes.Buffer
	w := pcapgo.NewWriter(&file)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	start := time.Date(2015, 10, 11, 6, 0, 0, 0, time.UTC)
	for idx, frame := range [][]byte{
		udpFrame(t, 3636, first),
		udpFrame(t, 53, []byte("dns")),
		udpFrame(t, 3636, second),
	} {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(idx) * time.Second),
			CaptureLength: len(frame),
			Length:        len(frame),
		}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	pcapFile := file.Bytes()

	var positions []uint64
	var stamps []time.Time
	err = ReadPcap(bytes.NewReader(pcapFile), 3636, func(payload []byte, ts time.Time) error {
		b, err := burst.Decode(payload)
		require.NoError(t, err)
		positions = append(positions, b.Position)
		stamps = append(stamps, ts)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1000, 2000}, positions)
	require.Len(t, stamps, 2)
	assert.True(t, stamps[1].Equal(start.Add(2*time.Second)))

	var n int
	err = ReadPcap(bytes.NewReader(pcapFile), 0, func([]byte, time.Time) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	stop := assert.AnError
	err = ReadPcap(bytes.NewReader(pcapFile), 0, func([]byte, time.Time) error {
		return stop
	})
	assert.Equal(t, stop, err)
}

func TestReadPcapInvalid(t *testing.T) {
	err := ReadPcap(bytes.NewReader([]byte("definitely not pcap data")), 0, func([]byte, time.Time) error {
		return nil
	})
	assert.Error(t, err)

	err = ReadPcap(bytes.NewReader(nil), 0, func([]byte, time.Time) error {
		return nil
	})
	assert.Error(t, err)
}

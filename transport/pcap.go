package transport

import (
	"bufio"
	"encoding/binary"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
)

type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

const ngMagic = 0x0A0D0D0A

func openPcap(r io.Reader) (packetSource, error) {
	br := bufio.NewReader(r)

	magic, err := br.Peek(4)
	if err != nil {
		return nil, errors.Wrap(err, "read pcap header")
	}

	if binary.LittleEndian.Uint32(magic) == ngMagic {
		return pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	}
	return pcapgo.NewReader(br)
}

// ReadPcap calls fn with the payload and capture time of every UDP
// datagram addressed to port in a pcap or pcapng stream. Port 0 accepts
// any port. Iteration stops at the first error returned by fn.
func ReadPcap(r io.Reader, port int, fn func(payload []byte, ts time.Time) error) error {
	src, err := openPcap(r)
	if err != nil {
		return errors.Wrap(err, "open pcap")
	}

	decodeOptions := gopacket.DecodeOptions{Lazy: true, NoCopy: true}

	for {
		data, ci, err := src.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read packet")
		}

		packet := gopacket.NewPacket(data, src.LinkType(), decodeOptions)

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}

		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			continue
		}

		if port != 0 && int(udp.DstPort) != port {
			continue
		}

		if err := fn(udp.Payload, ci.Timestamp); err != nil {
			return err
		}
	}
}

// Package transport carries encoded bursts over local network multicast,
// one burst per datagram.
package transport

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/bemasher/rtlook/burst"
)

// MaxDatagram is the largest UDP payload deliverable over IPv4.
const MaxDatagram = 65507

var (
	ErrNotMulticast = errors.New("transport: not a multicast group")
	ErrInterface    = errors.New("transport: no such interface")
	ErrDatagramSize = errors.New("transport: burst exceeds datagram size")
)

type Config struct {
	Group     string `koanf:"group"`
	Port      int    `koanf:"port"`
	Interface string `koanf:"interface"` // interface name or one of its addresses
}

// Addr returns the group and port as a UDP address.
func (cfg Config) Addr() (*net.UDPAddr, error) {
	ip := net.ParseIP(cfg.Group)
	if ip == nil || !ip.IsMulticast() {
		return nil, errors.Wrapf(ErrNotMulticast, "%q", cfg.Group)
	}
	return &net.UDPAddr{IP: ip, Port: cfg.Port}, nil
}

func (cfg Config) String() string {
	return net.JoinHostPort(cfg.Group, strconv.Itoa(cfg.Port)) + "%" + cfg.Interface
}

// ResolveInterface finds a local interface by name or by one of its
// addresses. An empty name selects the system default and returns nil.
func ResolveInterface(name string) (*net.Interface, error) {
	if name == "" {
		return nil, nil
	}

	if ifi, err := net.InterfaceByName(name); err == nil {
		return ifi, nil
	}

	ip := net.ParseIP(name)
	if ip == nil {
		return nil, errors.Wrapf(ErrInterface, "%q", name)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, errors.Wrap(err, "list interfaces")
	}

	for idx := range ifaces {
		addrs, err := ifaces[idx].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var owned net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				owned = a.IP
			case *net.IPAddr:
				owned = a.IP
			}
			if owned.Equal(ip) {
				return &ifaces[idx], nil
			}
		}
	}

	return nil, errors.Wrapf(ErrInterface, "no interface owns %s", ip)
}

// PacketConn is the subset of net.PacketConn used by Sender and Listener.
type PacketConn interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, addr net.Addr) (int, error)
	Close() error
}

func network(ip net.IP) string {
	if ip.To4() != nil {
		return "udp4"
	}
	return "udp6"
}

// Sender writes bursts to the multicast group. It reuses one encode
// buffer and is not safe for concurrent use.
type Sender struct {
	conn PacketConn
	dst  net.Addr
	buf  []byte

	Sent  int
	Bytes int
}

// NewSender opens a socket whose multicast egress, loopback and scope are
// set from cfg. Loopback is enabled so a decoder on the same host
// receives the capture.
func NewSender(cfg Config) (*Sender, error) {
	dst, err := cfg.Addr()
	if err != nil {
		return nil, err
	}

	ifi, err := ResolveInterface(cfg.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket(network(dst.IP), ":0")
	if err != nil {
		return nil, errors.Wrap(err, "open sender")
	}

	if dst.IP.To4() != nil {
		p := ipv4.NewPacketConn(conn)
		if ifi != nil {
			err = p.SetMulticastInterface(ifi)
		}
		if err == nil {
			err = p.SetMulticastLoopback(true)
		}
		if err == nil {
			err = p.SetMulticastTTL(1)
		}
	} else {
		p := ipv6.NewPacketConn(conn)
		if ifi != nil {
			err = p.SetMulticastInterface(ifi)
		}
		if err == nil {
			err = p.SetMulticastLoopback(true)
		}
		if err == nil {
			err = p.SetMulticastHopLimit(1)
		}
	}
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "configure sender")
	}

	log.WithField("group", cfg.String()).Info("sending bursts")

	return NewSenderConn(conn, dst), nil
}

// NewSenderConn sends to dst over an already configured connection.
func NewSenderConn(conn PacketConn, dst net.Addr) *Sender {
	return &Sender{conn: conn, dst: dst}
}

// Send encodes b and writes it as one datagram.
func (s *Sender) Send(b *burst.Burst) (err error) {
	s.buf, err = burst.AppendEncode(s.buf[:0], b)
	if err != nil {
		return err
	}
	return s.Write(s.buf)
}

// Write sends an already encoded burst.
func (s *Sender) Write(data []byte) error {
	if len(data) > MaxDatagram {
		return errors.Wrapf(ErrDatagramSize, "%d bytes", len(data))
	}

	n, err := s.conn.WriteTo(data, s.dst)
	if err != nil {
		return errors.Wrap(err, "send burst")
	}

	s.Sent++
	s.Bytes += n
	return nil
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

// Listener receives bursts from the multicast group.
type Listener struct {
	conn PacketConn
	buf  []byte

	Received int
	Corrupt  int
}

// NewListener binds the group port and joins the group on the configured
// interface.
func NewListener(cfg Config) (*Listener, error) {
	group, err := cfg.Addr()
	if err != nil {
		return nil, err
	}

	ifi, err := ResolveInterface(cfg.Interface)
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket(network(group.IP), ":"+strconv.Itoa(cfg.Port))
	if err != nil {
		return nil, errors.Wrap(err, "open listener")
	}

	if group.IP.To4() != nil {
		err = ipv4.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group.IP})
	} else {
		err = ipv6.NewPacketConn(conn).JoinGroup(ifi, &net.UDPAddr{IP: group.IP})
	}
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "join %s", group.IP)
	}

	log.WithField("group", cfg.String()).Info("listening for bursts")

	return NewListenerConn(conn), nil
}

// NewListenerConn receives from an already bound connection.
func NewListenerConn(conn PacketConn) *Listener {
	return &Listener{conn: conn, buf: make([]byte, 1<<16)}
}

// Next blocks for the next datagram. A malformed datagram returns an
// error satisfying errors.Is(err, burst.ErrCorrupt) and the caller may
// keep reading. Any other error is fatal to the listener; after Close it
// wraps net.ErrClosed.
func (l *Listener) Next() (*burst.Burst, net.Addr, error) {
	n, addr, err := l.conn.ReadFrom(l.buf)
	if err != nil {
		return nil, addr, errors.Wrap(err, "receive burst")
	}
	l.Received++

	b, err := burst.Decode(l.buf[:n])
	if err != nil {
		l.Corrupt++
		return nil, addr, errors.Wrapf(err, "from %s", addr)
	}

	return b, addr, nil
}

// Close unblocks a pending Next.
func (l *Listener) Close() error {
	return l.conn.Close()
}

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


package main

import (
	"context"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/transport"
)

// errDone ends a burst source early without reporting a failure.
var errDone = errors.New("done")

// burstFunc receives each burst with the time it was received and where it
// came from. The burst is only valid for the duration of the call.
type burstFunc func(b *burst.Burst, received time.Time, source string) error

// Input selects where bursts are read from. With neither file given the
// multicast group is joined.
type Input struct {
	Pcap    string `help:"Read bursts from a packet capture instead of the network." type:"existingfile" xor:"input"`
	Archive string `help:"Read bursts from an archive written by the log command." type:"existingfile" xor:"input"`
}

func (in Input) Recorded() bool {
	return in.Pcap != "" || in.Archive != ""
}

func (in Input) Each(ctx context.Context, cfg transport.Config, fn burstFunc) (err error) {
	switch {
	case in.Pcap != "":
		err = eachPcap(in.Pcap, cfg.Port, fn)
	case in.Archive != "":
		err = eachArchive(ctx, in.Archive, fn)
	default:
		err = eachDatagram(ctx, cfg, fn)
	}

	if errors.Is(err, errDone) {
		return nil
	}
	return err
}

func eachDatagram(ctx context.Context, cfg transport.Config, fn burstFunc) error {
	l, err := transport.NewListener(cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	go func() {
		<-ctx.Done()
		l.Close()
	}()

	for {
		b, addr, err := l.Next()
		if errors.Is(err, burst.ErrCorrupt) {
			log.WithError(err).Warn("dropping datagram")
			continue
		}
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if err := fn(b, time.Now(), addr.String()); err != nil {
			return err
		}
	}
}

func eachPcap(filename string, port int, fn burstFunc) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "open capture")
	}
	defer f.Close()

	return transport.ReadPcap(f, port, func(payload []byte, ts time.Time) error {
		b, err := burst.Decode(payload)
		if err != nil {
			log.WithError(err).WithField("time", ts).Warn("dropping datagram")
			return nil
		}
		return fn(b, ts, filename)
	})
}

func eachArchive(ctx context.Context, filename string, fn burstFunc) error {
	f, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "open archive")
	}
	defer f.Close()

	r := burst.NewReader(f)
	for ctx.Err() == nil {
		b, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(b, time.Now(), r.Name()); err != nil {
			return err
		}
	}

	return nil
}

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
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/transport"
)

type ReplayCmd struct {
	Archive string  `arg:"" help:"Archive to replay." type:"existingfile"`
	Rate    float64 `help:"Pace bursts by position at this multiple of real time, 0 sends as fast as possible."`
}

func (c *ReplayCmd) Run(g *Globals) error {
	sender, err := transport.NewSender(g.cfg.Multicast)
	if err != nil {
		return err
	}
	defer sender.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pace := pacer{rate: c.Rate}
	err = eachArchive(ctx, c.Archive, func(b *burst.Burst, _ time.Time, _ string) error {
		if err := pace.wait(ctx, b.Position); err != nil {
			return errDone
		}
		return sender.Send(b)
	})
	if err == errDone {
		err = nil
	}

	log.WithFields(log.Fields{
		"archive": c.Archive,
		"sent":    sender.Sent,
		"bytes":   sender.Bytes,
	}).Info("replay finished")

	return err
}

// pacer delays each burst until its position, relative to the first
// burst, has elapsed in scaled wall time.
type pacer struct {
	rate  float64
	first uint64
	start time.Time
	now   func() time.Time
}

func (p *pacer) delay(position uint64) time.Duration {
	if p.now == nil {
		p.now = time.Now
	}
	if p.start.IsZero() {
		p.first, p.start = position, p.now()
		return 0
	}
	if position < p.first {
		return 0
	}

	target := time.Duration(float64(position-p.first) / p.rate)
	return target - p.now().Sub(p.start)
}

func (p *pacer) wait(ctx context.Context, position uint64) error {
	if p.rate <= 0 {
		return ctx.Err()
	}

	d := p.delay(position)
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

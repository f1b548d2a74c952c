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

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/parse"
)

type DecodeCmd struct {
	Input

	Protocol string  `help:"Protocol decoder, overrides decode.protocol."`
	Format   string  `help:"Output format: plain, csv, json or xml. Overrides decode.format."`
	Channel  UintMap `help:"Only show reports from these channels (comma separated)."`
	ID       UintMap `name:"id" help:"Only show reports from these sensor ids (comma separated)."`
	Unique   bool    `help:"Suppress reports identical to the previous one from the same sensor."`
	Single   bool    `help:"Exit after the first report."`
}

func (c *DecodeCmd) Run(g *Globals) error {
	cfg := g.cfg.Decode
	if c.Protocol != "" {
		cfg.Protocol = c.Protocol
	}
	if c.Format != "" {
		cfg.Format = c.Format
	}

	p, err := parse.NewParser(cfg.Protocol)
	if err != nil {
		return errors.Wrapf(err, "available: %v", parse.Parsers())
	}

	enc, err := NewEncoder(cfg.Format, os.Stdout, c.Recorded())
	if err != nil {
		return err
	}

	var fc parse.FilterChain
	if len(c.Channel) > 0 {
		fc.Add(ChannelFilter{c.Channel})
	}
	if len(c.ID) > 0 {
		fc.Add(IDFilter{c.ID})
	}
	if c.Unique || cfg.Unique {
		fc.Add(NewUniqueFilter())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var bursts, reports int
	err = c.Each(ctx, g.cfg.Multicast, func(b *burst.Burst, received time.Time, source string) error {
		bursts++
		for _, r := range p.Parse(b) {
			if !fc.Match(r) {
				continue
			}
			reports++

			msg := parse.LogMessage{
				Time:     received,
				Position: b.Offset(),
				Source:   source,
				Report:   r,
			}
			if err := enc.Encode(msg); err != nil {
				return errors.Wrap(err, "encode report")
			}

			if c.Single {
				return errDone
			}
		}
		return nil
	})

	log.WithFields(log.Fields{
		"protocol": p.Name(),
		"bursts":   bursts,
		"reports":  reports,
	}).Info("decode finished")

	return err
}

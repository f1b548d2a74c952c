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

	"github.com/bemasher/rtlook/bitstream"
	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/quantify"
)

type AnalyzeCmd struct {
	Input

	Tolerance  float64 `help:"Relative cluster growth tolerance, overrides analyze.tolerance."`
	PulseWidth string  `help:"Also decode each burst as pulse width modulated." enum:"none,wh1080,ws2300,config" default:"none"`
}

func (c *AnalyzeCmd) pulseWidth(cfg bitstream.PulseWidth) (bitstream.PulseWidth, bool) {
	switch c.PulseWidth {
	case "wh1080":
		return bitstream.WH1080, true
	case "ws2300":
		return bitstream.WS2300, true
	case "config":
		return cfg, true
	}
	return bitstream.PulseWidth{}, false
}

func (c *AnalyzeCmd) Run(g *Globals) error {
	tolerance := g.cfg.Analyze.Tolerance
	if c.Tolerance > 0 {
		tolerance = c.Tolerance
	}
	pw, decodePW := c.pulseWidth(g.cfg.Analyze.PulseWidth)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var bursts, decoded int
	err := c.Each(ctx, g.cfg.Multicast, func(b *burst.Burst, _ time.Time, source string) error {
		bursts++

		r := quantify.Analyze(b, tolerance)
		r.Log()
		if r.Err == nil {
			decoded++
		}

		if decodePW {
			entry := log.WithFields(log.Fields{"position": b.Position, "source": source})
			bits, err := pw.Decode(b.Pulses)
			if err != nil {
				entry.WithError(err).Info("pulse width decode failed")
			} else {
				entry.Info("pulse width: ", bits.Hex())
			}
		}
		return nil
	})

	log.WithFields(log.Fields{
		"bursts":     bursts,
		"manchester": decoded,
	}).Info("analyze finished")

	return err
}

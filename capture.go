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

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/pulse"
	"github.com/bemasher/rtlook/sdr"
	"github.com/bemasher/rtlook/transport"
)

type CaptureCmd struct {
	Archive  string        `help:"Also record bursts to a tar archive." type:"path"`
	Duration time.Duration `help:"Stop capturing after this long, 0 runs until interrupted."`
}

func (c *CaptureCmd) Run(g *Globals) error {
	cfg := g.cfg
	session := uuid.New().String()
	logger := log.WithField("session", session)

	dev, err := sdr.Open(cfg.Radio)
	if err != nil {
		return err
	}
	defer dev.Close()

	sender, err := transport.NewSender(cfg.Multicast)
	if err != nil {
		return err
	}
	defer sender.Close()

	var archive *burst.Writer
	if c.Archive != "" {
		f, err := os.Create(c.Archive)
		if err != nil {
			return errors.Wrap(err, "create archive")
		}
		defer f.Close()

		archive = burst.NewWriter(f, session)
		defer archive.Close()
	}

	assembler := burst.NewAssembler(cfg.Burst.Capacity, cfg.Burst.MinPulses, func(b *burst.Burst) {
		if err := sender.Send(b); err != nil {
			logger.WithError(err).Warn("send burst")
		}
		if archive != nil {
			if err := archive.Write(b); err != nil {
				logger.WithError(err).Warn("archive burst")
			}
		}
	})

	pulseCfg := cfg.PulseConfig()
	pulseCfg.Log()
	extractor := pulse.NewExtractor(pulseCfg, assembler)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if c.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.Duration)
		defer cancel()
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			dev.Stop()
		case <-done:
		}
	}()

	logger.WithFields(log.Fields{
		"driver":    cfg.Radio.Driver,
		"frequency": cfg.Radio.Frequency,
		"group":     cfg.Multicast.String(),
	}).Info("capturing")

	start := time.Now()
	err = dev.Run(extractor.Process)
	extractor.Flush()

	logger.WithFields(log.Fields{
		"elapsed":    time.Since(start).Round(time.Millisecond),
		"samples":    extractor.Samples(),
		"sent":       assembler.Sent,
		"discarded":  assembler.Discarded,
		"overflowed": assembler.Overflowed,
		"bytes":      sender.Bytes,
	}).Info("capture finished")

	return err
}

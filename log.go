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
)

type LogCmd struct {
	Output string `arg:"" help:"Archive to write." type:"path"`
}

func (c *LogCmd) Run(g *Globals) error {
	f, err := os.Create(c.Output)
	if err != nil {
		return errors.Wrap(err, "create archive")
	}
	defer f.Close()

	session := uuid.New().String()
	w := burst.NewWriter(f, session)
	defer w.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.WithFields(log.Fields{"session": session, "archive": c.Output})
	logger.Info("recording")

	var count int
	err = eachDatagram(ctx, g.cfg.Multicast, func(b *burst.Burst, _ time.Time, _ string) error {
		count++
		return w.Write(b)
	})

	logger.WithField("bursts", count).Info("recording finished")
	return err
}

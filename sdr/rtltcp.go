package sdr

import (
	"io"
	"math"
	"net"

	"github.com/bemasher/rtltcp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	Register("rtltcp", openRTLTCP)
}

// rtlTCP streams from an rtl_tcp server.
type rtlTCP struct {
	rtltcp.SDR
	stopper

	gain  float64
	block []byte
}

func openRTLTCP(cfg Config) (Device, error) {
	addr, err := net.ResolveTCPAddr("tcp", cfg.Address)
	if err != nil {
		return nil, errors.Wrap(err, "resolve rtl_tcp address")
	}

	d := &rtlTCP{
		gain:  cfg.Gain,
		block: make([]byte, cfg.blockSize()),
	}
	d.stopper.init()

	if err := d.Connect(addr); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"address":    addr,
		"tuner":      d.Info.Tuner,
		"gain_count": d.Info.GainCount,
	}).Info("connected to rtl_tcp")

	return d, nil
}

func (d *rtlTCP) Configure(frequency, sampleRate uint32) error {
	if err := d.SetCenterFreq(frequency); err != nil {
		return errors.Wrap(err, "set center frequency")
	}
	if err := d.SetSampleRate(sampleRate); err != nil {
		return errors.Wrap(err, "set sample rate")
	}

	if d.gain == 0 {
		if err := d.SetGainMode(true); err != nil {
			return errors.Wrap(err, "set gain mode")
		}
	} else {
		if err := d.SetGainMode(false); err != nil {
			return errors.Wrap(err, "set gain mode")
		}
		// Tenths of a dB.
		if err := d.SetGain(uint32(math.Round(d.gain * 10))); err != nil {
			return errors.Wrap(err, "set gain")
		}
	}

	log.WithFields(log.Fields{
		"frequency":   frequency,
		"sample_rate": sampleRate,
		"gain":        d.gain,
	}).Info("tuned")

	return nil
}

func (d *rtlTCP) Run(h Handler) error {
	for !d.Stopped() {
		if _, err := io.ReadFull(d.TCPConn, d.block); err != nil {
			if d.Stopped() {
				return nil
			}
			return errors.Wrap(err, "read samples")
		}
		h(d.block)
	}
	return nil
}

func (d *rtlTCP) Close() error {
	return d.TCPConn.Close()
}

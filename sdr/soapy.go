//go:build soapy

package sdr

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/pothosware/go-soapy-sdr/pkg/device"
	"github.com/pothosware/go-soapy-sdr/pkg/sdrlogger"
	log "github.com/sirupsen/logrus"
)

func init() {
	Register("soapy", openSoapy)
}

// soapy reads CU8 samples from any device SoapySDR supports.
type soapy struct {
	stopper

	dev    *device.SDRDevice
	stream *device.SDRStreamCU8
	gain   float64

	buffs [][]uint8
	flags []int
}

func openSoapy(cfg Config) (Device, error) {
	sdrlogger.SetLogLevel(sdrlogger.Error)

	args := map[string]string{}
	if cfg.Serial != "" {
		args["serial"] = cfg.Serial
	} else {
		args["index"] = strconv.Itoa(cfg.DeviceIndex)
	}

	dev, err := device.Make(args)
	if err != nil {
		return nil, errors.Wrap(err, "make soapy device")
	}

	d := &soapy{
		dev:   dev,
		gain:  cfg.Gain,
		buffs: [][]uint8{make([]uint8, cfg.blockSize())},
		flags: make([]int, 1),
	}
	d.stopper.init()
	return d, nil
}

func (d *soapy) Configure(frequency, sampleRate uint32) (err error) {
	if err = d.dev.SetSampleRate(device.DirectionRX, 0, float64(sampleRate)); err != nil {
		return errors.Wrap(err, "set sample rate")
	}
	if err = d.dev.SetFrequency(device.DirectionRX, 0, float64(frequency), nil); err != nil {
		return errors.Wrap(err, "set frequency")
	}

	if d.gain == 0 {
		err = d.dev.SetGainMode(device.DirectionRX, 0, true)
	} else if err = d.dev.SetGainMode(device.DirectionRX, 0, false); err == nil {
		err = d.dev.SetGain(device.DirectionRX, 0, d.gain)
	}
	if err != nil {
		return errors.Wrap(err, "set gain")
	}

	if d.stream, err = d.dev.SetupSDRStreamCU8(device.DirectionRX, []uint{0}, nil); err != nil {
		return errors.Wrap(err, "setup stream")
	}

	log.WithFields(log.Fields{
		"frequency":   frequency,
		"sample_rate": sampleRate,
		"gain":        d.gain,
	}).Info("tuned")

	return nil
}

func (d *soapy) Run(h Handler) error {
	if err := d.stream.Activate(0, 0, 0); err != nil {
		return errors.Wrap(err, "activate stream")
	}
	defer d.stream.Deactivate(0, 0)

	// Each complex element is two bytes.
	elems := uint(len(d.buffs[0]) / 2)
	const timeoutUs = 100000

	for !d.Stopped() {
		_, n, err := d.stream.Read(d.buffs, elems, d.flags, timeoutUs)
		if err != nil {
			return errors.Wrap(err, "read samples")
		}
		if n > 0 {
			h(d.buffs[0][:n*2])
		}
	}
	return nil
}

func (d *soapy) Close() error {
	if d.stream != nil {
		if err := d.stream.Close(); err != nil {
			return err
		}
	}
	return d.dev.Unmake()
}

package sdr

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	Register("file", openFile)
}

// fileSource replays raw interleaved u8 samples, as written by rtl_sdr.
type fileSource struct {
	stopper

	r      io.Reader
	closer io.Closer
	block  []byte
}

func openFile(cfg Config) (Device, error) {
	if cfg.File == "" || cfg.File == "-" {
		return NewReader(os.Stdin, cfg.blockSize()), nil
	}

	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, errors.Wrap(err, "open sample file")
	}

	d := NewReader(f, cfg.blockSize()).(*fileSource)
	d.closer = f
	return d, nil
}

// NewReader returns a device reading samples from r in blocks of
// blockSize bytes. The device does not close r.
func NewReader(r io.Reader, blockSize int) Device {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	d := &fileSource{
		r:     r,
		block: make([]byte, blockSize),
	}
	d.stopper.init()
	return d
}

// Configure only records the settings; the samples were taken already.
func (d *fileSource) Configure(frequency, sampleRate uint32) error {
	log.WithFields(log.Fields{
		"frequency":   frequency,
		"sample_rate": sampleRate,
	}).Debug("reading samples from file")
	return nil
}

// Run delivers whole blocks and then any short final block.
func (d *fileSource) Run(h Handler) error {
	for !d.Stopped() {
		n, err := io.ReadFull(d.r, d.block)
		if n > 0 {
			h(d.block[:n])
		}
		switch {
		case err == io.EOF || err == io.ErrUnexpectedEOF:
			return nil
		case err != nil:
			return errors.Wrap(err, "read samples")
		}
	}
	return nil
}

func (d *fileSource) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

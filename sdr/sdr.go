// Package sdr abstracts the sample sources a capture can run from.
package sdr

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

var ErrUnknownDriver = errors.New("sdr: unknown driver")

type Config struct {
	Driver      string  `koanf:"driver"`
	Address     string  `koanf:"address"` // rtl_tcp server
	DeviceIndex int     `koanf:"device_index"`
	Serial      string  `koanf:"serial"`
	File        string  `koanf:"file"` // raw interleaved u8 IQ, "-" for stdin
	Frequency   uint32  `koanf:"frequency"`
	SampleRate  uint32  `koanf:"sample_rate"`
	Gain        float64 `koanf:"gain"` // dB, 0 selects automatic gain
	BlockSize   int     `koanf:"block_size"`
}

// DefaultBlockSize is the read size when none is configured.
const DefaultBlockSize = 16384

func (cfg Config) blockSize() int {
	if cfg.BlockSize <= 0 {
		return DefaultBlockSize
	}
	return cfg.BlockSize
}

// Handler receives each block of interleaved I/Q bytes. The block is
// only valid for the duration of the call.
type Handler func(block []byte)

// Device is a tunable source of raw samples.
type Device interface {
	Configure(frequency, sampleRate uint32) error

	// Run delivers blocks to h until Stop is called, the source is
	// exhausted or an error occurs. Stop ends Run with a nil error.
	Run(h Handler) error

	// Stop may be called from any goroutine, more than once, and from a
	// signal handler. It neither blocks nor allocates.
	Stop()

	Close() error
}

type OpenFunc func(cfg Config) (Device, error)

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]OpenFunc)
)

func Register(driver string, fn OpenFunc) {
	driversMu.Lock()
	defer driversMu.Unlock()

	if fn == nil {
		panic("sdr: Register open func is nil")
	}
	if _, dup := drivers[driver]; dup {
		panic("sdr: Register called twice for driver " + driver)
	}
	drivers[driver] = fn
}

// Drivers returns the sorted names of registered drivers.
func Drivers() (names []string) {
	driversMu.RLock()
	defer driversMu.RUnlock()

	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return
}

// Open creates a device with the named driver and configures it.
func Open(cfg Config) (Device, error) {
	driversMu.RLock()
	fn, ok := drivers[cfg.Driver]
	driversMu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", cfg.Driver)
	}

	dev, err := fn(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", cfg.Driver)
	}

	if err := dev.Configure(cfg.Frequency, cfg.SampleRate); err != nil {
		dev.Close()
		return nil, errors.Wrapf(err, "configure %s", cfg.Driver)
	}

	return dev, nil
}

// stopper is the shared Stop implementation. The done channel is made up
// front so that Stop only swaps a flag and closes it.
type stopper struct {
	stopped atomic.Bool
	done    chan struct{}
}

func (s *stopper) init() {
	s.done = make(chan struct{})
}

func (s *stopper) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.done)
	}
}

func (s *stopper) Stopped() bool {
	return s.stopped.Load()
}

// Done is closed by the first call to Stop.
func (s *stopper) Done() <-chan struct{} {
	return s.done
}

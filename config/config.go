// Package config loads persistent settings from an HCL, YAML or TOML file
// and RTLOOK_ environment variables over built-in defaults.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/hcl"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/bemasher/rtlook/bitstream"
	"github.com/bemasher/rtlook/burst"
	"github.com/bemasher/rtlook/pulse"
	"github.com/bemasher/rtlook/sdr"
	"github.com/bemasher/rtlook/transport"
)

const EnvPrefix = "RTLOOK_"

var ErrInvalid = errors.New("config: invalid value")

// SearchPaths are tried in order when no file is named.
var SearchPaths = []string{
	"/etc/rtlook/config.hcl",
	"~/.config/rtlook/config.hcl",
	"./config.hcl",
}

type Pulse struct {
	Alpha         float64       `koanf:"alpha"`
	RiseThreshold float64       `koanf:"rise_threshold"`
	DropThreshold float64       `koanf:"drop_threshold"`
	MaxLow        time.Duration `koanf:"max_low"`
	PowerInterval uint64        `koanf:"power_interval"`
}

type Burst struct {
	Capacity  int `koanf:"capacity"`
	MinPulses int `koanf:"min_pulses"`
}

type Decode struct {
	Protocol string `koanf:"protocol"`
	Format   string `koanf:"format"`
	Unique   bool   `koanf:"unique"`
}

type Analyze struct {
	Tolerance  float64              `koanf:"tolerance"`
	PulseWidth bitstream.PulseWidth `koanf:"pulse_width"`
}

type Log struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type Config struct {
	Radio     sdr.Config       `koanf:"radio"`
	Pulse     Pulse            `koanf:"pulse"`
	Burst     Burst            `koanf:"burst"`
	Multicast transport.Config `koanf:"multicast"`
	Decode    Decode           `koanf:"decode"`
	Analyze   Analyze          `koanf:"analyze"`
	Log       Log              `koanf:"log"`
}

func Default() Config {
	p := pulse.NewConfig()

	return Config{
		Radio: sdr.Config{
			Driver:     "rtltcp",
			Address:    "127.0.0.1:1234",
			Frequency:  433910000,
			SampleRate: p.SampleRate,
			BlockSize:  sdr.DefaultBlockSize,
		},
		Pulse: Pulse{
			Alpha:         p.Alpha,
			RiseThreshold: p.RiseThreshold,
			DropThreshold: p.DropThreshold,
			MaxLow:        p.MaxLow,
			PowerInterval: p.PowerInterval,
		},
		Burst: Burst{
			Capacity:  burst.DefaultCapacity,
			MinPulses: burst.DefaultMinPulses,
		},
		Multicast: transport.Config{
			Group:     "236.0.0.1",
			Port:      3636,
			Interface: "lo",
		},
		Decode: Decode{
			Protocol: "acurite",
			Format:   "plain",
		},
		Analyze: Analyze{
			Tolerance:  0.2,
			PulseWidth: bitstream.WH1080,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// PulseConfig returns the detector settings for the configured radio.
func (cfg Config) PulseConfig() pulse.Config {
	return pulse.Config{
		SampleRate:    cfg.Radio.SampleRate,
		Alpha:         cfg.Pulse.Alpha,
		RiseThreshold: cfg.Pulse.RiseThreshold,
		DropThreshold: cfg.Pulse.DropThreshold,
		MaxLow:        cfg.Pulse.MaxLow,
		PowerInterval: cfg.Pulse.PowerInterval,
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Find returns the first existing file in SearchPaths, or "".
func Find() string {
	for _, path := range SearchPaths {
		path = expandHome(path)
		if _, err := os.Stat(path); err == nil {
			log.WithField("path", path).Info("found config file")
			return path
		}
	}
	log.Debug("no config file found, using defaults")
	return ""
}

func parserFor(path string) koanf.Parser {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML()
	case ".toml":
		return TOML()
	}
	return hcl.Parser(true)
}

// envKey maps RTLOOK_PULSE_RISE_THRESHOLD to pulse.rise_threshold.
func envKey(k, v string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(k, EnvPrefix))
	return strings.Replace(key, "_", ".", 1), v
}

// Load reads path, or the first file in SearchPaths when path is empty,
// then applies environment overrides and validates the result.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = Find()
	}

	if path != "" {
		if err := k.Load(file.Provider(expandHome(path)), parserFor(path)); err != nil {
			return Config{}, errors.Wrapf(err, "load %s", path)
		}
	}

	err := k.Load(env.Provider(".", env.Opt{
		Prefix:        EnvPrefix,
		TransformFunc: envKey,
	}), nil)
	if err != nil {
		return Config{}, errors.Wrap(err, "load environment")
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	return cfg, cfg.Validate()
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Validate reports the first setting outside its domain.
func (cfg Config) Validate() error {
	switch {
	case cfg.Radio.SampleRate == 0:
		return invalid("radio.sample_rate must be positive")
	case cfg.Pulse.Alpha <= 0 || cfg.Pulse.Alpha > 1:
		return invalid("pulse.alpha %v outside (0,1]", cfg.Pulse.Alpha)
	case cfg.Pulse.DropThreshold >= cfg.Pulse.RiseThreshold:
		return invalid("pulse.drop_threshold %v must be below rise_threshold %v",
			cfg.Pulse.DropThreshold, cfg.Pulse.RiseThreshold)
	case cfg.Pulse.MaxLow <= 0:
		return invalid("pulse.max_low must be positive")
	case cfg.Burst.Capacity <= 0:
		return invalid("burst.capacity must be positive")
	case cfg.Burst.MinPulses > cfg.Burst.Capacity:
		return invalid("burst.min_pulses %d exceeds capacity %d", cfg.Burst.MinPulses, cfg.Burst.Capacity)
	case cfg.Multicast.Port < 1 || cfg.Multicast.Port > 65535:
		return invalid("multicast.port %d outside 1..65535", cfg.Multicast.Port)
	case cfg.Analyze.Tolerance <= 0 || cfg.Analyze.Tolerance >= 1:
		return invalid("analyze.tolerance %v outside (0,1)", cfg.Analyze.Tolerance)
	}

	if _, err := cfg.Multicast.Addr(); err != nil {
		return invalid("multicast.group: %v", err)
	}

	if err := cfg.Analyze.PulseWidth.Validate(); err != nil {
		return invalid("analyze.pulse_width: %v", err)
	}

	switch cfg.Decode.Format {
	case "plain", "csv", "json", "xml":
	default:
		return invalid("decode.format %q", cfg.Decode.Format)
	}

	if _, err := log.ParseLevel(cfg.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format %q", cfg.Log.Format)
	}

	return nil
}

// Apply configures the standard logger.
func (l Log) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return invalid("log.level: %v", err)
	}
	log.SetLevel(level)

	switch l.Format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

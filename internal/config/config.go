// Package config loads the scene runtime configuration from YAML.
package config

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/ecsruntime/internal/core/observability/log"
)

type TransportKind string

const (
	TransportNone      TransportKind = "none"
	TransportWebSocket TransportKind = "websocket"
	TransportQUIC      TransportKind = "quic"
)

type Mode string

const (
	ModeDial   Mode = "dial"
	ModeListen Mode = "listen"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Scene     string          `yaml:"scene"`
	Log       LogConfig       `yaml:"log"`
	Transport TransportConfig `yaml:"transport"`
	Writer    WriterConfig    `yaml:"writer"`
	Applier   ApplierConfig   `yaml:"applier"`
	Redis     RedisConfig     `yaml:"redis"`
	Tick      time.Duration   `yaml:"tick"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TransportConfig struct {
	Kind         TransportKind `yaml:"kind"`
	Mode         Mode          `yaml:"mode"`
	Address      string        `yaml:"address"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	PingInterval time.Duration `yaml:"ping_interval"`
}

type WriterConfig struct {
	Deduplicate bool `yaml:"deduplicate"`
}

type ApplierConfig struct {
	QueueSize int  `yaml:"queue_size"`
	DropStale bool `yaml:"drop_stale"`
}

// RedisConfig enables snapshots when Address is set.
type RedisConfig struct {
	Address       string        `yaml:"address"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	KeyPrefix     string        `yaml:"key_prefix"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

func Default() *Config {
	return &Config{
		Scene: "default",
		Log:   LogConfig{Level: "info"},
		Transport: TransportConfig{
			Kind:         TransportNone,
			Mode:         ModeDial,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
		},
		Applier: ApplierConfig{QueueSize: 1024},
		Redis: RedisConfig{
			KeyPrefix:     "ECSRUNTIME:SCENE",
			FlushInterval: time.Second,
		},
		Tick: 50 * time.Millisecond,
	}
}

// LoadYAML decodes r over the defaults and validates the result.
func LoadYAML(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config")
	}
	defer f.Close()
	return LoadYAML(f)
}

func (c *Config) Validate() error {
	if c.Scene == "" {
		return errors.Wrap(ErrInvalidConfig, "scene must be set")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	switch c.Transport.Kind {
	case TransportNone:
	case TransportWebSocket, TransportQUIC:
		if c.Transport.Address == "" {
			return errors.Wrapf(ErrInvalidConfig, "transport %s needs an address", c.Transport.Kind)
		}
		if c.Transport.Mode != ModeDial && c.Transport.Mode != ModeListen {
			return errors.Wrapf(ErrInvalidConfig, "unknown transport mode %q", c.Transport.Mode)
		}
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown transport kind %q", c.Transport.Kind)
	}
	if c.Applier.QueueSize <= 0 {
		return errors.Wrap(ErrInvalidConfig, "applier queue_size must be positive")
	}
	if c.Tick <= 0 {
		return errors.Wrap(ErrInvalidConfig, "tick must be positive")
	}
	if c.Redis.Address != "" && c.Redis.FlushInterval <= 0 {
		return errors.Wrap(ErrInvalidConfig, "redis flush_interval must be positive")
	}
	return nil
}

// LogLevel returns the parsed log level. Call after Validate.
func (c *Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

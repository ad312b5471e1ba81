package cachecore

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config is the environment-driven configuration surface for a Cache,
// read with envconfig the way the pack's agent-demo config is (prefix
// CACHECORE_, e.g. CACHECORE_MAX_ITEMS). It exists so cmd/cached can
// wire a Cache from the process environment without hand-rolled flag
// parsing, matching the ambient-config layer spec.md's scope never
// mentions but a complete service always carries.
type Config struct {
	MaxItems         int64  `envconfig:"MAX_ITEMS" default:"100000"`
	MaxBytes         int64  `envconfig:"MAX_BYTES" default:"67108864"`
	Policy           string `envconfig:"POLICY" default:"lru"`
	ScavengeDelay    time.Duration `envconfig:"SCAVENGE_DELAY" default:"10s"`
	ScavengeInterval time.Duration `envconfig:"SCAVENGE_INTERVAL" default:"2s"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig reads a Config from the process environment under the
// CACHECORE_ prefix.
func LoadConfig() (Config, error) {
	var c Config
	if err := envconfig.Process("cachecore", &c); err != nil {
		return Config{}, fmt.Errorf("cachecore: loading config: %w", err)
	}
	return c, nil
}

// ParsedPolicy resolves the configured policy name to a Policy,
// defaulting to LRU on an unrecognized value.
func (c Config) ParsedPolicy() Policy {
	switch c.Policy {
	case "fifo":
		return FIFO
	case "second-chance", "secondchance":
		return SecondChance
	case "lru":
		return LRU
	default:
		return LRU
	}
}

// Logger builds the zap.Logger described by LogLevel.
func (c Config) Logger() (*zap.Logger, error) {
	var level zap.AtomicLevel
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("cachecore: parsing log level %q: %w", c.LogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

// Options converts c into the Option slice New expects.
func (c Config) Options(logger *zap.Logger) []Option {
	return []Option{
		WithCapacity(c.MaxItems),
		WithMemoryCapacity(c.MaxBytes),
		WithPolicy(c.ParsedPolicy()),
		WithLogger(logger),
		WithScavengeSchedule(c.ScavengeDelay, c.ScavengeInterval),
	}
}

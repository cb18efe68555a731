package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Limits bounds the engine's fixed tables. A zero value means unlimited;
// the defaults mirror the sizes the engine was designed around.
type Limits struct {
	MaxKeys         int `toml:"max_keys"`
	MaxKeyName      int `toml:"max_key_name"`
	MaxTransactions int `toml:"max_transactions"`
	MaxReadSet      int `toml:"max_read_set"`
}

// Driver configures the demonstration harness.
type Driver struct {
	// Scenarios selects which demo scenarios run, in order. Known names:
	// snapshot, deadlock, conflict. Empty means all.
	Scenarios []string `toml:"scenarios"`
	// StepDelayMS staggers the concurrent scenarios so their interleaving
	// is visible in the log output.
	StepDelayMS int `toml:"step_delay_ms"`
}

type Config struct {
	Limits Limits `toml:"limits"`
	Driver Driver `toml:"driver"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxKeys:         32,
		MaxKeyName:      16,
		MaxTransactions: 128,
		MaxReadSet:      32,
	}
}

func Default() Config {
	return Config{
		Limits: DefaultLimits(),
		Driver: Driver{
			Scenarios:   []string{"snapshot", "deadlock", "conflict"},
			StepDelayMS: 20,
		},
	}
}

// Load reads a TOML config file over the defaults, so omitted fields
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "load config %q", path)
	}
	return cfg, nil
}

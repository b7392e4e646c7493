// Package config loads the engine configuration from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sushant-115/sukunadb/pkg/logger"
	"github.com/sushant-115/sukunadb/pkg/telemetry"
)

// Duration wraps time.Duration so YAML values like "50ms" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Engine holds the storage and concurrency knobs.
type Engine struct {
	// DataFile is the database file path.
	DataFile string `yaml:"data_file"`
	// PoolSize is the number of buffer pool frames.
	PoolSize int `yaml:"pool_size"`
	// ReplacerK is the LRU-K history depth.
	ReplacerK int `yaml:"replacer_k"`
	// DeadlockInterval is how often the detector runs.
	DeadlockInterval Duration `yaml:"deadlock_interval"`
	// WriteLimitBytes throttles page writes when positive.
	WriteLimitBytes int64 `yaml:"write_limit_bytes"`
}

// Server holds the demo server's listen address.
type Server struct {
	Addr string `yaml:"addr"`
}

// Config is the root of the YAML file.
type Config struct {
	Engine    Engine           `yaml:"engine"`
	Server    Server           `yaml:"server"`
	Logging   logger.Config    `yaml:"logging"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// Default returns a usable single-node configuration.
func Default() Config {
	return Config{
		Engine: Engine{
			DataFile:         "data/sukunadb.db",
			PoolSize:         256,
			ReplacerK:        2,
			DeadlockInterval: Duration(50 * time.Millisecond),
		},
		Server:  Server{Addr: "localhost:9471"},
		Logging: logger.Config{Level: "info", Format: "console"},
		Telemetry: telemetry.Config{
			Enabled:        false,
			ServiceName:    "sukunadb",
			PrometheusPort: 2112,
		},
	}
}

// Load reads path and overlays it onto the defaults. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Engine.PoolSize <= 0 || cfg.Engine.ReplacerK <= 0 {
		return cfg, fmt.Errorf("pool_size and replacer_k must be positive")
	}
	return cfg, nil
}

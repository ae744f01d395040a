// Package cfg holds the YAML-backed configuration tree for the ambient
// concerns of this module: broker sizing, controller timeouts, checkout
// directory policy, and default revision-query behavior.
package cfg

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config is the top-level configuration tree: broker sizing, controller
// timeouts, and checkout policy.
type Config struct {
	Broker     BrokerConfig     `yaml:"broker"`
	Controller ControllerConfig `yaml:"controller"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
	Query      QueryConfig      `yaml:"query"`
}

// BrokerConfig sizes the Multi-Consumer Message Broker.
type BrokerConfig struct {
	MaxSize              int   `yaml:"max_size"`
	MemoryThresholdBytes int64 `yaml:"memory_threshold_bytes"`
}

// ControllerConfig carries the Event Controller's two timeout budgets.
type ControllerConfig struct {
	CompletionTimeout Duration `yaml:"completion_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
}

// Duration wraps time.Duration so it can be written in YAML as "60s"
// rather than a raw nanosecond integer.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrapf(err, "parse duration %q", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// CheckoutConfig carries the Checkout Manager's directory policy.
type CheckoutConfig struct {
	Template       string `yaml:"template"`
	KeepFiles      bool   `yaml:"keep_files"`
	ForceOverwrite bool   `yaml:"force_overwrite"`
}

// QueryConfig carries the default revision-query policy applied when a
// caller does not override it.
type QueryConfig struct {
	// MergeCommits defaults to included (true) when unset.
	MergeCommits *bool `yaml:"merge_commits,omitempty"`
}

// NewDefaultConfig returns the documented defaults: broker max_size
// 10 000 with memory threshold checks disabled, controller timeouts of
// 60s/30s, checkout files dropped on cleanup without overwriting existing
// directories, and merge commits included by default.
func NewDefaultConfig() *Config {
	mergeCommits := true
	return &Config{
		Broker: BrokerConfig{
			MaxSize:              10_000,
			MemoryThresholdBytes: 0,
		},
		Controller: ControllerConfig{
			CompletionTimeout: Duration(60 * time.Second),
			ShutdownTimeout:   Duration(30 * time.Second),
		},
		Checkout: CheckoutConfig{
			Template:       "",
			KeepFiles:      false,
			ForceOverwrite: false,
		},
		Query: QueryConfig{
			MergeCommits: &mergeCommits,
		},
	}
}

// Load reads and parses a YAML configuration file at path, applying
// defaults for any field the file leaves unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	return Parse(data)
}

// Parse unmarshals YAML config data into a Config, defaulting any field
// the document leaves unset.
func Parse(data []byte) (*Config, error) {
	c := NewDefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config YAML")
	}
	c.applyDefaults()
	return c, nil
}

// applyDefaults fills in zero-valued fields a partial YAML document left
// unset.
func (c *Config) applyDefaults() {
	if c.Broker.MaxSize <= 0 {
		c.Broker.MaxSize = 10_000
	}
	if c.Controller.CompletionTimeout <= 0 {
		c.Controller.CompletionTimeout = Duration(60 * time.Second)
	}
	if c.Controller.ShutdownTimeout <= 0 {
		c.Controller.ShutdownTimeout = Duration(30 * time.Second)
	}
	if c.Query.MergeCommits == nil {
		mergeCommits := true
		c.Query.MergeCommits = &mergeCommits
	}
}

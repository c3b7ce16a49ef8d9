// Package config decodes the Config surface (spec §6): tasks.pipeline,
// tasks.concurrency, tasks.cache.*, monorepo.ignoreChanges,
// monorepo.shared_affects_all, and test_selection.languages. The core
// never reads a config file itself — this package decodes an
// already-loaded, loosely-typed map the way config.config_file.go
// decodes turbo.json into TurboConfigJSON, tolerating JSONC via
// github.com/muhammadmuzzammil1998/jsonc and decoding into typed Go
// structs via github.com/mitchellh/mapstructure.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/forgecrew/launchcore/internal/cachestore"
	"github.com/forgecrew/launchcore/internal/taskspec"
	"github.com/mitchellh/mapstructure"
	"muzzammil.xyz/jsonc"
)

// CacheConfig is the tasks.cache.* config surface (spec §6, §4.H).
type CacheConfig struct {
	Dir         string `mapstructure:"dir"`
	MaxBytes    int64  `mapstructure:"max_bytes"`
	GracePeriod string `mapstructure:"grace_period"`
}

// TasksConfig is the tasks.* config surface (spec §6).
type TasksConfig struct {
	Concurrency int                      `mapstructure:"concurrency"`
	Pipeline    map[string]interface{}   `mapstructure:"pipeline"`
	Cache       CacheConfig              `mapstructure:"cache"`
}

// MonorepoConfig is the monorepo.* config surface (spec §6, §4.D).
type MonorepoConfig struct {
	IgnoreChanges    []string `mapstructure:"ignore_changes"`
	SharedAffectsAll bool     `mapstructure:"shared_affects_all"`
	// GlobalDependencies names files whose content planner.GlobalHash
	// covers (SPEC_FULL §3).
	GlobalDependencies []string `mapstructure:"global_dependencies"`
}

// TestSelectionConfig is the test_selection.* config surface (spec §6).
type TestSelectionConfig struct {
	Languages []string `mapstructure:"languages"`
}

// Config is the fully decoded, validated configuration object the core
// consumes (spec §1, §6: "the core consumes an already-validated
// config object").
type Config struct {
	Tasks         TasksConfig         `mapstructure:"tasks"`
	Monorepo      MonorepoConfig      `mapstructure:"monorepo"`
	TestSelection TestSelectionConfig `mapstructure:"test_selection"`
}

// Decode parses raw (JSONC-tolerant) bytes into a Config and decodes
// its embedded pipeline fragment into a taskspec.Pipeline.
func Decode(raw []byte) (*Config, taskspec.Pipeline, error) {
	var untyped map[string]interface{}
	if err := jsonc.Unmarshal(raw, &untyped); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	// monorepo.ignoreChanges is accepted as a spelling of monorepo.ignore_changes.
	if mono, ok := untyped["monorepo"].(map[string]interface{}); ok {
		if v, ok := mono["ignoreChanges"]; ok {
			if _, set := mono["ignore_changes"]; !set {
				mono["ignore_changes"] = v
			}
		}
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := decoder.Decode(untyped); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}

	var pipeline taskspec.Pipeline
	if cfg.Tasks.Pipeline != nil {
		pipelineRaw, err := reencode(cfg.Tasks.Pipeline)
		if err != nil {
			return nil, nil, err
		}
		pipeline, err = taskspec.DecodePipeline(pipelineRaw)
		if err != nil {
			return nil, nil, err
		}
	}

	applyDefaults(&cfg)
	return &cfg, pipeline, nil
}

// CacheGracePeriod parses Cache.GracePeriod, defaulting to 5s the way
// the scheduler's default kill-timeout does.
func (c *Config) CacheGracePeriod() time.Duration {
	if c.Tasks.Cache.GracePeriod == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(c.Tasks.Cache.GracePeriod)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// CacheMaxBytes resolves the configured sweep budget, defaulting to 5GB.
func (c *Config) CacheMaxBytes() int64 {
	if c.Tasks.Cache.MaxBytes > 0 {
		return c.Tasks.Cache.MaxBytes
	}
	return 5 << 30
}

// CacheDir resolves the configured cache directory, falling back to
// the XDG-based default (spec §4.H).
func (c *Config) CacheDir() string {
	if c.Tasks.Cache.Dir != "" {
		return c.Tasks.Cache.Dir
	}
	return cachestore.DefaultRoot()
}

func applyDefaults(cfg *Config) {
	if cfg.Tasks.Concurrency <= 0 {
		cfg.Tasks.Concurrency = 0 // scheduler interprets 0 as "CPU count"
	}
}

// reencode round-trips a decoded map back to JSON bytes so the nested
// pipeline fragment can be handed to taskspec.DecodePipeline, which
// owns its own jsonc/mapstructure decoding independently of the outer
// Config decode (spec §4.G materializes TaskSpecs from their own
// sub-document, keeping the two decoders decoupled).
func reencode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

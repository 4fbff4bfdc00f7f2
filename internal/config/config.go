// Package config loads stocksync settings.
//
// Sources are layered in this order, later ones winning:
//
//  1. Default()
//  2. an optional YAML file
//  3. STOCKSYNC_* environment variables
//
// The result is checked against the embedded CUE schema. Command line flags
// are applied by the caller, which validates again.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE []byte

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "STOCKSYNC"

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete runtime configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" json:"store"`
	Remote       RemoteConfig       `yaml:"remote" json:"remote"`
	Connectivity ConnectivityConfig `yaml:"connectivity" json:"connectivity"`
	Sync         SyncConfig         `yaml:"sync" json:"sync"`
	Status       StatusConfig       `yaml:"status" json:"status"`
	HTTP         HTTPConfig         `yaml:"http" json:"http"`
	Log          LogConfig          `yaml:"log" json:"log"`
}

// StoreConfig locates the queue database.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RemoteConfig describes the movement endpoint.
type RemoteConfig struct {
	BaseURL  string        `yaml:"base_url" json:"base_url" split_words:"true"`
	Token    string        `yaml:"token" json:"token"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	DeviceID string        `yaml:"device_id" json:"device_id" split_words:"true"`
}

// ConnectivityConfig selects how the online flag is fed.
type ConnectivityConfig struct {
	Mode         string        `yaml:"mode" json:"mode"`
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" split_words:"true"`
}

// SyncConfig tunes the drain loop.
type SyncConfig struct {
	Interval      time.Duration `yaml:"interval" json:"interval"`
	MaxRejections int           `yaml:"max_rejections" json:"max_rejections" split_words:"true"`
}

// StatusConfig tunes the status reporter.
type StatusConfig struct {
	Interval time.Duration `yaml:"interval" json:"interval"`
}

// HTTPConfig configures the local status surface. Empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Format string `yaml:"format" json:"format"`
	Level  string `yaml:"level" json:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{Path: "stocksync.db"},
		Remote: RemoteConfig{
			Timeout: 10 * time.Second,
		},
		Connectivity: ConnectivityConfig{
			Mode:         "auto",
			PollInterval: 2 * time.Second,
		},
		Sync: SyncConfig{
			Interval: 60 * time.Second,
		},
		Status: StatusConfig{Interval: 5 * time.Second},
		HTTP:   HTTPConfig{Addr: "127.0.0.1:8089"},
		Log:    LogConfig{Format: "text", Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("read environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg, rejecting unknown keys.
func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

// Validate checks cfg against the embedded CUE schema.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}
	return nil
}

// describe flattens CUE errors to "path: message" lines.
func describe(err error) string {
	var buf bytes.Buffer
	for i, e := range cueerrors.Errors(err) {
		if i > 0 {
			buf.WriteString("; ")
		}
		format, args := e.Msg()
		if path := e.Path(); len(path) > 0 {
			fmt.Fprintf(&buf, "%s: ", strings.Join(path, "."))
		}
		fmt.Fprintf(&buf, format, args...)
	}
	return buf.String()
}

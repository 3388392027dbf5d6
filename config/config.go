// Package config loads rowgate settings from YAML or CUE files and the
// environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rowgate/store"
	"github.com/roach88/rowgate/table"
)

// EnvPrefix prefixes every environment override, e.g. ROWGATE_DB_DSN.
const EnvPrefix = "ROWGATE_"

// Default database settings.
const (
	DefaultDriver = "sqlite3"
	DefaultDSN    = "rowgate.db"
)

// Config is the complete rowgate configuration.
type Config struct {
	Database Database `json:"database" yaml:"database" envPrefix:"DB_"`

	// Lang is the BCP 47 tag injected into entities; empty disables
	// language variants.
	Lang string `json:"lang,omitempty" yaml:"lang" env:"LANG"`

	// Tables maps table names to registered class names.
	Tables map[string]string `json:"tables,omitempty" yaml:"tables"`
}

// Database selects the driver and data source.
type Database struct {
	Driver string `json:"driver,omitempty" yaml:"driver" env:"DRIVER"`
	DSN    string `json:"dsn,omitempty"    yaml:"dsn"    env:"DSN"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database: Database{
			Driver: DefaultDriver,
			DSN:    DefaultDSN,
		},
	}
}

// Load reads the file at path (if any) over the defaults, applies ROWGATE_*
// environment overrides and validates the result.
//
// Files ending in .yaml, .yml or .json are decoded as YAML; .cue files are
// evaluated with CUE.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".yaml", ".yml", ".json":
			err = decodeYAML(data, cfg)
		case ".cue":
			err = decodeCUE(path, data, cfg)
		default:
			err = fmt.Errorf("unsupported config format %q", ext)
		}
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse YAML: %w", err)
	}
	return nil
}

func decodeCUE(path string, data []byte, cfg *Config) error {
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fmt.Errorf("compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validate CUE: %w", err)
	}
	if err := v.Decode(cfg); err != nil {
		return fmt.Errorf("decode CUE: %w", err)
	}
	return nil
}

// Validate checks the dsn, the driver and the language tag.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("invalid config: database dsn is empty")
	}
	if _, err := store.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Lang != "" {
		if err := table.ValidateLang(c.Lang); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// Settings returns the class resolution settings for managers.
func (c *Config) Settings() *table.Settings {
	return &table.Settings{Tables: c.Tables}
}

// Open opens the configured store.
func (c *Config) Open(opts ...store.Option) (*store.Store, error) {
	return store.Open(c.Database.Driver, c.Database.DSN, opts...)
}

// Package config handles typedbuilder.toml configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/typedbuilder/buffer"
	"github.com/chazu/typedbuilder/builder"
	"github.com/chazu/typedbuilder/forth"
)

// FileName is the configuration file looked for by Load and FindAndLoad.
const FileName = "typedbuilder.toml"

// Config represents a typedbuilder.toml file.
type Config struct {
	Buffers Buffers `toml:"buffers"`
	Machine Machine `toml:"machine"`
	Log     Log     `toml:"log"`
	Export  Export  `toml:"export"`

	// Dir is the directory containing the file (set at load time).
	Dir string `toml:"-"`
}

// Buffers sizes the machine's output buffers.
type Buffers struct {
	Initial int     `toml:"initial"`
	Resize  float64 `toml:"resize"`
}

// Machine configures the stack machine.
type Machine struct {
	StackDepth  int  `toml:"stack-depth"`
	ReturnDepth int  `toml:"return-depth"`
	Trace       bool `toml:"trace"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Export names a SQL destination for built arrays.
type Export struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
	Table  string `toml:"table"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	bo := buffer.DefaultOptions()
	if c.Buffers.Initial <= 0 {
		c.Buffers.Initial = bo.Initial
	}
	if c.Buffers.Resize <= 1 {
		c.Buffers.Resize = bo.Resize
	}
	mo := forth.DefaultOptions()
	if c.Machine.StackDepth <= 0 {
		c.Machine.StackDepth = mo.StackDepth
	}
	if c.Machine.ReturnDepth <= 0 {
		c.Machine.ReturnDepth = mo.ReturnDepth
	}
	if c.Export.Driver == "" {
		c.Export.Driver = "sqlite"
	}
	if c.Export.Table == "" {
		c.Export.Table = "array"
	}
}

// Load parses typedbuilder.toml from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	c.applyDefaults()
	return &c, nil
}

// FindAndLoad walks up from startDir to find typedbuilder.toml, then loads
// it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// MachineOptions converts the [buffers] and [machine] tables.
func (c *Config) MachineOptions() forth.Options {
	opts := forth.DefaultOptions()
	opts.Buffers.Initial = c.Buffers.Initial
	opts.Buffers.Resize = c.Buffers.Resize
	opts.StackDepth = c.Machine.StackDepth
	opts.ReturnDepth = c.Machine.ReturnDepth
	opts.Trace = c.Machine.Trace
	return opts
}

// BuilderOptions returns builder options that connect to a forth machine
// configured by MachineOptions.
func (c *Config) BuilderOptions() builder.Options {
	return builder.Options{Machine: forth.New(c.MachineOptions())}
}

// LogFile resolves the log file relative to the config directory; "" means
// stderr.
func (c *Config) LogFile() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) || c.Dir == "" {
		return c.Log.File
	}
	return filepath.Join(c.Dir, c.Log.File)
}

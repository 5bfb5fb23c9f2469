// Package config handles vmcall.toml runtime configuration.
package config

import (
	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"

	"github.com/wippyai/vmcall/errors"
	"github.com/wippyai/vmcall/hostmem"
)

// Config is the full runtime configuration.
type Config struct {
	Cvars  map[string]string `toml:"cvars"`
	Log    Log               `toml:"log"`
	Host   Host              `toml:"host"`
	Engine Engine            `toml:"engine"`
	Bridge Bridge            `toml:"bridge"`
}

// Engine configures guest loading and the system-call import.
type Engine struct {
	ImportModule     string `toml:"import_module"`
	ImportName       string `toml:"import_name"`
	EntryPoint       string `toml:"entry_point"`
	MemoryLimitPages uint32 `toml:"memory_limit_pages"`
}

// Bridge configures the dispatcher. The render trace is always installed;
// TraceRender only controls whether it logs each scene.
type Bridge struct {
	UncheckedPointers bool `toml:"unchecked_pointers"`
	TraceRender       bool `toml:"trace_render"`
}

// Host configures the reference host.
type Host struct {
	FSRoot      string `toml:"fs_root"`
	CvarArchive string `toml:"cvar_archive"`
}

// Log configures the process logger.
type Log struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Engine: Engine{
			ImportModule:     "env",
			ImportName:       "syscall",
			EntryPoint:       "vmMain",
			MemoryLimitPages: 256,
		},
		Bridge: Bridge{TraceRender: true},
		Host:   Host{FSRoot: "."},
		Log:    Log{Level: "info"},
		Cvars:  map[string]string{},
	}
}

// Load parses the file at path on the OS filesystem.
func Load(path string) (*Config, error) {
	return LoadFS(afero.NewOsFs(), path)
}

// LoadFS parses the file at path on fs. Keys absent from the file keep their
// default values.
func LoadFS(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Config("cannot read "+path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML data on top of Default. name labels errors.
func Parse(data []byte, name string) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.Config("parse error in "+name, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(undecoded[0].String()).
			Detail("unknown key %q in %s", undecoded[0].String(), name).
			Build()
	}
	if c.Cvars == nil {
		c.Cvars = map[string]string{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Engine.ImportModule == "" || c.Engine.ImportName == "" {
		return errors.InvalidInput(errors.PhaseConfig, "engine.import_module and engine.import_name are required")
	}
	if c.Engine.EntryPoint == "" {
		return errors.InvalidInput(errors.PhaseConfig, "engine.entry_point is required")
	}
	if c.Engine.MemoryLimitPages == 0 || c.Engine.MemoryLimitPages > hostmem.MaxPages {
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Engine.MemoryLimitPages).
			Detail("engine.memory_limit_pages must be in [1, %d], got %d", hostmem.MaxPages, c.Engine.MemoryLimitPages).
			Build()
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Value(c.Log.Level).
			Detail("unknown log level %q", c.Log.Level).
			Build()
	}
	return nil
}

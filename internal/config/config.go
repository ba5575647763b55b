// Package config loads the harvester's YAML configuration. Anything the file
// leaves out is taken from Default, and a few environment variables override
// the file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"linkedin-harvester/internal/browser"
	"linkedin-harvester/internal/credentials"
	"linkedin-harvester/internal/harvest"
	"linkedin-harvester/internal/schema"
)

const (
	EnvBrowser         = "HARVESTER_BROWSER"
	EnvHistory         = "HARVESTER_HISTORY"
	EnvKeyringService  = "HARVESTER_KEYRING_SERVICE"
	EnvRemoteURL       = "HARVESTER_REMOTE_URL"
	DefaultBackend     = "phantomjs"
	DefaultSchemaName  = "full"
	DefaultOutputDir   = "data"
	defaultEnvFilename = ".env"
)

type SchemaConfig struct {
	// Preset names a built in schema. Fields wins when both are set.
	Preset string        `yaml:"preset,omitempty"`
	Fields schema.Schema `yaml:"fields,omitempty"`
}

type BrowserConfig struct {
	Backend   string `yaml:"backend"`
	Headless  *bool  `yaml:"headless,omitempty"`
	ExecPath  string `yaml:"exec_path,omitempty"`
	RemoteURL string `yaml:"remote_url,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty"`
	// Settle is a pointer so that an explicit "settle: 0s" survives the
	// defaults merge.
	Settle        *time.Duration `yaml:"settle,omitempty"`
	ActionTimeout time.Duration  `yaml:"action_timeout,omitempty"`
}

type OutputConfig struct {
	Dir string `yaml:"dir"`
	BOM bool   `yaml:"bom"`
}

type HistoryConfig struct {
	// DSN is a sqlite file path or a mongodb:// URI. Empty disables history.
	DSN string `yaml:"dsn,omitempty"`
}

type KeyringConfig struct {
	Service string `yaml:"service"`
}

type Config struct {
	Site    harvest.Site  `yaml:"site"`
	Schema  SchemaConfig  `yaml:"schema"`
	Browser BrowserConfig `yaml:"browser"`
	Output  OutputConfig  `yaml:"output"`
	History HistoryConfig `yaml:"history"`
	Keyring KeyringConfig `yaml:"keyring"`
}

func Default() Config {
	opts := browser.DefaultOptions()
	headless, settle := opts.Headless, opts.Settle
	return Config{
		Site:   harvest.DefaultSite(),
		Schema: SchemaConfig{Preset: DefaultSchemaName},
		Browser: BrowserConfig{
			Backend:       DefaultBackend,
			Headless:      &headless,
			UserAgent:     opts.UserAgent,
			Settle:        &settle,
			ActionTimeout: opts.ActionTimeout,
		},
		Output:  OutputConfig{Dir: DefaultOutputDir},
		Keyring: KeyringConfig{Service: credentials.DefaultService},
	}
}

// LoadEnv reads .env from the working directory when there is one.
// Variables already set in the environment win.
func LoadEnv() {
	err := godotenv.Load(defaultEnvFilename)
	switch {
	case err == nil:
		slog.Debug("loaded environment file", "path", defaultEnvFilename)
	case errors.Is(err, os.ErrNotExist):
	default:
		slog.Warn("reading environment file", "path", defaultEnvFilename, "err", err)
	}
}

// Load reads the config file at path, fills the gaps from Default and
// applies the environment overrides. An empty path means defaults only.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		slog.Debug("config file loaded", "path", path)
	}
	// without dereferencing, an explicit "headless: false" is kept
	if err := mergo.Merge(&cfg, Default(), mergo.WithoutDereference); err != nil {
		return Config{}, fmt.Errorf("merge config defaults: %w", err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		name string
		dst  *string
	}{
		{EnvBrowser, &c.Browser.Backend},
		{EnvHistory, &c.History.DSN},
		{EnvKeyringService, &c.Keyring.Service},
		{EnvRemoteURL, &c.Browser.RemoteURL},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.name); ok && v != "" {
			*o.dst = v
		}
	}
}

// ResolveSchema returns the configured field list, or the named preset.
func (c Config) ResolveSchema() (schema.Schema, error) {
	if len(c.Schema.Fields) > 0 {
		s := c.Schema.Fields.Normalize()
		return s, s.Validate()
	}
	name := c.Schema.Preset
	if name == "" {
		name = DefaultSchemaName
	}
	return schema.Preset(name)
}

func (c Config) BrowserOptions() browser.Options {
	opts := browser.DefaultOptions()
	if c.Browser.Headless != nil {
		opts.Headless = *c.Browser.Headless
	}
	opts.ExecPath = c.Browser.ExecPath
	opts.RemoteURL = c.Browser.RemoteURL
	if c.Browser.UserAgent != "" {
		opts.UserAgent = c.Browser.UserAgent
	}
	if c.Browser.Settle != nil && *c.Browser.Settle >= 0 {
		opts.Settle = *c.Browser.Settle
	}
	if c.Browser.ActionTimeout > 0 {
		opts.ActionTimeout = c.Browser.ActionTimeout
	}
	return opts
}

// Package config loads runtime configuration for the gateway from a TOML
// file, with environment variable overrides taking precedence.
//
// The file path is read from LLM_MUX_CONFIG, defaulting to ./config.toml.
// A missing or malformed file is not fatal: Load returns a warning for the
// caller to log, together with a Config with an empty provider set and the
// default server bind, so the server still starts but rejects every
// provider as unknown.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	envConfigPath  = "LLM_MUX_CONFIG"
	defaultPath    = "./config.toml"
	defaultHost    = "127.0.0.1"
	defaultPort    = 3000
	defaultTimeout = 120
	dotEnvPath     = ".env"
)

// ModelSettings caps admission for one (provider, model) pair. A zero RPS,
// RPM or Concurrent means that dimension is unbounded; a zero TimeoutSecs is
// replaced by the 120s default in Load.
type ModelSettings struct {
	Name        string `mapstructure:"name"`
	RPS         int    `mapstructure:"rps"`
	RPM         int    `mapstructure:"rpm"`
	Concurrent  int    `mapstructure:"concurrent"`
	TimeoutSecs uint64 `mapstructure:"timeout_secs"`
}

// ProviderSettings configures one provider's auto-model caps plus its roster
// of explicitly configured models.
type ProviderSettings struct {
	Name              string          `mapstructure:"name"`
	SupportsAutoModel bool            `mapstructure:"supports_auto_model"`
	RPS               int             `mapstructure:"rps"`
	RPM               int             `mapstructure:"rpm"`
	Concurrent        int             `mapstructure:"concurrent"`
	TimeoutSecs       uint64          `mapstructure:"timeout_secs"`
	Models            []ModelSettings `mapstructure:"models"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Config is the top-level configuration container.
type Config struct {
	Server    ServerSettings     `mapstructure:"server"`
	Providers []ProviderSettings `mapstructure:"providers"`
	LogLevel  string             `mapstructure:"-"`
}

// defaultConfig is returned, alongside a logged warning, whenever the config
// file is missing or cannot be parsed.
func defaultConfig() *Config {
	return &Config{
		Server:   ServerSettings{Host: defaultHost, Port: defaultPort},
		LogLevel: "info",
	}
}

// Load reads configuration from the TOML file named by LLM_MUX_CONFIG (or
// ./config.toml), applying environment variable overrides on top (e.g.
// SERVER_PORT). warning is non-empty when the file could not be read or
// parsed, in which case cfg falls back to an empty provider list.
func Load() (cfg *Config, warning string) {
	if err := loadDotEnv(dotEnvPath); err != nil {
		return defaultConfig(), err.Error()
	}

	path := os.Getenv(envConfigPath)
	if path == "" {
		path = defaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.host", defaultHost)
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return defaultConfig(), "failed to read config file " + path + ": " + err.Error()
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return defaultConfig(), "failed to parse config file " + path + ": " + err.Error()
	}
	c.LogLevel = strings.ToLower(v.GetString("log_level"))

	for i := range c.Providers {
		p := &c.Providers[i]
		if !hasSupportsAutoModelKey(v, p.Name) {
			p.SupportsAutoModel = true
		}
		if p.TimeoutSecs == 0 {
			p.TimeoutSecs = defaultTimeout
		}
		for j := range p.Models {
			if p.Models[j].TimeoutSecs == 0 {
				p.Models[j].TimeoutSecs = defaultTimeout
			}
		}
	}

	return &c, ""
}

// loadDotEnv populates process env vars from a .env file when present, so
// LLM_MUX_CONFIG and any SERVER_* overrides can be set without exporting
// them in the shell. A missing file is not an error; everything else is.
func loadDotEnv(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config: %s is a directory, expected a file", path)
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", path, err)
	}
	return nil
}

// hasSupportsAutoModelKey reports whether the TOML actually set
// supports_auto_model for the first [[providers]] entry with the given name,
// since viper's Unmarshal cannot distinguish an explicit "false" from an
// absent key once decoded into a bool field.
func hasSupportsAutoModelKey(v *viper.Viper, name string) bool {
	raw, ok := v.Get("providers").([]any)
	if !ok {
		return false
	}
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if n, _ := m["name"].(string); n != name {
			continue
		}
		_, present := m["supports_auto_model"]
		return present
	}
	return false
}

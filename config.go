package scenesync

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config controls adaptor eligibility, sweeping and logging.
type Config struct {
	// TemplateTypes are node types whose descendants are never mirrored.
	TemplateTypes []string `yaml:"templateTypes"`
	// SettingsTypes are singleton node types that are never mirrored.
	SettingsTypes []string `yaml:"settingsTypes"`
	LogLevel      string   `yaml:"logLevel"`
	// SweepOnlyOnChange restricts resource sweeping to passes in which a node
	// changed. By default a pass that released an adaptor sweeps too.
	SweepOnlyOnChange bool `yaml:"sweepOnlyOnChange"`

	Logger *slog.Logger `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		TemplateTypes: []string{"Prefab"},
		SettingsTypes: []string{"ProjectSettings"},
		LogLevel:      "info",
	}
}

// LoadConfig reads a YAML config file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if _, err := cfg.Level(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c Config) isTemplate(typ string) bool {
	return slices.Contains(c.TemplateTypes, typ)
}

func (c Config) isSettings(typ string) bool {
	return slices.Contains(c.SettingsTypes, typ)
}

package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Settings are the process settings that can come from the environment.
// Command-line flags take precedence over them.
type Settings struct {
	ConfigPath string `env:"PIOW_CONFIG"`
	LogLevel   string `env:"PIOW_LOG_LEVEL"  envDefault:"warn"`
	LogFormat  string `env:"PIOW_LOG_FORMAT" envDefault:"text"`
	LogFile    string `env:"PIOW_LOG_FILE"`
	Syslog     bool   `env:"PIOW_SYSLOG"`
	Watch      bool   `env:"PIOW_WATCH"      envDefault:"true"`
}

// ParseEnv loads Settings from environment variables.
func ParseEnv() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

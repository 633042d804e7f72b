package app

import "errors"

// Config holds everything an App instance needs to run one pass.
type Config struct {
	ScenarioPath string

	LogFormat string
	LogLevel  string
}

// NewConfig validates a config value.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ScenarioPath == "" {
		return nil, errors.New("ScenarioPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}

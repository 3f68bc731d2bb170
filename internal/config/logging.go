package config

// LoggingConfig controls the zap-backed structured logger (internal/logging).
type LoggingConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
	Debug bool   `yaml:"debug"` // switches to a human-readable development encoder
}

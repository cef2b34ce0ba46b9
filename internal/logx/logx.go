// Package logx builds the structured logger shared by the spuff controller
// and the spuffd agent: level and encoding come from the environment,
// production JSON by default, human-readable console output in development.
package logx

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the handful of logging knobs either binary exposes.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoding, human timestamps
}

// ConfigFromEnv reads LOG_LEVEL and LOG_DEVELOPMENT from the process
// environment.
func ConfigFromEnv() Config {
	return Config{
		Level:       envOr("LOG_LEVEL", "info"),
		Development: strings.EqualFold(os.Getenv("LOG_DEVELOPMENT"), "true"),
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// New builds a *zap.Logger for component (e.g. "spuff", "spuffd"), tagged
// onto every entry so multi-binary logs are easy to filter.
func New(component string, cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapCfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	}

	level := zap.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zap.DebugLevel
	case "warn", "warning":
		level = zap.WarnLevel
	case "error":
		level = zap.ErrorLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("component", component)), nil
}

// RedactToken returns a short, safe-to-log stand-in for a bearer token or
// API credential: never the value itself, just enough to tell entries
// apart in a log stream.
func RedactToken(token string) string {
	if token == "" {
		return "(empty)"
	}
	if len(token) <= 6 {
		return "***"
	}
	return token[:3] + "..." + token[len(token)-3:]
}

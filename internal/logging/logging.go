// Package logging builds the zap loggers used by the command line tools.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New returns a logger for mode ("dev", "prod" or "none") at level. Outputs
// replace stderr when given, which the terminal UI needs.
func New(mode, level string, outputs ...string) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "dev", "development":
		cfg = zap.NewDevelopmentConfig()
	case "", "prod", "production":
		cfg = zap.NewProductionConfig()
	case "none", "off":
		return zap.NewNop(), nil
	default:
		return nil, fmt.Errorf("unknown log mode %q (expected dev|prod|none)", mode)
	}
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = lvl
	}
	if len(outputs) > 0 {
		cfg.OutputPaths = outputs
		cfg.ErrorOutputPaths = outputs
	}
	return cfg.Build()
}

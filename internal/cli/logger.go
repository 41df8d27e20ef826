package cli

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newLogger builds a console logger on stderr. verbose forces debug level.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, err
		}
	}
	cfg := zap.NewDevelopmentConfig()
	if verbose {
		lvl = zapcore.DebugLevel
	} else {
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

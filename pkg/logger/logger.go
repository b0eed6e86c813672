package logger

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger: JSON to stderr with bracketed levels and
// second-resolution timestamps. Level accepts zap's textual levels
// ("debug", "info", "warn", "error"); anything unparseable falls back to info.
func New(level string) *zap.SugaredLogger {
	lvl := zap.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}

	cfg := zap.Config{
		Encoding:    "json",
		Level:       zap.NewAtomicLevelAt(lvl),
		OutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:   "message",
			TimeKey:      "time",
			LevelKey:     "level",
			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,
			EncodeLevel:  bracketLevelEncoder,
			EncodeTime:   timeEncoder,
		},
	}

	log, err := cfg.Build()
	if err != nil {
		// zap.Config.Build only fails on invalid output paths; stderr is
		// always available, but keep a usable logger either way.
		return zap.NewNop().Sugar()
	}
	return log.Sugar()
}

// NewNop returns a no-op logger for tests.
func NewNop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}

func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

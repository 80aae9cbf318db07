package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type options struct {
	console bool
	process string
}

// Option tunes New.
type Option func(*options)

// WithoutConsole drops the stderr core. The TUI owns the terminal, so
// bosstui logs to its file only.
func WithoutConsole() Option {
	return func(o *options) { o.console = false }
}

// WithProcess tags every entry with the binary that wrote it; bossd and
// bosstui logs of one session sit side by side.
func WithProcess(name string) Option {
	return func(o *options) { o.process = name }
}

// New creates a zap logger writing JSON to logPath and, unless
// WithoutConsole is given, console lines to stderr. Session name and PID
// are initial fields. level is a zap level name; unknown values mean info.
func New(logPath, sessionName, level string, opts ...Option) (*zap.Logger, error) {
	o := options{console: true}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	lvl := zap.NewAtomicLevelAt(ParseLevel(level))
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(file), lvl),
	}
	if o.console {
		consoleCfg := encoderCfg
		consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), lvl))
	}

	fields := []zap.Field{
		zap.String("session", sessionName),
		zap.Int("pid", os.Getpid()),
	}
	if o.process != "" {
		fields = append(fields, zap.String("process", o.process))
	}
	return zap.New(zapcore.NewTee(cores...), zap.Fields(fields...), zap.AddCaller()), nil
}

// ParseLevel maps a level name onto a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// zapLogger adapts *zap.SugaredLogger to the Logger interface.
type zapLogger struct {
	s *zap.SugaredLogger
}

// Options configures the production logger.
type Options struct {
	// Level is one of "trace", "debug", "info", "warn", "error".
	Level string
	// FilePath, if non-empty, rotates logs through lumberjack instead of
	// (or in addition to) stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    bool
}

// New builds a zap-backed Logger from Options.
func New(opts Options) (Logger, error) {
	level := parseLevel(opts.Level)

	var cores []zapcore.Core
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.Console || opts.FilePath == "" {
		consoleCfg := encoderCfg
		consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)
		cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level))
	}

	if opts.FilePath != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    nonZero(opts.MaxSizeMB, 100),
			MaxBackups: nonZero(opts.MaxBackups, 5),
			MaxAge:     nonZero(opts.MaxAgeDays, 28),
		}
		jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(rotator), level))
	}

	core := zapcore.NewTee(cores...)
	zl := zap.New(core, zap.AddCaller())
	return &zapLogger{s: zl.Sugar()}, nil
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "crit":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{s: l.s.With(fields...)}
}

func (l *zapLogger) Trace(msg string, fields ...interface{}) { l.s.Debugw(msg, fields...) }
func (l *zapLogger) Debug(msg string, fields ...interface{}) { l.s.Debugw(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...interface{})  { l.s.Infow(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...interface{})  { l.s.Warnw(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...interface{}) { l.s.Errorw(msg, fields...) }
func (l *zapLogger) Crit(msg string, fields ...interface{})  { l.s.Errorw(msg, fields...) }

func (l *zapLogger) Sync() error { return l.s.Sync() }

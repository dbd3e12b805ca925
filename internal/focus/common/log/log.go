package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global Logger = newZapLogger(false, zapcore.InfoLevel) // default to prod/info

// SetLogger replaces the global logger instance.
// Useful for testing or overriding behavior.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the current global logger instance.
func GetLogger() Logger {
	return global
}

// Logger defines the focusgate logging interface.
// Fields are attached as structured key/value pairs; a nil map is allowed.
type Logger interface {
	Info(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Debug(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)
}

// Configure sets up the global logger based on env and level.
// Any env other than "prod" selects the colored console encoder.
func Configure(env, level string) error {
	isDev := env != "prod"

	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	global = newZapLogger(isDev, lvl)
	return nil
}

// Info logs at info level using the global logger.
func Info(fields map[string]any, msg string) {
	global.Info(fields, msg)
}

// Error logs at error level using the global logger.
func Error(fields map[string]any, msg string) {
	global.Error(fields, msg)
}

// Debug logs at debug level using the global logger.
func Debug(fields map[string]any, msg string) {
	global.Debug(fields, msg)
}

// Warn logs at warn level using the global logger.
func Warn(fields map[string]any, msg string) {
	global.Warn(fields, msg)
}

// Fatal logs at fatal level using the global logger.
func Fatal(fields map[string]any, msg string) {
	global.Fatal(fields, msg)
}

// zapLogger adapts a zap core to the map-of-fields Logger interface.
type zapLogger struct {
	base *zap.Logger
}

// zapConfig builds the encoder settings. Caller annotation is off: entries
// pass through a varying number of wrapper frames before reaching zap.
func zapConfig(dev bool, level zapcore.Level) zap.Config {
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.DisableCaller = true
	cfg.DisableStacktrace = !dev
	return cfg
}

func newZapLogger(dev bool, level zapcore.Level, opts ...zap.Option) Logger {
	logger, err := zapConfig(dev, level).Build(opts...)
	if err != nil {
		logger = zap.NewNop()
	}
	return &zapLogger{base: logger}
}

// write converts fields only when the level is enabled.
func (l *zapLogger) write(level zapcore.Level, fields map[string]any, msg string) {
	ce := l.base.Check(level, msg)
	if ce == nil {
		return
	}
	ce.Write(zapFields(fields)...)
}

func (l *zapLogger) Info(fields map[string]any, msg string)  { l.write(zapcore.InfoLevel, fields, msg) }
func (l *zapLogger) Error(fields map[string]any, msg string) { l.write(zapcore.ErrorLevel, fields, msg) }
func (l *zapLogger) Debug(fields map[string]any, msg string) { l.write(zapcore.DebugLevel, fields, msg) }
func (l *zapLogger) Warn(fields map[string]any, msg string)  { l.write(zapcore.WarnLevel, fields, msg) }
func (l *zapLogger) Panic(fields map[string]any, msg string) { l.write(zapcore.PanicLevel, fields, msg) }
func (l *zapLogger) Fatal(fields map[string]any, msg string) { l.write(zapcore.FatalLevel, fields, msg) }

// zapFields keeps errors typed so zap renders them under the "error" shape.
func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case error:
			fields = append(fields, zap.NamedError(k, val))
		case fmt.Stringer:
			fields = append(fields, zap.Stringer(k, val))
		default:
			fields = append(fields, zap.Any(k, v))
		}
	}
	return fields
}

// componentLogger stamps a fixed set of fields onto every entry before
// delegating. Per-call fields win on key collision.
type componentLogger struct {
	next   Logger
	fields map[string]any
}

// With returns a Logger that adds fields to every message logged through it.
// A nil base falls back to the global logger at call time.
func With(base Logger, fields map[string]any) Logger {
	return &componentLogger{next: base, fields: fields}
}

// Component is shorthand for With(base, {"component": name}).
func Component(base Logger, name string) Logger {
	return With(base, map[string]any{"component": name})
}

func (c *componentLogger) target() Logger {
	if c.next == nil {
		return global
	}
	return c.next
}

func (c *componentLogger) merge(fields map[string]any) map[string]any {
	out := make(map[string]any, len(c.fields)+len(fields))
	for k, v := range c.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (c *componentLogger) Info(fields map[string]any, msg string) {
	c.target().Info(c.merge(fields), msg)
}

func (c *componentLogger) Error(fields map[string]any, msg string) {
	c.target().Error(c.merge(fields), msg)
}

func (c *componentLogger) Debug(fields map[string]any, msg string) {
	c.target().Debug(c.merge(fields), msg)
}

func (c *componentLogger) Warn(fields map[string]any, msg string) {
	c.target().Warn(c.merge(fields), msg)
}

func (c *componentLogger) Panic(fields map[string]any, msg string) {
	c.target().Panic(c.merge(fields), msg)
}

func (c *componentLogger) Fatal(fields map[string]any, msg string) {
	c.target().Fatal(c.merge(fields), msg)
}

// noopLogger is a Logger implementation that discards all log messages.
type noopLogger struct{}

func (n *noopLogger) Info(map[string]any, string)  {}
func (n *noopLogger) Error(map[string]any, string) {}
func (n *noopLogger) Debug(map[string]any, string) {}
func (n *noopLogger) Warn(map[string]any, string)  {}
func (n *noopLogger) Panic(map[string]any, string) {}
func (n *noopLogger) Fatal(map[string]any, string) {}

// NewNoopLogger returns a Logger that discards all log messages.
func NewNoopLogger() Logger {
	return &noopLogger{}
}

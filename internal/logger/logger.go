// Package logger builds the zap loggers of the planner processes and
// sanitizes user content before it reaches them.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service names attached to every entry as the "service" field
const (
	ServiceServer = "planner-server"
	ServiceWorker = "planner-worker"
	ServiceCLI    = "plannerctl"
)

// Level maps the debug switch onto a zap level
func Level(debugMode bool) zapcore.Level {
	if debugMode {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// NewProductionLogger creates a JSON logger for a long running service.
// Error entries and above carry stack traces.
func NewProductionLogger(service string, debugMode bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(Level(debugMode))
	config.Encoding = "json"
	config.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	config.DisableStacktrace = false
	config.InitialFields = serviceFields(service)

	return config.Build()
}

// NewDevelopmentLogger creates a console logger on stderr, used by the CLI.
// Without debug mode only warnings and errors are written.
func NewDevelopmentLogger(service string, debugMode bool) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debugMode {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	config.OutputPaths = []string{"stderr"}
	config.DisableStacktrace = !debugMode
	config.InitialFields = serviceFields(service)

	return config.Build()
}

// Sync flushes buffered entries; safe on a nil logger
func Sync(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}
	return logger.Sync()
}

func serviceFields(service string) map[string]interface{} {
	if service == "" {
		return nil
	}
	return map[string]interface{}{"service": service}
}

package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// serviceName tags every log line so aggregated storefront logs can be
// filtered down to the order backend.
const serviceName = "swiftmart-be"

var (
	mu   sync.Mutex
	root *zap.Logger
)

// Init builds the global logger: JSON on stdout in production, colored
// console output everywhere else.
func Init(env string) {
	mu.Lock()
	defer mu.Unlock()
	root = build(env)
}

func build(env string) *zap.Logger {
	var cfg zap.Config

	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "json"
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.MessageKey = "message"
		cfg.EncoderConfig.LevelKey = "level"
		cfg.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	l, err := cfg.Build(zap.AddCaller())
	if err != nil {
		panic(err)
	}
	return l.With(zap.String("service", serviceName))
}

// L returns the global logger, initializing it from APP_ENV on first use.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if root == nil {
		root = build(os.Getenv("APP_ENV"))
	}
	return root
}

// Sync flushes buffered log entries.
func Sync() {
	mu.Lock()
	defer mu.Unlock()
	if root != nil {
		_ = root.Sync()
	}
}

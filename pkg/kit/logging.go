package kit

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a production JSON logger. When file is set, entries are
// also written to a size-rotated file.
func NewLogger(service, file string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}

	if file == "" {
		l, _ := cfg.Build()
		return l
	}

	rotating := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}
	enc := zapcore.NewJSONEncoder(cfg.EncoderConfig)
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), cfg.Level),
		zapcore.NewCore(enc.Clone(), zapcore.AddSync(rotating), cfg.Level),
	)
	return zap.New(core, zap.AddCaller()).With(zap.String("service", service))
}

package logging

import (
	"io"
	"log/slog"
	"time"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	sampleInitial    = 100
	sampleThereafter = 10
)

func newZapHandler(w io.Writer, level slog.Level, addSource bool) slog.Handler {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if addSource {
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), toZapLevel(level))
	// bursts of identical lines (e.g. dropped broadcasts) are sampled
	core = zapcore.NewSamplerWithOptions(core, time.Second, sampleInitial, sampleThereafter)

	opts := []zap.Option{}
	if addSource {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return slogzap.Option{Level: level, Logger: zap.New(core, opts...)}.NewZapHandler()
}

func toZapLevel(lvl slog.Level) zapcore.Level {
	switch {
	case lvl <= slog.LevelDebug:
		return zapcore.DebugLevel
	case lvl == slog.LevelInfo:
		return zapcore.InfoLevel
	case lvl == slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

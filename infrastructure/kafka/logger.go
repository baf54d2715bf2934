package kafka

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

var _ kgo.Logger = Logger{}

// Logger routes the franz-go client logs to slog. The client level follows
// the level enabled on the slog handler.
type Logger struct {
	log *slog.Logger
}

func NewLogger(log *slog.Logger) Logger {
	return Logger{log: log.With("component", "kafka")}
}

func (l Logger) Level() kgo.LogLevel {
	ctx := context.Background()
	switch {
	case l.log.Enabled(ctx, slog.LevelDebug):
		return kgo.LogLevelDebug
	case l.log.Enabled(ctx, slog.LevelInfo):
		return kgo.LogLevelInfo
	case l.log.Enabled(ctx, slog.LevelWarn):
		return kgo.LogLevelWarn
	default:
		return kgo.LogLevelError
	}
}

func (l Logger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	switch level {
	case kgo.LogLevelError:
		l.log.Error(msg, keyvals...)
	case kgo.LogLevelWarn:
		l.log.Warn(msg, keyvals...)
	case kgo.LogLevelInfo:
		l.log.Info(msg, keyvals...)
	case kgo.LogLevelDebug:
		l.log.Debug(msg, keyvals...)
	}
}

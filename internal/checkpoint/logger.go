package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dumbarb/dumbarb/internal/util/slogx"
	"gorm.io/gorm/logger"
)

type ourLogger struct {
	log           *slog.Logger
	slowThreshold time.Duration
}

func newLogger(log *slog.Logger, slowThreshold time.Duration) logger.Interface {
	return &ourLogger{log: log, slowThreshold: slowThreshold}
}

func (l *ourLogger) LogMode(logger.LogLevel) logger.Interface { return l }

func (l *ourLogger) Info(_ context.Context, msg string, data ...any) {
	l.log.Info("gorm info", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Warn(_ context.Context, msg string, data ...any) {
	l.log.Warn("gorm warn", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Error(_ context.Context, msg string, data ...any) {
	l.log.Error("gorm error", slog.String("msg", fmt.Sprintf(msg, data...)))
}

func (l *ourLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		sql, _ := fc()
		l.log.Error("gorm sql error", slog.Duration("elapsed", elapsed), slogx.Err(err), slog.String("sql", sql))
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		sql, _ := fc()
		l.log.Warn("slow sql", slog.Duration("elapsed", elapsed), slog.String("sql", sql))
	}
}

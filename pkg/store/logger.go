package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger adapts zerolog to gorm's logger.Interface. SQL statements are
// logged at trace level; slow statements and query errors at warn.
type gormLogger struct {
	logger        zerolog.Logger
	slowThreshold time.Duration
}

func newGormLogger(logger zerolog.Logger, slowThreshold time.Duration) *gormLogger {
	return &gormLogger{
		logger:        logger,
		slowThreshold: slowThreshold,
	}
}

// LogMode returns the adapter itself; the level follows the zerolog config.
func (l *gormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	l.logger.Debug().Msg(fmt.Sprintf(msg, data...))
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	l.logger.Warn().Msg(fmt.Sprintf(msg, data...))
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	l.logger.Error().Msg(fmt.Sprintf(msg, data...))
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.logger.Warn().
			Err(err).
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Msg("Query error")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		l.logger.Warn().
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Dur("threshold", l.slowThreshold).
			Msg("Slow query")
	default:
		l.logger.Trace().
			Str("sql", sql).
			Int64("rows_affected", rows).
			Dur("duration", elapsed).
			Msg("Query")
	}
}

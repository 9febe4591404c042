package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const slowQuery = 200 * time.Millisecond

// gormLogger направляет вывод GORM в zap; запросы журнала пишутся на debug
type gormLogger struct {
	log   *zap.Logger
	level logger.LogLevel
}

var _ logger.Interface = (*gormLogger)(nil)

func newGormLogger(log *zap.Logger, level logger.LogLevel) *gormLogger {
	return &gormLogger{log: log, level: level}
}

func (g *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *gormLogger) printf(at logger.LogLevel, msg string, data []interface{}) {
	if g.level < at {
		return
	}
	text := fmt.Sprintf(msg, data...)
	switch at {
	case logger.Error:
		g.log.Error(text)
	case logger.Warn:
		g.log.Warn(text)
	default:
		g.log.Info(text)
	}
}

func (g *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	g.printf(logger.Info, msg, data)
}

func (g *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	g.printf(logger.Warn, msg, data)
}

func (g *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	g.printf(logger.Error, msg, data)
}

// Trace: ErrRecordNotFound is a normal lookup miss and is not logged as an error.
func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	query, rows := fc()
	fields := []zap.Field{zap.Duration("elapsed", elapsed), zap.String("sql", query), zap.Int64("rows", rows)}

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		if g.level >= logger.Error {
			g.log.Error("Query failed", append(fields, zap.Error(err))...)
		}
		return
	}
	if elapsed > slowQuery && g.level >= logger.Warn {
		g.log.Warn("Slow query", fields...)
		return
	}
	if g.level >= logger.Info {
		g.log.Debug("Query", fields...)
	}
}

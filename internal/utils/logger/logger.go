// internal/utils/logger/logger.go
package logger

import (
	"errors"
	"os"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rovshanmuradov/pumpcurve/internal/task"
)

// Logger is a zap.Logger with launchpad context helpers and an owned log file.
type Logger struct {
	*zap.Logger
	rotate *lumberjack.Logger
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	if development {
		ec = zap.NewDevelopmentEncoderConfig()
	}
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	ec.EncodeDuration = zapcore.StringDurationEncoder
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	return ec
}

// New tees a human-readable console core and a rotated JSON file core.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.File == "" {
		return nil, errors.New("log file path is empty")
	}

	rotate := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.Rotation.MaxSizeMB,
		MaxAge:     cfg.Rotation.MaxAgeDays,
		MaxBackups: cfg.Rotation.MaxBackups,
		Compress:   cfg.Rotation.Compress,
	}

	var console zapcore.WriteSyncer = os.Stdout
	if cfg.Console != nil {
		console = zapcore.AddSync(cfg.Console)
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Development {
		level.SetLevel(zapcore.DebugLevel)
	}

	ec := encoderConfig(cfg.Development)
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(ec), console, level),
		zapcore.NewCore(zapcore.NewJSONEncoder(ec), zapcore.AddSync(rotate), level),
	)

	return &Logger{
		Logger: zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)),
		rotate: rotate,
	}, nil
}

// Wrap adopts an existing zap.Logger; Close then only syncs it.
func Wrap(z *zap.Logger) *Logger {
	return &Logger{Logger: z}
}

// WithOperation tags every entry with a fresh correlation id.
func (l *Logger) WithOperation(operation string) *zap.Logger {
	return l.With(
		zap.String("operation", operation),
		zap.String("correlation_id", uuid.NewString()),
		zap.Time("start_time", time.Now().UTC()),
	)
}

func (l *Logger) WithComponent(component string) *zap.Logger {
	return l.With(zap.String("component", component))
}

func (l *Logger) WithMarket(mint solana.PublicKey) *zap.Logger {
	return l.With(zap.Stringer("mint", mint))
}

func (l *Logger) WithTrader(trader solana.PublicKey) *zap.Logger {
	return l.With(zap.Stringer("trader", trader))
}

// WithTask добавляет поля задачи симулятора
func (l *Logger) WithTask(t *task.Task) *zap.Logger {
	return l.With(
		zap.String("task_name", t.TaskName),
		zap.String("wallet", t.WalletName),
		zap.String("operation", string(t.Operation)),
		zap.String("token", t.Token),
		zap.Uint64("amount", t.Amount),
		zap.String("slippage_type", string(t.Slippage.Type)),
		zap.Uint64("slippage_value", t.Slippage.Value),
	)
}

func (l *Logger) LogError(msg string, err error, fields ...zap.Field) {
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	l.Error(msg, fields...)
}

// Sync ignores the errors fsync returns for terminals.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

func (l *Logger) Close() error {
	if err := l.Sync(); err != nil {
		return err
	}
	if l.rotate != nil {
		return l.rotate.Close()
	}
	return nil
}

// TrackPerformance logs the start of operation and returns the func that logs its duration.
func (l *Logger) TrackPerformance(operation string) (end func()) {
	started := time.Now()
	log := l.WithOperation(operation)
	log.Debug("Starting operation")

	return func() {
		elapsed := time.Since(started)
		log.Debug("Operation completed",
			zap.Duration("duration", elapsed),
			zap.Float64("duration_ms", float64(elapsed.Microseconds())/1000),
		)
	}
}

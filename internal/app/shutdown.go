package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CloseFunc releases one service within the shutdown deadline.
type CloseFunc func(ctx context.Context) error

type namedService struct {
	name  string
	close CloseFunc
}

// ShutdownHandler closes registered services in reverse registration order.
type ShutdownHandler struct {
	logger   *zap.Logger
	services []namedService
	mu       sync.Mutex
	timeout  time.Duration
	once     sync.Once
	err      error
}

// NewShutdownHandler creates a new shutdown handler
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownHandler{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
	}
}

// Add registers a service for shutdown
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.services = append(sh.services, namedService{name: name, close: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// Shutdown closes all registered services once. Later calls return the
// first result.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.once.Do(func() {
		sh.err = sh.shutdown(ctx)
	})
	return sh.err
}

func (sh *ShutdownHandler) shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.mu.Lock()
	services := make([]namedService, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	sh.logger.Info("Starting graceful shutdown", zap.Int("services", len(services)))

	// LIFO: шина событий должна успеть записать журнал до закрытия базы
	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		sh.logger.Debug("Shutting down service", zap.String("service", svc.name))
		if err := svc.close(ctx); err != nil {
			sh.logger.Error("Failed to shutdown service",
				zap.String("service", svc.name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", svc.name, err))
		}
	}

	if len(errs) > 0 {
		sh.logger.Error("Shutdown completed with errors", zap.Int("errorCount", len(errs)))
		return errors.Join(errs...)
	}
	sh.logger.Info("Graceful shutdown completed successfully")
	return nil
}

// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
)

var ErrNotFound = errors.New("record not found")

// Storage определяет интерфейс для работы с журналом рынков
type Storage interface {
	// Рынки
	SaveMarket(ctx context.Context, m *models.Market) error
	GetMarket(ctx context.Context, mint string) (*models.Market, error)
	ListMarkets(ctx context.Context) ([]*models.Market, error)
	UpdateMarketState(ctx context.Context, mint string, unitsSold, currencyRaised uint64) error
	MarkGraduated(ctx context.Context, mint string, at time.Time) error

	// Сделки
	SaveTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, mint string, limit, offset int) ([]*models.Trade, error)
	GetMarketStats(ctx context.Context, mint string) (*models.MarketStats, error)

	// Конфигурация
	SaveConfigChange(ctx context.Context, c *models.ConfigChange) error
	LatestConfig(ctx context.Context) (*models.ConfigChange, error)

	// Задачи
	SaveTaskHistory(ctx context.Context, history *models.TaskHistory) error
	ListTaskHistory(ctx context.Context, taskName string) ([]*models.TaskHistory, error)

	RunMigrations() error
	Close() error
}

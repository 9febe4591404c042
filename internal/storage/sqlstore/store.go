// internal/storage/sqlstore/store.go
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rovshanmuradov/pumpcurve/internal/storage"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const migrationLockID = 101

var _ storage.Storage = (*Store)(nil)

// Store реализует storage.Storage поверх GORM
type Store struct {
	db     *gorm.DB
	driver string
	logger *zap.Logger
}

// Open connects to driver ("postgres" or "sqlite") at dsn.
func Open(driver, dsn string, zapLogger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(zapLogger.Named("gorm"), logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	if driver == DriverPostgres {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite допускает одного писателя
		sqlDB.SetMaxOpenConns(1)
	}

	return &Store{
		db:     db,
		driver: driver,
		logger: zapLogger.Named("store"),
	}, nil
}

// ensureDir создаёт каталог для файловой базы sqlite
func ensureDir(dsn string) error {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.Contains(dsn, ":memory:") {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// RunMigrations использует GORM AutoMigrate
func (s *Store) RunMigrations() error {
	if s.driver == DriverPostgres {
		var lockObtained bool
		err := s.db.Raw("SELECT pg_try_advisory_lock(?)", migrationLockID).Scan(&lockObtained).Error
		if err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer s.db.Exec("SELECT pg_advisory_unlock(?)", migrationLockID)
	}

	if err := s.db.AutoMigrate(
		&models.Market{},
		&models.Trade{},
		&models.ConfigChange{},
		&models.TaskHistory{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	s.logger.Debug("Migrations applied", zap.String("driver", s.driver))
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return storage.ErrNotFound
	}
	return err
}

func (s *Store) SaveMarket(ctx context.Context, m *models.Market) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *Store) GetMarket(ctx context.Context, mint string) (*models.Market, error) {
	var m models.Market
	if err := s.db.WithContext(ctx).Where("mint = ?", mint).First(&m).Error; err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (s *Store) ListMarkets(ctx context.Context) ([]*models.Market, error) {
	var markets []*models.Market
	err := s.db.WithContext(ctx).Order("listed_at asc, id asc").Find(&markets).Error
	return markets, err
}

func (s *Store) UpdateMarketState(ctx context.Context, mint string, unitsSold, currencyRaised uint64) error {
	res := s.db.WithContext(ctx).Model(&models.Market{}).
		Where("mint = ?", mint).
		Updates(map[string]interface{}{
			"units_sold":      unitsSold,
			"currency_raised": currencyRaised,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: market %s", storage.ErrNotFound, mint)
	}
	return nil
}

func (s *Store) MarkGraduated(ctx context.Context, mint string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Market{}).
		Where("mint = ?", mint).
		Updates(map[string]interface{}{
			"graduated":    true,
			"graduated_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: market %s", storage.ErrNotFound, mint)
	}
	return nil
}

func (s *Store) SaveTrade(ctx context.Context, t *models.Trade) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) ListTrades(ctx context.Context, mint string, limit, offset int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := s.db.WithContext(ctx).
		Where("mint = ?", mint).
		Order("executed_at asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&trades).Error
	return trades, err
}

func (s *Store) GetMarketStats(ctx context.Context, mint string) (*models.MarketStats, error) {
	var stats models.MarketStats
	err := s.db.WithContext(ctx).Model(&models.Trade{}).
		Select(`COUNT(*) AS trades,
			COALESCE(SUM(CASE WHEN is_buy THEN 1 ELSE 0 END), 0) AS buys,
			COALESCE(SUM(CASE WHEN is_buy THEN 0 ELSE 1 END), 0) AS sells,
			COALESCE(SUM(CASE WHEN is_buy THEN amount_in ELSE 0 END), 0) AS buy_volume,
			COALESCE(SUM(CASE WHEN is_buy THEN 0 ELSE amount_in END), 0) AS sell_volume,
			COALESCE(SUM(fee), 0) AS fees_charged`).
		Where("mint = ?", mint).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	stats.Mint = mint
	return &stats, nil
}

func (s *Store) SaveConfigChange(ctx context.Context, c *models.ConfigChange) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) LatestConfig(ctx context.Context) (*models.ConfigChange, error) {
	var c models.ConfigChange
	if err := s.db.WithContext(ctx).Order("id desc").First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Store) SaveTaskHistory(ctx context.Context, history *models.TaskHistory) error {
	return s.db.WithContext(ctx).Create(history).Error
}

func (s *Store) ListTaskHistory(ctx context.Context, taskName string) ([]*models.TaskHistory, error) {
	var out []*models.TaskHistory
	err := s.db.WithContext(ctx).Where("task_name = ?", taskName).Order("id asc").Find(&out).Error
	return out, err
}

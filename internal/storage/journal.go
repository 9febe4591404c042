// internal/storage/journal.go
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/events"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
)

var _ events.Handler = (*Journal)(nil)

// Journal persists bus events into a Storage.
type Journal struct {
	store  Storage
	logger *zap.Logger
}

func NewJournal(store Storage, logger *zap.Logger) *Journal {
	return &Journal{store: store, logger: logger.Named("journal")}
}

// Attach subscribes the journal to every event type it records.
func (j *Journal) Attach(bus *events.Bus) events.Subscription {
	return bus.Subscribe(j,
		events.TokenCreated,
		events.TradeCompleted,
		events.CurveGraduated,
		events.ConfigChanged,
	)
}

// Handle записывает событие в хранилище
func (j *Journal) Handle(ctx context.Context, event events.Event) error {
	var err error
	switch e := event.(type) {
	case *events.TokenCreatedEvent:
		err = j.store.SaveMarket(ctx, &models.Market{
			Mint:      e.Mint.String(),
			Name:      e.Name,
			Symbol:    e.Symbol,
			Creator:   e.Creator.String(),
			CurveKind: e.CurveKind,
			ListedAt:  e.Timestamp(),
		})
	case *events.TradeCompletedEvent:
		err = j.recordTrade(ctx, e)
	case *events.CurveGraduatedEvent:
		err = j.store.MarkGraduated(ctx, e.Mint.String(), e.Timestamp())
	case *events.ConfigChangedEvent:
		err = j.store.SaveConfigChange(ctx, &models.ConfigChange{
			Admin:         e.Admin.String(),
			FeeCollector:  e.FeeCollector.String(),
			FeeBps:        e.FeeBps,
			TradingPaused: e.TradingPaused,
			ChangedAt:     e.Timestamp(),
		})
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal %s: %w", event.Type(), err)
	}
	return nil
}

func (j *Journal) recordTrade(ctx context.Context, e *events.TradeCompletedEvent) error {
	mint := e.Mint.String()
	if err := j.store.SaveTrade(ctx, &models.Trade{
		TradeID:        e.TradeID,
		Mint:           mint,
		Trader:         e.Trader.String(),
		IsBuy:          e.IsBuy,
		AmountIn:       e.AmountIn,
		AmountOut:      e.AmountOut,
		Fee:            e.Fee,
		Price:          e.Price,
		UnitsSold:      e.UnitsSold,
		CurrencyRaised: e.CurrencyRaised,
		ExecutedAt:     e.Timestamp(),
	}); err != nil {
		return err
	}
	j.logger.Debug("Trade journaled",
		zap.String("trade_id", e.TradeID),
		zap.String("mint", mint))
	return j.store.UpdateMarketState(ctx, mint, e.UnitsSold, e.CurrencyRaised)
}

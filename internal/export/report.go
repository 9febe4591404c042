package export

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
)

// ExportSummary aggregates a set of trades. Buy volume and fees are lamports,
// sell volume is raw token units.
type ExportSummary struct {
	TotalTrades     int       `json:"total_trades"`
	BuyCount        int       `json:"buy_count"`
	SellCount       int       `json:"sell_count"`
	UniqueTokens    int       `json:"unique_tokens"`
	TotalBuyVolume  uint64    `json:"total_buy_volume"`
	TotalSellVolume uint64    `json:"total_sell_volume"`
	TotalFees       uint64    `json:"total_fees"`
	TotalFeesSOL    string    `json:"total_fees_sol"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// summarize expects trades ordered by execution time.
func summarize(trades []*models.Trade) ExportSummary {
	s := ExportSummary{TotalTrades: len(trades)}
	mints := make(map[string]struct{})
	for _, t := range trades {
		mints[t.Mint] = struct{}{}
		s.TotalFees += t.Fee
		if t.IsBuy {
			s.BuyCount++
			s.TotalBuyVolume += t.AmountIn
		} else {
			s.SellCount++
			s.TotalSellVolume += t.AmountIn
		}
	}
	if len(trades) > 0 {
		s.StartDate = trades[0].ExecutedAt
		s.EndDate = trades[len(trades)-1].ExecutedAt
	}
	s.UniqueTokens = len(mints)
	s.TotalFeesSOL = fixedpoint.FormatCurrency(s.TotalFees)
	return s
}

type DailyReport struct {
	Date            time.Time       `json:"date"`
	TradeCount      int             `json:"trade_count"`
	Summary         ExportSummary   `json:"summary"`
	HourlyBreakdown []HourlyStats   `json:"hourly_breakdown"`
	Trades          []*models.Trade `json:"trades"`
}

type HourlyStats struct {
	Hour       int    `json:"hour"`
	TradeCount int    `json:"trade_count"`
	BuyCount   int    `json:"buy_count"`
	SellCount  int    `json:"sell_count"`
	Fees       uint64 `json:"fees"`
}

// ExportDailyReport writes daily_report_YYYYMMDD.json for the calendar day of date.
// A day without trades writes nothing and returns an empty path.
func (te *TradeExporter) ExportDailyReport(trades []*models.Trade, date time.Time, outputDir string) (string, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	selected := selectTrades(trades, ExportOptions{StartTime: day, EndTime: day.AddDate(0, 0, 1)})
	if len(selected) == 0 {
		te.logger.Info("No trades for daily report", zap.Time("date", day))
		return "", nil
	}

	report := DailyReport{
		Date:            day,
		TradeCount:      len(selected),
		Summary:         summarize(selected),
		HourlyBreakdown: hourly(selected),
		Trades:          selected,
	}
	path := filepath.Join(outputDir, fmt.Sprintf("daily_report_%s.json", day.Format("20060102")))
	if err := writeFile(path, func(w io.Writer) error { return encodeJSON(w, report) }); err != nil {
		return "", err
	}

	te.logger.Info("Daily report exported",
		zap.String("file", path),
		zap.Time("date", day),
		zap.Int("trades", len(selected)))
	return path, nil
}

// hourly returns one entry per hour that has trades, in hour order.
func hourly(trades []*models.Trade) []HourlyStats {
	var buckets [24]HourlyStats
	for _, t := range trades {
		b := &buckets[t.ExecutedAt.Hour()]
		b.TradeCount++
		b.Fees += t.Fee
		if t.IsBuy {
			b.BuyCount++
		} else {
			b.SellCount++
		}
	}
	var out []HourlyStats
	for h, b := range buckets {
		if b.TradeCount == 0 {
			continue
		}
		b.Hour = h
		out = append(out, b)
	}
	return out
}

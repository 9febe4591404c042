// Package export writes journaled trades to CSV or JSON files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
	"github.com/rovshanmuradov/pumpcurve/internal/types"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

var ErrNoTrades = errors.New("no trades match the export criteria")

// ExportOptions selects trades by time window [StartTime, EndTime), mint and direction.
// Zero values disable a filter.
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	MintFilter   string
	ActionFilter string // buy | sell
	OutputDir    string
}

func (o ExportOptions) match(t *models.Trade) bool {
	switch {
	case !o.StartTime.IsZero() && t.ExecutedAt.Before(o.StartTime):
		return false
	case !o.EndTime.IsZero() && !t.ExecutedAt.Before(o.EndTime):
		return false
	case o.MintFilter != "" && t.Mint != o.MintFilter:
		return false
	case o.ActionFilter != "" && action(t) != o.ActionFilter:
		return false
	}
	return true
}

// fileName: trades_<all|action>[_<mint prefix>]_<timestamp>.<format>
func (o ExportOptions) fileName(now time.Time) string {
	name := "trades_all"
	if o.ActionFilter != "" {
		name = "trades_" + o.ActionFilter
	}
	if len(o.MintFilter) >= 8 {
		name += "_" + o.MintFilter[:8]
	}
	return fmt.Sprintf("%s_%s.%s", name, now.Format("20060102_150405"), o.Format)
}

type TradeExporter struct {
	logger *zap.Logger
	clock  types.Clock
}

func NewTradeExporter(logger *zap.Logger, clock types.Clock) *TradeExporter {
	if clock == nil {
		clock = types.SystemClock{}
	}
	return &TradeExporter{logger: logger.Named("export"), clock: clock}
}

// CSVHeaders returns the column order of exported trades.
func CSVHeaders() []string {
	return []string{
		"trade_id", "executed_at", "mint", "trader", "action",
		"amount_in", "amount_out", "fee", "price", "units_sold", "currency_raised",
	}
}

func action(t *models.Trade) string {
	if t.IsBuy {
		return "buy"
	}
	return "sell"
}

func csvRow(t *models.Trade) []string {
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	return []string{
		t.TradeID,
		t.ExecutedAt.UTC().Format(time.RFC3339),
		t.Mint,
		t.Trader,
		action(t),
		u(t.AmountIn), u(t.AmountOut), u(t.Fee), u(t.Price), u(t.UnitsSold), u(t.CurrencyRaised),
	}
}

// selectTrades filters trades and orders them by execution time.
func selectTrades(trades []*models.Trade, opts ExportOptions) []*models.Trade {
	var out []*models.Trade
	for _, t := range trades {
		if opts.match(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExecutedAt.Before(out[j].ExecutedAt) })
	return out
}

// ExportTrades writes the matching trades and returns the file path.
func (te *TradeExporter) ExportTrades(trades []*models.Trade, opts ExportOptions) (string, error) {
	var write func(io.Writer, []*models.Trade) error
	switch opts.Format {
	case FormatCSV:
		write = writeCSV
	case FormatJSON:
		write = te.writeJSON
	default:
		return "", fmt.Errorf("unsupported format: %s", opts.Format)
	}

	selected := selectTrades(trades, opts)
	if len(selected) == 0 {
		return "", ErrNoTrades
	}

	path := filepath.Join(opts.OutputDir, opts.fileName(te.clock.Now()))
	if err := writeFile(path, func(w io.Writer) error { return write(w, selected) }); err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", path),
		zap.Int("count", len(selected)),
		zap.String("format", string(opts.Format)))
	return path, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, trades []*models.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeaders()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, t := range trades {
		if err := cw.Write(csvRow(t)); err != nil {
			return fmt.Errorf("failed to write trade %s: %w", t.TradeID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (te *TradeExporter) writeJSON(w io.Writer, trades []*models.Trade) error {
	return encodeJSON(w, struct {
		ExportTime time.Time       `json:"export_time"`
		TradeCount int             `json:"trade_count"`
		Trades     []*models.Trade `json:"trades"`
		Summary    ExportSummary   `json:"summary"`
	}{
		ExportTime: te.clock.Now(),
		TradeCount: len(trades),
		Trades:     trades,
		Summary:    summarize(trades),
	})
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

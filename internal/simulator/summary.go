package simulator

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/pumpcurve/internal/curve"
	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
	"github.com/rovshanmuradov/pumpcurve/internal/ledger"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00E5FF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = cellStyle.Foreground(lipgloss.Color("#FF5555"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF1B6B"))
)

// MarketSummary is the end-of-run view of one market.
type MarketSummary struct {
	Symbol      string
	Mint        solana.PublicKey
	Kind        curve.Kind
	Status      ledger.Status
	State       curve.State
	Price       uint64
	ProgressBps uint64
	Buys        int
	Sells       int
	Failed      int
	Fees        uint64
}

func (s *Simulator) summarize(symbol string, mint solana.PublicKey, results []TaskResult) MarketSummary {
	summary := MarketSummary{Symbol: symbol, Mint: mint}
	if m, err := s.pad.Market(mint); err == nil {
		l := m.Ledger
		summary.Kind = l.Strategy().Kind()
		summary.Status = l.Status()
		summary.State = l.State()
		summary.ProgressBps = l.Progress()
		// Цена за пределами кривой не считается, оставляем 0
		if price, err := l.Strategy().PriceAt(summary.State); err == nil {
			summary.Price = price
		}
	}

	for _, res := range results {
		if res.Task == nil || res.Task.Token != symbol {
			continue
		}
		switch {
		case res.Err != nil:
			summary.Failed++
		case res.Trade.Direction == ledger.Buy:
			summary.Buys++
			summary.Fees += res.Trade.Fee
		default:
			summary.Sells++
			summary.Fees += res.Trade.Fee
		}
	}
	return summary
}

func formatProgress(bps uint64) string {
	return decimal.New(int64(bps), -2).StringFixed(2) + "%"
}

// Render writes the per-market table followed by failed tasks.
func (r *Report) Render(w io.Writer) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TOKEN", "CURVE", "STATUS", "SOLD", "RAISED (SOL)", "PRICE", "PROGRESS", "BUYS", "SELLS", "FAILED", "FEES (SOL)")

	for _, m := range r.Markets {
		t.Row(
			m.Symbol,
			string(m.Kind),
			m.Status.String(),
			fixedpoint.FormatTokens(m.State.UnitsSold),
			fixedpoint.FormatCurrency(m.State.CurrencyRaised),
			strconv.FormatUint(m.Price, 10),
			formatProgress(m.ProgressBps),
			strconv.Itoa(m.Buys),
			strconv.Itoa(m.Sells),
			strconv.Itoa(m.Failed),
			fixedpoint.FormatCurrency(m.Fees),
		)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		if row == table.HeaderRow {
			return headerStyle
		}
		if col == 9 && row >= 0 && row < len(r.Markets) && r.Markets[row].Failed > 0 {
			return failStyle
		}
		return cellStyle
	})

	if _, err := fmt.Fprintln(w, titleStyle.Render("Markets")); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}

	for _, res := range r.Results {
		if res.Err == nil {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s %s (%s): %v\n",
			failStyle.Render("FAILED"), res.Task.TaskName, res.Task.WalletName, res.Err); err != nil {
			return err
		}
	}
	return nil
}

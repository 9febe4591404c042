// internal/app/stats.go
package app

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rovshanmuradov/pumpcurve/internal/fixedpoint"
	"github.com/rovshanmuradov/pumpcurve/internal/storage"
	"github.com/rovshanmuradov/pumpcurve/internal/storage/models"
)

var (
	statsHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00E5FF")).Padding(0, 1)
	statsCell   = lipgloss.NewStyle().Padding(0, 1)
	statsTitle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF1B6B"))
)

// WriteMarketStats renders journaled market state with its trade aggregates.
// An empty mint covers every journaled market.
func WriteMarketStats(ctx context.Context, store storage.Storage, mint string, w io.Writer) error {
	var markets []*models.Market
	if mint != "" {
		m, err := store.GetMarket(ctx, mint)
		if err != nil {
			return fmt.Errorf("market %s: %w", mint, err)
		}
		markets = []*models.Market{m}
	} else {
		var err error
		if markets, err = store.ListMarkets(ctx); err != nil {
			return fmt.Errorf("failed to list markets: %w", err)
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TOKEN", "MINT", "CURVE", "GRADUATED", "SOLD", "RAISED (SOL)", "TRADES", "BUYS", "SELLS", "BUY VOL (SOL)", "SELL VOL (TOKENS)", "FEES (SOL)")
	for _, m := range markets {
		st, err := store.GetMarketStats(ctx, m.Mint)
		if err != nil {
			return fmt.Errorf("stats of %s: %w", m.Mint, err)
		}
		t.Row(
			m.Symbol,
			m.Mint,
			m.CurveKind,
			strconv.FormatBool(m.Graduated),
			fixedpoint.FormatTokens(m.UnitsSold),
			fixedpoint.FormatCurrency(m.CurrencyRaised),
			strconv.FormatInt(st.Trades, 10),
			strconv.FormatInt(st.Buys, 10),
			strconv.FormatInt(st.Sells, 10),
			fixedpoint.FormatCurrency(st.BuyVolume),
			fixedpoint.FormatTokens(st.SellVolume),
			fixedpoint.FormatCurrency(st.FeesCharged),
		)
	}
	t.StyleFunc(cellStyle)

	if _, err := fmt.Fprintln(w, statsTitle.Render("Journaled markets")); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// WriteTaskHistory renders every journaled attempt of the named task.
func WriteTaskHistory(ctx context.Context, store storage.Storage, taskName string, w io.Writer) error {
	rows, err := store.ListTaskHistory(ctx, taskName)
	if err != nil {
		return fmt.Errorf("history of %s: %w", taskName, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("history of %s: %w", taskName, storage.ErrNotFound)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("WALLET", "OP", "MINT", "STATUS", "ATTEMPTS", "IN", "OUT", "ERROR")
	for _, h := range rows {
		t.Row(
			h.Wallet,
			h.Operation,
			h.Mint,
			h.Status,
			strconv.Itoa(h.Attempts),
			strconv.FormatUint(h.AmountIn, 10),
			strconv.FormatUint(h.AmountOut, 10),
			h.ErrorMessage,
		)
	}
	t.StyleFunc(cellStyle)

	if _, err := fmt.Fprintln(w, statsTitle.Render("Task "+taskName)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, t.Render())
	return err
}

func cellStyle(row, _ int) lipgloss.Style {
	if row == table.HeaderRow {
		return statsHeader
	}
	return statsCell
}

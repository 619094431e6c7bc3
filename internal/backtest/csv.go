package backtest

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var csvHeader = []string{
	"trade", "entry_time", "exit_time", "side", "strategy",
	"entry_price", "exit_price", "size", "pnl", "pnl_percent", "reasoning",
}

// WriteCSV exports the per-trade list as CSV, one row per completed trade.
func WriteCSV(w io.Writer, result *Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for i, t := range result.Trades {
		row := []string{
			strconv.Itoa(i + 1),
			t.EntryTime.UTC().Format(time.RFC3339),
			t.ExitTime.UTC().Format(time.RFC3339),
			string(t.Side),
			t.Strategy,
			formatFloat(t.EntryPrice),
			formatFloat(t.ExitPrice),
			formatFloat(t.Size),
			formatFloat(t.PnL),
			formatFloat(t.PnLPercent),
			t.Reasoning,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

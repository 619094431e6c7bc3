package backtest

import (
	"fmt"
	"io"
)

// WriteReport renders a human-readable run summary.
func WriteReport(w io.Writer, result *Result) {
	fmt.Fprintln(w, "========== BACKTEST RESULTS ==========")
	fmt.Fprintf(w, "Initial Capital : %.2f\n", result.InitialCapital)
	fmt.Fprintf(w, "Final Capital   : %.2f\n", result.FinalCapital)
	fmt.Fprintf(w, "Total PnL       : %.2f (%.2f%%)\n",
		result.TotalPnL, result.TotalPnL/result.InitialCapital*100)
	fmt.Fprintf(w, "Total Fees      : %.2f\n", result.TotalFees)
	fmt.Fprintf(w, "Trades          : %d (%d wins / %d losses)\n",
		result.TotalTrades, result.WinningTrades, result.LosingTrades)
	fmt.Fprintf(w, "Win Rate        : %.1f%%\n", result.WinRate)
	fmt.Fprintf(w, "Profit Factor   : %.2f\n", result.ProfitFactor)
	fmt.Fprintf(w, "Max Drawdown    : %.2f%%\n", result.MaxDrawdown)
	if result.SkippedSteps > 0 {
		fmt.Fprintf(w, "Skipped Steps   : %d\n", result.SkippedSteps)
	}
	fmt.Fprintln(w, "======================================")

	for i, t := range result.Trades {
		fmt.Fprintf(w, "#%d %s %s %s entry %.4f exit %.4f size %.4f pnl %+.2f (%+.2f%%) %s\n",
			i+1,
			t.EntryTime.Format("2006-01-02 15:04"),
			t.Side, t.Strategy,
			t.EntryPrice, t.ExitPrice, t.Size,
			t.PnL, t.PnLPercent, t.Reasoning)
	}
}

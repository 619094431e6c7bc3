package backtest

// computeMetrics fills the summary fields of a result from its trade list
// and equity curve.
func computeMetrics(result *Result) {
	result.TotalTrades = len(result.Trades)

	grossWins := 0.0
	grossLosses := 0.0
	for _, t := range result.Trades {
		if t.PnL > 0 {
			result.WinningTrades++
			grossWins += t.PnL
		} else if t.PnL < 0 {
			result.LosingTrades++
			grossLosses += t.PnL
		}
	}

	if result.TotalTrades > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(result.TotalTrades) * 100
	}
	if grossLosses < 0 {
		result.ProfitFactor = grossWins / -grossLosses
	} else if grossWins > 0 {
		result.ProfitFactor = grossWins
	}

	result.MaxDrawdown = maxDrawdown(result.EquityCurve)
}

// maxDrawdown returns the largest peak-to-trough decline of the equity
// curve, in percent.
func maxDrawdown(equity []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (peak - v) / peak * 100
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

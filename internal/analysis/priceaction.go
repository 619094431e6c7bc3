package analysis

import (
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/indicator"
)

// PriceActionScore represents short-horizon price movement analysis.
type PriceActionScore struct {
	Score         float64 // -1.0 to 1.0
	ChangePercent float64 // % change over the lookback window
	Momentum      float64 // mean per-candle return over the window, in %
	IsStrongUp    bool    // change >= +1.5%
	IsStrongDown  bool    // change <= -1.5%
}

// PriceActionAnalyzer scores the percentage move over a short lookback.
// A move of +/-3% saturates the score at +/-1.
type PriceActionAnalyzer struct {
	lookback     int
	rangePercent float64
	strongMove   float64
}

// NewPriceActionAnalyzer creates a new price action analyzer.
func NewPriceActionAnalyzer(lookback int) *PriceActionAnalyzer {
	if lookback <= 0 {
		lookback = 5 // Default 5-candle lookback
	}
	return &PriceActionAnalyzer{
		lookback:     lookback,
		rangePercent: 3.0,
		strongMove:   1.5,
	}
}

// Analyze scores the move over the trailing lookback window.
func (pa *PriceActionAnalyzer) Analyze(candles []coinone.Candle) (*PriceActionScore, error) {
	if err := requireCandles("PriceAction", pa.lookback+1, len(candles)); err != nil {
		return nil, err
	}

	current := candles[len(candles)-1].Close
	past := candles[len(candles)-1-pa.lookback].Close

	changePercent := 0.0
	if past != 0 {
		changePercent = (current - past) / past * 100
	}

	// Mean of per-candle returns over the window.
	momentum := 0.0
	for i := len(candles) - pa.lookback; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev != 0 {
			momentum += (candles[i].Close - prev) / prev * 100
		}
	}
	momentum /= float64(pa.lookback)

	score := mapLinear(changePercent, -pa.rangePercent, pa.rangePercent)

	return &PriceActionScore{
		Score:         score,
		ChangePercent: changePercent,
		Momentum:      momentum,
		IsStrongUp:    changePercent >= pa.strongMove,
		IsStrongDown:  changePercent <= -pa.strongMove,
	}, nil
}

func requireCandles(analyzer string, required, got int) error {
	if got < required {
		return &indicator.InsufficientDataError{Indicator: analyzer, Required: required, Got: got}
	}
	return nil
}

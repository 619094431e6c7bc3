package analysis

import (
	"math"

	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/indicator"
)

// MATrendScore represents EMA alignment analysis.
type MATrendScore struct {
	Score            float64 // -1.0 to 1.0
	EMA9             float64
	EMA21            float64
	EMA50            float64
	PerfectAlignment bool // 9>21>50 or 9<21<50
	PartialAlignment bool // only 9 vs 21 agrees
}

// MATrendAnalyzer scores EMA 9/21/50 alignment. A perfect stack scores by
// the normalized 9-to-50 gap, saturating at +/-1 beyond a 2% gap; partial
// alignment (9 vs 21 only) is capped at +/-0.5.
type MATrendAnalyzer struct {
	fastPeriod    int
	midPeriod     int
	slowPeriod    int
	gapSaturation float64 // fractional gap at which the score saturates
}

// NewMATrendAnalyzer creates a new moving-average trend analyzer.
func NewMATrendAnalyzer() *MATrendAnalyzer {
	return &MATrendAnalyzer{
		fastPeriod:    9,
		midPeriod:     21,
		slowPeriod:    50,
		gapSaturation: 0.02,
	}
}

// Analyze scores the EMA alignment of the window.
func (ma *MATrendAnalyzer) Analyze(candles []coinone.Candle) (*MATrendScore, error) {
	closes := coinone.Closes(candles)

	ema9, err := indicator.EMA(closes, ma.fastPeriod)
	if err != nil {
		return nil, err
	}
	ema21, err := indicator.EMA(closes, ma.midPeriod)
	if err != nil {
		return nil, err
	}
	ema50, err := indicator.EMA(closes, ma.slowPeriod)
	if err != nil {
		return nil, err
	}

	result := &MATrendScore{
		EMA9:  ema9,
		EMA21: ema21,
		EMA50: ema50,
	}

	bullStack := ema9 > ema21 && ema21 > ema50
	bearStack := ema9 < ema21 && ema21 < ema50

	switch {
	case bullStack || bearStack:
		result.PerfectAlignment = true
		gap := 0.0
		if ema50 != 0 {
			gap = (ema9 - ema50) / ema50
		}
		result.Score = clamp(gap/ma.gapSaturation, -1.0, 1.0)
	case ema9 != ema21:
		result.PartialAlignment = true
		gap := 0.0
		if ema21 != 0 {
			gap = (ema9 - ema21) / ema21
		}
		result.Score = clamp(gap/ma.gapSaturation, -1.0, 1.0) * 0.5
	default:
		result.Score = 0
	}

	return result, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

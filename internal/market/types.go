package market

import (
	"fmt"
	"math"

	"coinone-trading-bot/internal/indicator"
)

// MarketCondition is the 7-level composite market classification.
type MarketCondition string

const (
	ConditionExtremeBullish MarketCondition = "extreme_bullish"
	ConditionStrongBullish  MarketCondition = "strong_bullish"
	ConditionWeakBullish    MarketCondition = "weak_bullish"
	ConditionRanging        MarketCondition = "ranging"
	ConditionWeakBearish    MarketCondition = "weak_bearish"
	ConditionStrongBearish  MarketCondition = "strong_bearish"
	ConditionExtremeBearish MarketCondition = "extreme_bearish"
)

// IsBullish reports whether the condition is any bullish level.
func (mc MarketCondition) IsBullish() bool {
	return mc == ConditionExtremeBullish || mc == ConditionStrongBullish || mc == ConditionWeakBullish
}

// IsBearish reports whether the condition is any bearish level.
func (mc MarketCondition) IsBearish() bool {
	return mc == ConditionExtremeBearish || mc == ConditionStrongBearish || mc == ConditionWeakBearish
}

// IsExtreme reports whether the condition is at either extreme.
func (mc MarketCondition) IsExtreme() bool {
	return mc == ConditionExtremeBullish || mc == ConditionExtremeBearish
}

// Confidence is the classification confidence tier.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// HistogramTrend describes how the MACD histogram is evolving.
type HistogramTrend string

const (
	HistogramImproving HistogramTrend = "improving"
	HistogramWorsening HistogramTrend = "worsening"
	HistogramCrossing  HistogramTrend = "crossing"
	HistogramSideways  HistogramTrend = "sideways"
)

// Weights holds the six component weights of the composite score.
// They must sum to 1.0.
type Weights struct {
	RSI         float64 `json:"rsi"`          // Default: 0.25
	Volume      float64 `json:"volume"`       // Default: 0.20
	PriceAction float64 `json:"price_action"` // Default: 0.20
	MATrend     float64 `json:"ma_trend"`     // Default: 0.15
	Bollinger   float64 `json:"bollinger"`    // Default: 0.10
	MACD        float64 `json:"macd"`         // Default: 0.10
}

// DefaultWeights returns the default composite weights.
func DefaultWeights() Weights {
	return Weights{
		RSI:         0.25,
		Volume:      0.20,
		PriceAction: 0.20,
		MATrend:     0.15,
		Bollinger:   0.10,
		MACD:        0.10,
	}
}

// Validate checks that the weights sum to 1.0.
func (w Weights) Validate() error {
	sum := w.RSI + w.Volume + w.PriceAction + w.MATrend + w.Bollinger + w.MACD
	if math.Abs(sum-1.0) > 1e-9 {
		return &InvalidConfigurationError{
			Reason: fmt.Sprintf("composite weights sum to %f, want 1.0", sum),
		}
	}
	return nil
}

// InvalidConfigurationError reports a configuration the engine refuses to
// run with, such as weights not summing to 1.0 or non-positive periods.
type InvalidConfigurationError struct {
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}

// ComponentScores holds the six normalized component scores, each in [-1, 1].
type ComponentScores struct {
	RSI         float64
	Volume      float64
	PriceAction float64
	MATrend     float64
	Bollinger   float64
	MACD        float64
}

// CompositeAnalysis is the classifier output for one window. It also
// carries the indicator snapshot so downstream consumers do not recompute.
type CompositeAnalysis struct {
	CompositeScore float64
	Condition      MarketCondition
	Confidence     Confidence

	Components ComponentScores // raw scores in [-1, 1]
	Weighted   ComponentScores // weight * raw; CompositeScore is their sum

	// Indicator snapshot for the evaluated window.
	RSI          float64
	Bands        *indicator.Bands
	MACD         *indicator.MACDResult
	MACDTrend    HistogramTrend
	VolumeRatio  float64
	BandPosition float64 // price position within the band, 0 = lower, 1 = upper
	CurrentPrice float64
}

// Package market classifies a candle window into one of seven market
// conditions by combining six weighted indicator scores.
package market

import (
	"math"

	"coinone-trading-bot/internal/analysis"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/indicator"
)

// ClassifierConfig holds indicator periods for the composite classifier.
type ClassifierConfig struct {
	Weights          Weights `json:"weights"`
	RSIPeriod        int     `json:"rsi_period"`         // Default: 14
	BollingerPeriod  int     `json:"bollinger_period"`   // Default: 20
	BollingerStdDev  float64 `json:"bollinger_std_dev"`  // Default: 2.0
	MACDFastPeriod   int     `json:"macd_fast_period"`   // Default: 12
	MACDSlowPeriod   int     `json:"macd_slow_period"`   // Default: 26
	MACDSignalPeriod int     `json:"macd_signal_period"` // Default: 9
	VolumePeriod     int     `json:"volume_period"`      // Default: 20
	PriceLookback    int     `json:"price_lookback"`     // Default: 5
}

// DefaultClassifierConfig returns the default classifier configuration.
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		Weights:          DefaultWeights(),
		RSIPeriod:        14,
		BollingerPeriod:  20,
		BollingerStdDev:  2.0,
		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,
		VolumePeriod:     20,
		PriceLookback:    5,
	}
}

// Validate checks weights and periods.
func (c *ClassifierConfig) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	for _, p := range []int{c.RSIPeriod, c.BollingerPeriod, c.MACDFastPeriod,
		c.MACDSlowPeriod, c.MACDSignalPeriod, c.VolumePeriod, c.PriceLookback} {
		if p <= 0 {
			return &InvalidConfigurationError{Reason: "indicator periods must be positive"}
		}
	}
	if c.BollingerStdDev <= 0 {
		return &InvalidConfigurationError{Reason: "bollinger std dev multiplier must be positive"}
	}
	return nil
}

// Classifier combines sub-analyzer and indicator scores into one composite
// market classification. It holds no per-window state; identical windows
// always produce identical output.
type Classifier struct {
	config *ClassifierConfig

	volume      *analysis.VolumeAnalyzer
	priceAction *analysis.PriceActionAnalyzer
	maTrend     *analysis.MATrendAnalyzer
}

// NewClassifier creates a composite classifier, validating the config.
// A nil config uses defaults.
func NewClassifier(config *ClassifierConfig) (*Classifier, error) {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		config:      config,
		volume:      analysis.NewVolumeAnalyzer(config.VolumePeriod),
		priceAction: analysis.NewPriceActionAnalyzer(config.PriceLookback),
		maTrend:     analysis.NewMATrendAnalyzer(),
	}, nil
}

// Classify evaluates the window and returns the composite analysis.
// Any indicator failure aborts the whole evaluation; no component is ever
// silently replaced with a default score.
func (c *Classifier) Classify(candles []coinone.Candle) (*CompositeAnalysis, error) {
	if len(candles) == 0 {
		return nil, &indicator.InsufficientDataError{Indicator: "classifier", Required: 1, Got: 0}
	}
	closes := coinone.Closes(candles)
	currentPrice := closes[len(closes)-1]

	rsi, err := indicator.RSI(closes, c.config.RSIPeriod)
	if err != nil {
		return nil, err
	}

	bands, err := indicator.BollingerBands(closes, c.config.BollingerPeriod, c.config.BollingerStdDev)
	if err != nil {
		return nil, err
	}

	macd, err := indicator.MACD(closes, c.config.MACDFastPeriod, c.config.MACDSlowPeriod, c.config.MACDSignalPeriod)
	if err != nil {
		return nil, err
	}

	volumeScore, err := c.volume.Analyze(candles)
	if err != nil {
		return nil, err
	}

	priceScore, err := c.priceAction.Analyze(candles)
	if err != nil {
		return nil, err
	}

	maScore, err := c.maTrend.Analyze(candles)
	if err != nil {
		return nil, err
	}

	macdTrend := c.histogramTrend(closes, macd)
	bandPosition := bandPosition(currentPrice, bands)

	components := ComponentScores{
		RSI:         rsiScore(rsi),
		Volume:      volumeScore.Score,
		PriceAction: priceScore.Score,
		MATrend:     maScore.Score,
		Bollinger:   bollingerScore(bandPosition),
		MACD:        macdScore(macd.Histogram, macdTrend),
	}

	w := c.config.Weights
	weighted := ComponentScores{
		RSI:         components.RSI * w.RSI,
		Volume:      components.Volume * w.Volume,
		PriceAction: components.PriceAction * w.PriceAction,
		MATrend:     components.MATrend * w.MATrend,
		Bollinger:   components.Bollinger * w.Bollinger,
		MACD:        components.MACD * w.MACD,
	}

	composite := weighted.RSI + weighted.Volume + weighted.PriceAction +
		weighted.MATrend + weighted.Bollinger + weighted.MACD

	return &CompositeAnalysis{
		CompositeScore: composite,
		Condition:      conditionFor(composite),
		Confidence:     confidenceFor(composite, components),
		Components:     components,
		Weighted:       weighted,
		RSI:            rsi,
		Bands:          bands,
		MACD:           macd,
		MACDTrend:      macdTrend,
		VolumeRatio:    volumeScore.VolumeRatio,
		BandPosition:   bandPosition,
		CurrentPrice:   currentPrice,
	}, nil
}

// histogramTrend compares the current histogram against the previous
// frame's. A window one candle shorter that is still too small for MACD
// reads as sideways.
func (c *Classifier) histogramTrend(closes []float64, current *indicator.MACDResult) HistogramTrend {
	prev, err := indicator.MACD(closes[:len(closes)-1],
		c.config.MACDFastPeriod, c.config.MACDSlowPeriod, c.config.MACDSignalPeriod)
	if err != nil {
		return HistogramSideways
	}

	if current.Histogram == 0 || prev.Histogram == 0 {
		return HistogramSideways
	}
	if (current.Histogram > 0) != (prev.Histogram > 0) {
		return HistogramCrossing
	}

	currentMag := math.Abs(current.Histogram)
	prevMag := math.Abs(prev.Histogram)
	switch {
	case currentMag > prevMag*1.05:
		return HistogramImproving
	case currentMag < prevMag*0.95:
		return HistogramWorsening
	default:
		return HistogramSideways
	}
}

// rsiScore maps RSI so oversold reads bullish: <=30 -> +1, >=70 -> -1.
func rsiScore(rsi float64) float64 {
	if rsi <= 30 {
		return 1.0
	}
	if rsi >= 70 {
		return -1.0
	}
	return 1.0 - 2.0*(rsi-30)/40
}

// bandPosition returns the price position inside the Bollinger range:
// 0 at the lower band, 1 at the upper band, unclamped outside.
func bandPosition(price float64, bands *indicator.Bands) float64 {
	span := bands.Upper - bands.Lower
	if span == 0 {
		return 0.5
	}
	return (price - bands.Lower) / span
}

// bollingerScore maps band position so the oversold bottom fifth reads +1
// and the overbought top fifth reads -1.
func bollingerScore(position float64) float64 {
	if position <= 0.2 {
		return 1.0
	}
	if position >= 0.8 {
		return -1.0
	}
	return 1.0 - 2.0*(position-0.2)/0.6
}

// macdScore scores the histogram sign scaled by its trend state.
func macdScore(histogram float64, trend HistogramTrend) float64 {
	if histogram == 0 {
		return 0
	}

	sign := 1.0
	if histogram < 0 {
		sign = -1.0
	}

	switch trend {
	case HistogramImproving:
		return sign * 1.0
	case HistogramWorsening:
		return sign * 0.3
	default: // crossing, sideways
		return sign * 0.5
	}
}

// conditionFor maps the composite score onto the 7-level condition.
func conditionFor(score float64) MarketCondition {
	switch {
	case score > 0.6:
		return ConditionExtremeBullish
	case score > 0.4:
		return ConditionStrongBullish
	case score > 0.15:
		return ConditionWeakBullish
	case score >= -0.15:
		return ConditionRanging
	case score >= -0.4:
		return ConditionWeakBearish
	case score >= -0.6:
		return ConditionStrongBearish
	default:
		return ConditionExtremeBearish
	}
}

// confidenceFor grades by the fraction of components agreeing in sign with
// the composite.
func confidenceFor(composite float64, components ComponentScores) Confidence {
	scores := []float64{components.RSI, components.Volume, components.PriceAction,
		components.MATrend, components.Bollinger, components.MACD}

	agreeing := 0
	for _, s := range scores {
		if s*composite > 0 {
			agreeing++
		}
	}

	fraction := float64(agreeing) / float64(len(scores))
	switch {
	case fraction >= 0.75:
		return ConfidenceHigh
	case fraction >= 0.50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

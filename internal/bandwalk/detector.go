// Package bandwalk detects band-walking: sustained one-directional price
// travel outside the Bollinger envelope, the regime where mean-reversion
// entries get run over.
package bandwalk

import (
	"math"

	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/indicator"
)

// Detector scores band-walking risk per candle. The per-candle score is a
// pure function of the window; the detector additionally keeps small
// inertia counters (consecutive HIGH frames, exhaustion cooldown) across
// frames of one run. One detector serves one candle sequence; use Reset
// before replaying a new sequence.
type Detector struct {
	config *Config
	logger zerolog.Logger

	highFrames      int
	framesBelowHigh int
	wasHigh         bool
}

// NewDetector creates a band-walking detector.
func NewDetector(config *Config, logger zerolog.Logger) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{
		config: config,
		logger: logger.With().Str("component", "BandWalkDetector").Logger(),
	}
}

// Config returns the detector's active configuration.
func (d *Detector) Config() *Config {
	return d.config
}

// Reset clears the inertia counters for a fresh candle sequence.
func (d *Detector) Reset() {
	d.highFrames = 0
	d.framesBelowHigh = 0
	d.wasHigh = false
}

// Evaluate scores the current candle of the window.
func (d *Detector) Evaluate(candles []coinone.Candle) (*Signal, error) {
	cfg := d.config
	if len(candles) == 0 {
		return nil, &indicator.InsufficientDataError{Indicator: "band walk", Required: 1, Got: 0}
	}
	closes := coinone.Closes(candles)
	currentPrice := closes[len(closes)-1]

	bands, err := indicator.BollingerBands(closes, cfg.BollingerPeriod, cfg.BollingerStdDev)
	if err != nil {
		return nil, err
	}
	prevBands, err := indicator.BollingerBands(closes[:len(closes)-1], cfg.BollingerPeriod, cfg.BollingerStdDev)
	if err != nil {
		return nil, err
	}

	rsi, err := indicator.RSI(closes, cfg.RSIPeriod)
	if err != nil {
		return nil, err
	}

	macd, err := indicator.MACD(closes, cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod)
	if err != nil {
		return nil, err
	}

	avgVolume, err := indicator.SMA(coinone.Volumes(candles), cfg.VolumePeriod)
	if err != nil {
		return nil, err
	}

	volumeRatio := 0.0
	if avgVolume > 0 {
		volumeRatio = candles[len(candles)-1].Volume / avgVolume
	}

	widthChange := widthChangePercent(bands, prevBands)
	outsideUpper := currentPrice > bands.Upper
	outsideLower := currentPrice < bands.Lower
	consecutiveOutside := d.countConsecutiveOutside(closes)

	points := ScoreBreakdown{
		Width:   d.widthPoints(widthChange),
		RSI:     d.rsiPoints(rsi),
		MACD:    d.macdPoints(closes, macd, outsideUpper, outsideLower, rsi),
		Outside: d.outsidePoints(consecutiveOutside),
		Volume:  d.volumePoints(volumeRatio),
	}

	score := points.Total()
	risk := d.riskFor(score)
	direction := d.directionFor(outsideUpper, outsideLower, risk, rsi)

	d.advanceCounters(risk)

	signal := &Signal{
		RiskScore:               score,
		Risk:                    risk,
		Direction:               direction,
		ShouldEnterTrendFollow:  risk == RiskHigh && direction != DirectionNone && d.highFrames >= cfg.MinHighFrames,
		ShouldBlockCounterTrend: risk == RiskMedium || risk == RiskHigh,
		Points:                  points,
		WidthChangePercent:      widthChange,
		OutsideUpper:            outsideUpper,
		OutsideLower:            outsideLower,
		ConsecutiveOutside:      consecutiveOutside,
		JustBreached:            consecutiveOutside == 1,
		HighFrames:              d.highFrames,
		ExhaustionConfirmed:     d.wasHigh && risk != RiskHigh && d.framesBelowHigh >= cfg.ExhaustionCooldownFrames,
		RSI:                     rsi,
		VolumeRatio:             volumeRatio,
		MACDHistogram:           macd.Histogram,
	}

	if risk == RiskHigh {
		d.logger.Debug().
			Int("score", score).
			Str("direction", string(direction)).
			Int("high_frames", d.highFrames).
			Msg("Band-walking risk HIGH")
	}

	return signal, nil
}

func widthChangePercent(current, previous *indicator.Bands) float64 {
	prevWidth := previous.Width()
	if prevWidth == 0 {
		return 0
	}
	return (current.Width() - prevWidth) / prevWidth * 100
}

func (d *Detector) widthPoints(changePercent float64) int {
	cfg := d.config
	switch {
	case changePercent > cfg.WidthStrongPercent:
		return cfg.WidthStrongPoints
	case changePercent > cfg.WidthModeratePercent:
		return cfg.WidthModeratePoints
	case changePercent > 0:
		return cfg.WidthAnyPoints
	default:
		return 0
	}
}

func (d *Detector) rsiPoints(rsi float64) int {
	cfg := d.config
	if rsi >= cfg.RSIExtremeUpper || rsi <= cfg.RSIExtremeLower {
		return cfg.RSIExtremePoints
	}
	if rsi >= cfg.RSINearUpper || rsi <= cfg.RSINearLower {
		return cfg.RSINearPoints
	}
	return 0
}

// macdPoints confirms the histogram agrees with the breach (or, inside the
// band, with the RSI lean); a growing aligned histogram scores full points.
func (d *Detector) macdPoints(closes []float64, macd *indicator.MACDResult, outsideUpper, outsideLower bool, rsi float64) int {
	cfg := d.config

	bullishContext := outsideUpper || (!outsideLower && rsi > cfg.DirectionRSIUp)
	bearishContext := outsideLower || (!outsideUpper && rsi < cfg.DirectionRSIDown)

	aligned := (bullishContext && macd.Histogram > 0) || (bearishContext && macd.Histogram < 0)
	if !aligned {
		return 0
	}

	prev, err := indicator.MACD(closes[:len(closes)-1],
		cfg.MACDFastPeriod, cfg.MACDSlowPeriod, cfg.MACDSignalPeriod)
	if err == nil && math.Abs(macd.Histogram) > math.Abs(prev.Histogram) {
		return cfg.MACDStrongPoints
	}
	return cfg.MACDAlignedPoints
}

// countConsecutiveOutside recomputes the envelope for each trailing
// sub-window and counts how many closes in a row sit outside it, up to the
// configured lookback.
func (d *Detector) countConsecutiveOutside(closes []float64) int {
	cfg := d.config

	count := 0
	for i := 0; i < cfg.OutsideLookback; i++ {
		end := len(closes) - i
		if end < cfg.BollingerPeriod {
			break
		}

		window := closes[:end]
		bands, err := indicator.BollingerBands(window, cfg.BollingerPeriod, cfg.BollingerStdDev)
		if err != nil {
			break
		}

		price := window[len(window)-1]
		if price > bands.Upper || price < bands.Lower {
			count++
		} else {
			break
		}
	}

	return count
}

func (d *Detector) outsidePoints(consecutive int) int {
	cfg := d.config
	points := consecutive * cfg.OutsidePointsPerBar
	if consecutive >= cfg.OutsideLookback-1 {
		points = cfg.OutsideMaxPoints
	}
	if points > cfg.OutsideMaxPoints {
		points = cfg.OutsideMaxPoints
	}
	return points
}

func (d *Detector) volumePoints(ratio float64) int {
	cfg := d.config
	switch {
	case ratio >= cfg.VolumeStrongRatio:
		return cfg.VolumeStrongPoints
	case ratio >= cfg.VolumeModerateRatio:
		return cfg.VolumeModeratePoints
	default:
		return 0
	}
}

func (d *Detector) riskFor(score int) Risk {
	cfg := d.config
	switch {
	case score >= cfg.HighThreshold:
		return RiskHigh
	case score >= cfg.MediumThreshold:
		return RiskMedium
	case score >= cfg.LowThreshold:
		return RiskLow
	default:
		return RiskNone
	}
}

// directionFor follows the breached side; inside the band, MEDIUM or
// higher risk lets RSI infer the lean.
func (d *Detector) directionFor(outsideUpper, outsideLower bool, risk Risk, rsi float64) Direction {
	if outsideUpper {
		return DirectionUp
	}
	if outsideLower {
		return DirectionDown
	}
	if risk.Level() >= RiskMedium.Level() {
		if rsi > d.config.DirectionRSIUp {
			return DirectionUp
		}
		if rsi < d.config.DirectionRSIDown {
			return DirectionDown
		}
	}
	return DirectionNone
}

func (d *Detector) advanceCounters(risk Risk) {
	if risk == RiskHigh {
		d.highFrames++
		d.framesBelowHigh = 0
		d.wasHigh = true
		return
	}

	d.highFrames = 0
	if d.wasHigh {
		d.framesBelowHigh++
	}
}

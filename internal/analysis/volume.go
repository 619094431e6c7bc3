package analysis

import (
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/indicator"
)

// VolumeScore represents volume analysis results for the current candle.
type VolumeScore struct {
	Score         float64 // -1.0 to 1.0
	CurrentVolume float64
	AverageVolume float64
	VolumeRatio   float64 // Current / Average
	IsHighVolume  bool    // ratio >= 1.5
	IsLowVolume   bool    // ratio <= 0.5
}

// VolumeAnalyzer scores the current candle's volume against its recent
// average. Ratios in [0.33, 3.0] map linearly to [-1, 1], clamped beyond.
type VolumeAnalyzer struct {
	avgPeriod int
	ratioLow  float64
	ratioHigh float64
}

// NewVolumeAnalyzer creates a new volume analyzer.
func NewVolumeAnalyzer(avgPeriod int) *VolumeAnalyzer {
	if avgPeriod <= 0 {
		avgPeriod = 20 // Default 20-period average
	}
	return &VolumeAnalyzer{
		avgPeriod: avgPeriod,
		ratioLow:  0.33,
		ratioHigh: 3.0,
	}
}

// Analyze scores the last candle's volume.
func (va *VolumeAnalyzer) Analyze(candles []coinone.Candle) (*VolumeScore, error) {
	avgVolume, err := indicator.SMA(coinone.Volumes(candles), va.avgPeriod)
	if err != nil {
		return nil, err
	}

	currentVolume := candles[len(candles)-1].Volume

	var ratio float64
	if avgVolume > 0 {
		ratio = currentVolume / avgVolume
	}

	score := mapLinear(ratio, va.ratioLow, va.ratioHigh)

	return &VolumeScore{
		Score:         score,
		CurrentVolume: currentVolume,
		AverageVolume: avgVolume,
		VolumeRatio:   ratio,
		IsHighVolume:  ratio >= 1.5,
		IsLowVolume:   ratio <= 0.5,
	}, nil
}

// mapLinear maps v in [lo, hi] linearly onto [-1, 1], clamping outside.
func mapLinear(v, lo, hi float64) float64 {
	if v <= lo {
		return -1.0
	}
	if v >= hi {
		return 1.0
	}
	return -1.0 + 2.0*(v-lo)/(hi-lo)
}

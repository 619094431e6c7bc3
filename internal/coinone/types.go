package coinone

import (
	"errors"
	"fmt"
	"time"
)

// Candle represents one OHLCV bar from the Coinone chart API.
// Timestamps are Unix milliseconds; candles are ordered ascending and
// never mutated after parsing.
type Candle struct {
	Timestamp   int64   `json:"timestamp"`
	Open        float64 `json:"open,string"`
	High        float64 `json:"high,string"`
	Low         float64 `json:"low,string"`
	Close       float64 `json:"close,string"`
	Volume      float64 `json:"target_volume,string"`
	QuoteVolume float64 `json:"quote_volume,string"`
}

// Time returns the candle open time.
func (c Candle) Time() time.Time {
	return time.Unix(0, c.Timestamp*int64(time.Millisecond))
}

// Ticker represents the latest traded price for a pair.
type Ticker struct {
	QuoteCurrency  string  `json:"quote_currency"`
	TargetCurrency string  `json:"target_currency"`
	Timestamp      int64   `json:"timestamp"`
	Last           float64 `json:"last,string"`
	High           float64 `json:"high,string"`
	Low            float64 `json:"low,string"`
	TargetVolume   float64 `json:"target_volume,string"`
	QuoteVolume    float64 `json:"quote_volume,string"`
}

// Interval is a supported chart interval.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval4h  Interval = "4h"
	Interval1d  Interval = "1d"
)

// Duration returns the bar length for the interval.
func (i Interval) Duration() (time.Duration, error) {
	switch i {
	case Interval1m:
		return time.Minute, nil
	case Interval5m:
		return 5 * time.Minute, nil
	case Interval15m:
		return 15 * time.Minute, nil
	case Interval30m:
		return 30 * time.Minute, nil
	case Interval1h:
		return time.Hour, nil
	case Interval4h:
		return 4 * time.Hour, nil
	case Interval1d:
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown interval %q", string(i))
	}
}

// ErrGappedSeries is returned when a candle series has missing bars.
// The engine refuses to evaluate gapped data rather than interpolating.
var ErrGappedSeries = errors.New("candle series has missing bars")

// ValidateContinuity checks that candles are strictly ascending with no
// missing bars for the given interval.
func ValidateContinuity(candles []Candle, interval Interval) error {
	if len(candles) < 2 {
		return nil
	}

	step, err := interval.Duration()
	if err != nil {
		return err
	}
	stepMs := step.Milliseconds()

	for i := 1; i < len(candles); i++ {
		delta := candles[i].Timestamp - candles[i-1].Timestamp
		if delta != stepMs {
			return fmt.Errorf("%w: gap of %dms between index %d and %d (expected %dms)",
				ErrGappedSeries, delta, i-1, i, stepMs)
		}
	}

	return nil
}

// Closes extracts the close series from candles.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

// Volumes extracts the volume series from candles.
func Volumes(candles []Candle) []float64 {
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		volumes[i] = c.Volume
	}
	return volumes
}

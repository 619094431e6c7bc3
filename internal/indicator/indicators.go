// Package indicator provides pure technical indicator calculations over
// ordered price/volume series. Every function recomputes from the raw
// window on each call; nothing is cached between evaluations.
package indicator

import "math"

// ============================================================================
// MOVING AVERAGES
// ============================================================================

// SMA calculates the Simple Moving Average over the trailing period.
func SMA(prices []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if err := checkLen("SMA", period, len(prices)); err != nil {
		return 0, err
	}

	sum := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}

	return sum / float64(period), nil
}

// EMA calculates the Exponential Moving Average, seeded with the SMA of the
// first period values then applying the 2/(period+1) multiplier iteratively.
func EMA(prices []float64, period int) (float64, error) {
	series, err := EMASeries(prices, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// EMASeries returns the full EMA series. The result has
// len(prices)-period+1 values; result[i] corresponds to prices[period-1+i].
func EMASeries(prices []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if err := checkLen("EMA", period, len(prices)); err != nil {
		return nil, err
	}

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += prices[i]
	}
	seed /= float64(period)

	multiplier := 2.0 / float64(period+1)

	series := make([]float64, 0, len(prices)-period+1)
	series = append(series, seed)

	ema := seed
	for i := period; i < len(prices); i++ {
		ema = (prices[i] * multiplier) + (ema * (1 - multiplier))
		series = append(series, ema)
	}

	return series, nil
}

// ============================================================================
// RSI (Relative Strength Index)
// ============================================================================

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// Requires period+1 closes. When the average loss is zero the RSI is 100,
// guarding the divide-by-zero.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, ErrInvalidPeriod
	}
	if err := checkLen("RSI", period+1, len(closes)); err != nil {
		return 0, err
	}

	// Initial averages over the first period changes.
	gains := 0.0
	losses := 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	// Wilder's smoothing over the remaining changes.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// ============================================================================
// BOLLINGER BANDS
// ============================================================================

// Bands holds Bollinger Band values.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Width returns the band width normalized by the middle band.
func (b *Bands) Width() float64 {
	if b.Middle == 0 {
		return 0
	}
	return (b.Upper - b.Lower) / b.Middle
}

// BollingerBands calculates Bollinger Bands: middle = SMA(period), bands at
// middle +/- multiplier * population standard deviation over the same window.
func BollingerBands(prices []float64, period int, stdDevMultiplier float64) (*Bands, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if err := checkLen("BollingerBands", period, len(prices)); err != nil {
		return nil, err
	}

	middle, err := SMA(prices, period)
	if err != nil {
		return nil, err
	}

	variance := 0.0
	for i := len(prices) - period; i < len(prices); i++ {
		diff := prices[i] - middle
		variance += diff * diff
	}
	stdDev := math.Sqrt(variance / float64(period))

	return &Bands{
		Upper:  middle + (stdDev * stdDevMultiplier),
		Middle: middle,
		Lower:  middle - (stdDev * stdDevMultiplier),
	}, nil
}

// ============================================================================
// MACD (Moving Average Convergence Divergence)
// ============================================================================

// MACDResult holds MACD indicator values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD calculates the MACD line (fast EMA - slow EMA), the signal line
// (EMA of the MACD line series) and the histogram (line - signal).
// Requires slow+signal prices.
func MACD(prices []float64, fastPeriod, slowPeriod, signalPeriod int) (*MACDResult, error) {
	if fastPeriod <= 0 || slowPeriod <= 0 || signalPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if err := checkLen("MACD", slowPeriod+signalPeriod, len(prices)); err != nil {
		return nil, err
	}

	line, err := MACDLineSeries(prices, fastPeriod, slowPeriod)
	if err != nil {
		return nil, err
	}

	signalSeries, err := EMASeries(line, signalPeriod)
	if err != nil {
		return nil, err
	}

	macdLine := line[len(line)-1]
	signalLine := signalSeries[len(signalSeries)-1]

	return &MACDResult{
		MACD:      macdLine,
		Signal:    signalLine,
		Histogram: macdLine - signalLine,
	}, nil
}

// MACDLineSeries returns the MACD line series (fast EMA - slow EMA),
// starting at the first index where the slow EMA exists.
func MACDLineSeries(prices []float64, fastPeriod, slowPeriod int) ([]float64, error) {
	fastSeries, err := EMASeries(prices, fastPeriod)
	if err != nil {
		return nil, err
	}
	slowSeries, err := EMASeries(prices, slowPeriod)
	if err != nil {
		return nil, err
	}

	// Align the fast series with the shorter slow series.
	offset := len(fastSeries) - len(slowSeries)

	line := make([]float64, len(slowSeries))
	for i := range slowSeries {
		line[i] = fastSeries[i+offset] - slowSeries[i]
	}

	return line, nil
}

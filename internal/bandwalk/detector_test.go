package bandwalk

import (
	"testing"

	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/coinone"
)

func testDetector(config *Config) *Detector {
	return NewDetector(config, zerolog.Nop())
}

// breakoutCandles builds a flat base with tiny noise, then an accelerating
// ramp that rides outside the upper band: 54 bars near 100, then closes
// 101, 103, 106, 110, 115, 121.
func breakoutCandles() []coinone.Candle {
	candles := make([]coinone.Candle, 0, 60)

	price := 100.0
	for i := 0; i < 54; i++ {
		noise := 0.05
		if i%2 == 0 {
			noise = -0.05
		}
		close := price + noise
		candles = append(candles, coinone.Candle{
			Timestamp: int64(i) * 300_000,
			Open:      close,
			High:      close + 0.1,
			Low:       close - 0.1,
			Close:     close,
			Volume:    1000,
		})
	}

	ramp := []float64{101, 103, 106, 110, 115, 121}
	for i, close := range ramp {
		candles = append(candles, coinone.Candle{
			Timestamp: int64(54+i) * 300_000,
			Open:      close - 1,
			High:      close + 0.5,
			Low:       close - 1.5,
			Close:     close,
			Volume:    1000,
		})
	}

	return candles
}

func TestEvaluate_AcceleratingBreakoutIsHighRiskUp(t *testing.T) {
	detector := testDetector(nil)

	signal, err := detector.Evaluate(breakoutCandles())
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}

	if signal.Risk != RiskHigh {
		t.Errorf("risk = %s (score %d), want HIGH", signal.Risk, signal.RiskScore)
	}
	if signal.Direction != DirectionUp {
		t.Errorf("direction = %s, want UP", signal.Direction)
	}
	if !signal.OutsideUpper {
		t.Error("expected close outside the upper band")
	}
	if !signal.ShouldBlockCounterTrend {
		t.Error("HIGH risk must block counter-trend entries")
	}
}

func TestEvaluate_TrendFollowInertia(t *testing.T) {
	detector := testDetector(nil)
	candles := breakoutCandles()

	first, err := detector.Evaluate(candles)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if first.ShouldEnterTrendFollow {
		t.Error("first HIGH frame should not fire trend-follow yet (inertia)")
	}

	second, err := detector.Evaluate(candles)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if !second.ShouldEnterTrendFollow {
		t.Errorf("second consecutive HIGH frame should fire trend-follow (frames=%d)", second.HighFrames)
	}

	// A fresh detector (or Reset) starts the count over.
	detector.Reset()
	third, err := detector.Evaluate(candles)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if third.ShouldEnterTrendFollow {
		t.Error("Reset must clear the inertia counter")
	}
}

func TestEvaluate_FlatSeriesScoresNone(t *testing.T) {
	detector := testDetector(nil)

	candles := make([]coinone.Candle, 60)
	price := 100.0
	for i := range candles {
		noise := 0.05
		if i%2 == 0 {
			noise = -0.05
		}
		candles[i] = coinone.Candle{
			Timestamp: int64(i) * 300_000,
			Close:     price + noise,
			Volume:    1000,
		}
	}

	signal, err := detector.Evaluate(candles)
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if signal.Risk == RiskHigh || signal.Risk == RiskMedium {
		t.Errorf("risk = %s (score %d), want NONE or LOW for flat series", signal.Risk, signal.RiskScore)
	}
	if signal.ShouldEnterTrendFollow {
		t.Error("flat series must not fire trend-follow")
	}
}

func TestEvaluate_InsufficientData(t *testing.T) {
	detector := testDetector(nil)
	if _, err := detector.Evaluate(breakoutCandles()[:30]); err == nil {
		t.Error("expected error for window shorter than MACD minimum")
	}
}

func TestScenarioScoring(t *testing.T) {
	// Width +4%, RSI 75, strong MACD confirmation, 4 consecutive outside
	// candles, volume ratio 2.0 must land at or above the HIGH threshold.
	d := testDetector(nil)

	total := d.widthPoints(4.0) + d.rsiPoints(75) + d.config.MACDStrongPoints +
		d.outsidePoints(4) + d.volumePoints(2.0)
	if total < d.config.HighThreshold {
		t.Errorf("scenario score = %d, want >= %d", total, d.config.HighThreshold)
	}

	if dir := d.directionFor(true, false, d.riskFor(total), 75); dir != DirectionUp {
		t.Errorf("direction = %s, want UP for an upper-band breach", dir)
	}
}

func TestWidthPoints_Monotonic(t *testing.T) {
	d := testDetector(nil)

	previous := -1
	for _, pct := range []float64{-5, 0, 0.5, 1.5, 3.5, 10} {
		points := d.widthPoints(pct)
		if points < previous {
			t.Errorf("widthPoints(%f) = %d decreased from %d", pct, points, previous)
		}
		previous = points
	}
}

func TestRSIPoints_MonotonicInExtremity(t *testing.T) {
	d := testDetector(nil)

	// Moving upward from neutral toward overbought never loses points.
	previous := -1
	for _, rsi := range []float64{50, 60, 64.9, 65, 69, 70, 85, 100} {
		points := d.rsiPoints(rsi)
		if points < previous {
			t.Errorf("rsiPoints(%f) = %d decreased from %d", rsi, points, previous)
		}
		previous = points
	}

	// Mirror side: moving downward toward oversold.
	previous = -1
	for _, rsi := range []float64{50, 40, 35, 32, 30, 15, 0} {
		points := d.rsiPoints(rsi)
		if points < previous {
			t.Errorf("rsiPoints(%f) = %d decreased from %d", rsi, points, previous)
		}
		previous = points
	}
}

func TestVolumePoints_Monotonic(t *testing.T) {
	d := testDetector(nil)

	previous := -1
	for _, ratio := range []float64{0, 0.5, 1.0, 1.5, 1.9, 2.0, 5.0} {
		points := d.volumePoints(ratio)
		if points < previous {
			t.Errorf("volumePoints(%f) = %d decreased from %d", ratio, points, previous)
		}
		previous = points
	}
}

func TestOutsidePoints_CappedAtMax(t *testing.T) {
	d := testDetector(nil)

	previous := -1
	for count := 0; count <= 8; count++ {
		points := d.outsidePoints(count)
		if points < previous {
			t.Errorf("outsidePoints(%d) = %d decreased from %d", count, points, previous)
		}
		if points > d.config.OutsideMaxPoints {
			t.Errorf("outsidePoints(%d) = %d exceeds max %d", count, points, d.config.OutsideMaxPoints)
		}
		previous = points
	}
}

func TestRiskThresholds(t *testing.T) {
	d := testDetector(nil)

	tests := []struct {
		score int
		want  Risk
	}{
		{0, RiskNone},
		{29, RiskNone},
		{30, RiskLow},
		{49, RiskLow},
		{50, RiskMedium},
		{69, RiskMedium},
		{70, RiskHigh},
		{105, RiskHigh},
	}

	for _, tt := range tests {
		if got := d.riskFor(tt.score); got != tt.want {
			t.Errorf("riskFor(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestDirectionInference(t *testing.T) {
	d := testDetector(nil)

	tests := []struct {
		name         string
		outsideUpper bool
		outsideLower bool
		risk         Risk
		rsi          float64
		want         Direction
	}{
		{"upper breach wins", true, false, RiskLow, 20, DirectionUp},
		{"lower breach wins", false, true, RiskLow, 80, DirectionDown},
		{"inside band, medium risk, bullish rsi", false, false, RiskMedium, 65, DirectionUp},
		{"inside band, high risk, bearish rsi", false, false, RiskHigh, 35, DirectionDown},
		{"inside band, medium risk, neutral rsi", false, false, RiskMedium, 50, DirectionNone},
		{"inside band, low risk ignores rsi", false, false, RiskLow, 80, DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.directionFor(tt.outsideUpper, tt.outsideLower, tt.risk, tt.rsi)
			if got != tt.want {
				t.Errorf("directionFor = %s, want %s", got, tt.want)
			}
		})
	}
}

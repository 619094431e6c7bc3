package market

import (
	"math"
	"reflect"
	"testing"

	"coinone-trading-bot/internal/coinone"
)

// trendCandles builds n candles whose close moves by drift per bar.
func trendCandles(n int, start, drift, volume float64) []coinone.Candle {
	candles := make([]coinone.Candle, n)
	price := start
	for i := range candles {
		candles[i] = coinone.Candle{
			Timestamp: int64(i) * 300_000,
			Open:      price,
			High:      price * 1.001,
			Low:       price * 0.999,
			Close:     price,
			Volume:    volume,
		}
		price += drift
	}
	return candles
}

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults sum to one", DefaultWeights(), false},
		{"short sum rejected", Weights{RSI: 0.25, Volume: 0.20, PriceAction: 0.20, MATrend: 0.15, Bollinger: 0.10, MACD: 0.05}, true},
		{"excess sum rejected", Weights{RSI: 0.5, Volume: 0.5, PriceAction: 0.5, MATrend: 0, Bollinger: 0, MACD: 0}, true},
		{"rebalanced sum accepted", Weights{RSI: 0.4, Volume: 0.1, PriceAction: 0.2, MATrend: 0.1, Bollinger: 0.1, MACD: 0.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err != nil {
				if _, ok := err.(*InvalidConfigurationError); !ok {
					t.Errorf("error type = %T, want *InvalidConfigurationError", err)
				}
			}
		})
	}
}

func TestNewClassifier_RejectsBadConfig(t *testing.T) {
	config := DefaultClassifierConfig()
	config.RSIPeriod = 0
	if _, err := NewClassifier(config); err == nil {
		t.Error("expected error for zero RSI period")
	}

	config = DefaultClassifierConfig()
	config.Weights.MACD = 0.5
	if _, err := NewClassifier(config); err == nil {
		t.Error("expected error for weights not summing to 1.0")
	}
}

func TestClassify_CompositeEqualsWeightedSum(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig())
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}

	candles := trendCandles(80, 100, 0.5, 1000)
	result, err := classifier.Classify(candles)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}

	sum := result.Weighted.RSI + result.Weighted.Volume + result.Weighted.PriceAction +
		result.Weighted.MATrend + result.Weighted.Bollinger + result.Weighted.MACD
	if math.Abs(result.CompositeScore-sum) > 1e-12 {
		t.Errorf("composite %f != weighted sum %f", result.CompositeScore, sum)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig())
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}

	candles := trendCandles(80, 100, -0.3, 1500)

	first, err := classifier.Classify(candles)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}
	second, err := classifier.Classify(candles)
	if err != nil {
		t.Fatalf("Classify returned error: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated classification of the same window differs")
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig())
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}

	if _, err := classifier.Classify(trendCandles(20, 100, 1, 1000)); err == nil {
		t.Error("expected error for window shorter than MACD minimum")
	}
}

func TestClassify_ComponentBounds(t *testing.T) {
	classifier, err := NewClassifier(DefaultClassifierConfig())
	if err != nil {
		t.Fatalf("NewClassifier returned error: %v", err)
	}

	for _, drift := range []float64{-2, -0.5, 0, 0.5, 2} {
		result, err := classifier.Classify(trendCandles(80, 100, drift, 1000))
		if err != nil {
			t.Fatalf("Classify returned error: %v", err)
		}
		for name, s := range map[string]float64{
			"rsi": result.Components.RSI, "volume": result.Components.Volume,
			"price_action": result.Components.PriceAction, "ma_trend": result.Components.MATrend,
			"bollinger": result.Components.Bollinger, "macd": result.Components.MACD,
		} {
			if s < -1 || s > 1 {
				t.Errorf("component %s = %f out of [-1, 1] at drift %f", name, s, drift)
			}
		}
		if result.CompositeScore < -1 || result.CompositeScore > 1 {
			t.Errorf("composite %f out of [-1, 1]", result.CompositeScore)
		}
	}
}

func TestConditionThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  MarketCondition
	}{
		{0.7, ConditionExtremeBullish},
		{0.61, ConditionExtremeBullish},
		{0.6, ConditionStrongBullish},
		{0.41, ConditionStrongBullish},
		{0.4, ConditionWeakBullish},
		{0.16, ConditionWeakBullish},
		{0.15, ConditionRanging},
		{0.0, ConditionRanging},
		{-0.15, ConditionRanging},
		{-0.16, ConditionWeakBearish},
		{-0.4, ConditionWeakBearish},
		{-0.41, ConditionStrongBearish},
		{-0.6, ConditionStrongBearish},
		{-0.61, ConditionExtremeBearish},
	}

	for _, tt := range tests {
		if got := conditionFor(tt.score); got != tt.want {
			t.Errorf("conditionFor(%f) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestRSIScore(t *testing.T) {
	tests := []struct {
		rsi  float64
		want float64
	}{
		{20, 1.0},
		{30, 1.0},
		{50, 0.0},
		{70, -1.0},
		{90, -1.0},
	}

	for _, tt := range tests {
		if got := rsiScore(tt.rsi); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("rsiScore(%f) = %f, want %f", tt.rsi, got, tt.want)
		}
	}
}

func TestBollingerScore(t *testing.T) {
	tests := []struct {
		position float64
		want     float64
	}{
		{0.0, 1.0},
		{0.2, 1.0},
		{0.5, 0.0},
		{0.8, -1.0},
		{1.1, -1.0},
	}

	for _, tt := range tests {
		if got := bollingerScore(tt.position); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("bollingerScore(%f) = %f, want %f", tt.position, got, tt.want)
		}
	}
}

func TestMACDScore(t *testing.T) {
	tests := []struct {
		name      string
		histogram float64
		trend     HistogramTrend
		want      float64
	}{
		{"improving bullish", 10, HistogramImproving, 1.0},
		{"improving bearish", -10, HistogramImproving, -1.0},
		{"worsening bullish", 10, HistogramWorsening, 0.3},
		{"worsening bearish", -10, HistogramWorsening, -0.3},
		{"crossing bullish", 10, HistogramCrossing, 0.5},
		{"sideways bearish", -10, HistogramSideways, -0.5},
		{"zero histogram", 0, HistogramImproving, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := macdScore(tt.histogram, tt.trend); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("macdScore = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestConfidenceFor(t *testing.T) {
	// Five of six components agree with a positive composite.
	components := ComponentScores{RSI: 0.5, Volume: 0.5, PriceAction: 0.5, MATrend: 0.5, Bollinger: 0.5, MACD: -0.5}
	if got := confidenceFor(0.3, components); got != ConfidenceHigh {
		t.Errorf("5/6 agreement = %s, want high", got)
	}

	// Three of six agree.
	components = ComponentScores{RSI: 0.5, Volume: 0.5, PriceAction: 0.5, MATrend: -0.5, Bollinger: -0.5, MACD: -0.1}
	if got := confidenceFor(0.1, components); got != ConfidenceMedium {
		t.Errorf("3/6 agreement = %s, want medium", got)
	}

	// Two of six agree.
	components = ComponentScores{RSI: 0.9, Volume: 0.9, PriceAction: -0.5, MATrend: -0.5, Bollinger: -0.1, MACD: -0.1}
	if got := confidenceFor(0.1, components); got != ConfidenceLow {
		t.Errorf("2/6 agreement = %s, want low", got)
	}
}

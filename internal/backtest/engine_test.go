package backtest

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/position"
	"coinone-trading-bot/internal/strategy"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, nil, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func flatCandles(n int, price, volume float64) []coinone.Candle {
	candles := make([]coinone.Candle, n)
	base := int64(1_700_000_000_000)
	for i := range candles {
		candles[i] = coinone.Candle{
			Timestamp: base + int64(i)*300_000,
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    volume,
		}
	}
	return candles
}

func TestEngine_FlatSeriesProducesNoTrades(t *testing.T) {
	e := newTestEngine(t, nil)

	candles := flatCandles(160, 50, 1000)
	result, err := e.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.TotalTrades != 0 {
		t.Fatalf("TotalTrades = %d, want 0 on a flat series", result.TotalTrades)
	}
	if math.Abs(result.FinalCapital-result.InitialCapital) > 1e-9 {
		t.Fatalf("FinalCapital = %v, want unchanged %v", result.FinalCapital, result.InitialCapital)
	}
	wantSteps := 160 - e.config.WarmupWindow
	if len(result.EquityCurve) != wantSteps {
		t.Fatalf("equity curve length = %d, want %d", len(result.EquityCurve), wantSteps)
	}
}

func TestEngine_RejectsShortSeries(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Run(context.Background(), flatCandles(50, 50, 1000))
	if !errors.Is(err, ErrNotEnoughData) {
		t.Fatalf("err = %v, want ErrNotEnoughData", err)
	}
}

func TestEngine_ConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero capital", func(c *Config) { c.InitialCapital = 0 }},
		{"size fraction above one", func(c *Config) { c.SizeFraction = 1.5 }},
		{"negative fee", func(c *Config) { c.FeeRate = -0.001 }},
		{"zero leverage", func(c *Config) { c.Leverage = 0 }},
		{"zero warmup", func(c *Config) { c.WarmupWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if _, err := NewEngine(cfg, nil, nil, nil, zerolog.Nop()); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestEngine_ContextCancellationReturnsPartialResult(t *testing.T) {
	e := newTestEngine(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, flatCandles(160, 50, 1000))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if result == nil {
		t.Fatal("cancelled run must still return the partial result")
	}
}

// Entry fee and exit fee are taken from notional per side, and capital
// compounds through the trade's PnL.
func TestEngine_FeeAndCapitalAccounting(t *testing.T) {
	e := newTestEngine(t, nil)
	e.capital = 10000
	result := &Result{InitialCapital: 10000}

	e.openPosition(position.SideLong, strategy.Decision{
		Action:     strategy.ActionOpenLong,
		Strategy:   strategy.StrategyTrendFollowLong,
		EntryPrice: 100,
		StopLoss:   95,
		TakeProfit: 105,
	}, 1_700_000_000_000)

	// notional 9500, quantity 95, entry fee 1.9
	if got := e.tracker.OpenQuantity(); math.Abs(got-95) > 1e-9 {
		t.Fatalf("quantity = %v, want 95", got)
	}
	if math.Abs(e.capital-9998.1) > 1e-9 {
		t.Fatalf("capital after entry = %v, want 9998.1", e.capital)
	}
	if e.stopLoss != 95 || e.takeProfit != 105 {
		t.Fatalf("stops = %v/%v, want 95/105", e.stopLoss, e.takeProfit)
	}

	e.closeOpenPosition(result, 110, 1_700_000_300_000, "take profit")

	// pnl 950, exit fee 110*95*0.0002 = 2.09
	wantCapital := 9998.1 + 950 - 2.09
	if math.Abs(e.capital-wantCapital) > 1e-9 {
		t.Fatalf("capital after close = %v, want %v", e.capital, wantCapital)
	}
	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want 1", len(result.Trades))
	}
	trade := result.Trades[0]
	if math.Abs(trade.Fees-3.99) > 1e-9 {
		t.Fatalf("trade fees = %v, want 3.99", trade.Fees)
	}
	if math.Abs(trade.CapitalAfter-wantCapital) > 1e-9 {
		t.Fatalf("CapitalAfter = %v, want %v", trade.CapitalAfter, wantCapital)
	}
	if e.tracker.IsOpen() {
		t.Fatal("tracker must be flat after close")
	}
}

func TestEngine_FinishForceClosesOpenPosition(t *testing.T) {
	e := newTestEngine(t, nil)
	e.capital = 10000
	result := &Result{InitialCapital: 10000}

	e.openPosition(position.SideShort, strategy.Decision{
		Action:     strategy.ActionOpenShort,
		Strategy:   strategy.StrategyCounterTrendShort,
		EntryPrice: 100,
	}, 1_700_000_000_000)

	e.finish(result, coinone.Candle{Timestamp: 1_700_000_600_000, Close: 98})

	if len(result.Trades) != 1 {
		t.Fatalf("trades = %d, want forced close", len(result.Trades))
	}
	if result.Trades[0].Reasoning != "end of data" {
		t.Fatalf("Reasoning = %q, want end of data", result.Trades[0].Reasoning)
	}
	if result.Trades[0].PnL <= 0 {
		t.Fatalf("short closed below entry must profit, got %v", result.Trades[0].PnL)
	}
	if math.Abs(result.FinalCapital-e.capital) > 1e-12 {
		t.Fatalf("FinalCapital = %v, want %v", result.FinalCapital, e.capital)
	}
}

func TestComputeMetrics(t *testing.T) {
	result := &Result{
		Trades: []Trade{
			{TradeResult: position.TradeResult{PnL: 10}},
			{TradeResult: position.TradeResult{PnL: 5}},
			{TradeResult: position.TradeResult{PnL: -5}},
		},
		EquityCurve: []float64{100, 120, 90, 110, 80},
	}
	computeMetrics(result)

	if result.TotalTrades != 3 || result.WinningTrades != 2 || result.LosingTrades != 1 {
		t.Fatalf("trade counts = %d/%d/%d", result.TotalTrades, result.WinningTrades, result.LosingTrades)
	}
	if math.Abs(result.WinRate-200.0/3) > 1e-9 {
		t.Fatalf("WinRate = %v, want 66.67", result.WinRate)
	}
	if math.Abs(result.ProfitFactor-3.0) > 1e-9 {
		t.Fatalf("ProfitFactor = %v, want 3.0", result.ProfitFactor)
	}
	// peak 120 to trough 80
	want := (120.0 - 80.0) / 120.0 * 100
	if math.Abs(result.MaxDrawdown-want) > 1e-9 {
		t.Fatalf("MaxDrawdown = %v, want %v", result.MaxDrawdown, want)
	}
}

func TestMaxDrawdown_MonotonicEquity(t *testing.T) {
	if dd := maxDrawdown([]float64{100, 110, 125, 130}); dd != 0 {
		t.Fatalf("drawdown on rising equity = %v, want 0", dd)
	}
	if dd := maxDrawdown(nil); dd != 0 {
		t.Fatalf("drawdown on empty curve = %v, want 0", dd)
	}
}

func TestWriteCSV(t *testing.T) {
	entry := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exit := entry.Add(30 * time.Minute)
	result := &Result{
		Trades: []Trade{
			{
				TradeResult: position.TradeResult{
					EntryTime:  entry,
					ExitTime:   exit,
					Side:       position.SideLong,
					Strategy:   strategy.StrategyTrendFollowLong,
					EntryPrice: 100,
					ExitPrice:  105,
					Size:       2,
					PnL:        10,
					PnLPercent: 5,
					Reasoning:  "take profit hit at 105.0000",
				},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, result); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want header + 1 trade", len(lines))
	}
	if !strings.HasPrefix(lines[0], "trade,entry_time,exit_time,side,strategy") {
		t.Fatalf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "2024-03-01T09:00:00Z") ||
		!strings.Contains(lines[1], "trend_follow_long") ||
		!strings.Contains(lines[1], ",105,") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestWriteReport_ContainsSummary(t *testing.T) {
	result := &Result{
		InitialCapital: 10000,
		FinalCapital:   10500,
		TotalPnL:       500,
		TotalTrades:    2,
		WinningTrades:  2,
		WinRate:        100,
		ProfitFactor:   2.5,
	}

	var buf bytes.Buffer
	WriteReport(&buf, result)

	out := buf.String()
	for _, want := range []string{"10000.00", "10500.00", "Win Rate", "Profit Factor"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

// Package backtest replays the full analysis pipeline over historical
// candles, step by step, with compounding capital and per-side fees.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/bandwalk"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/market"
	"coinone-trading-bot/internal/position"
	"coinone-trading-bot/internal/strategy"
)

// ErrNotEnoughData is returned when the candle series does not extend past
// the warm-up window.
var ErrNotEnoughData = errors.New("backtest: candle series shorter than warm-up window")

// Config holds the run parameters. Analysis parameters live in the
// classifier, detector, and strategy configs passed to NewEngine.
type Config struct {
	InitialCapital float64 `json:"initial_capital"` // Default: 10000
	SizeFraction   float64 `json:"size_fraction"`   // Default: 0.95
	Leverage       float64 `json:"leverage"`        // Default: 1.0
	FeeRate        float64 `json:"fee_rate"`        // Default: 0.0002 (per side)
	WarmupWindow   int     `json:"warmup_window"`   // Default: 50
	WindowSize     int     `json:"window_size"`     // Default: 100
}

// DefaultConfig returns the stock backtest parameters. The fee rate is the
// Coinone spot taker fee per side.
func DefaultConfig() *Config {
	return &Config{
		InitialCapital: 10000,
		SizeFraction:   0.95,
		Leverage:       1.0,
		FeeRate:        0.0002,
		WarmupWindow:   50,
		WindowSize:     100,
	}
}

// Trade is one completed round trip with its fee and the capital after it.
type Trade struct {
	position.TradeResult
	Fees         float64 `json:"fees"`
	CapitalAfter float64 `json:"capital_after"`
}

// Result aggregates one backtest run.
type Result struct {
	InitialCapital float64   `json:"initial_capital"`
	FinalCapital   float64   `json:"final_capital"`
	TotalPnL       float64   `json:"total_pnl"`
	TotalFees      float64   `json:"total_fees"`
	TotalTrades    int       `json:"total_trades"`
	WinningTrades  int       `json:"winning_trades"`
	LosingTrades   int       `json:"losing_trades"`
	WinRate        float64   `json:"win_rate"`       // percent
	ProfitFactor   float64   `json:"profit_factor"`  // sum(wins)/abs(sum(losses))
	MaxDrawdown    float64   `json:"max_drawdown"`   // percent, peak to trough
	SkippedSteps   int       `json:"skipped_steps"`
	Trades         []Trade   `json:"trades"`
	EquityCurve    []float64 `json:"-"`
}

// Engine runs a single backtest. Each run owns its own detector and
// tracker, so independent engines may share one candle slice.
type Engine struct {
	config     *Config
	classifier *market.Classifier
	detector   *bandwalk.Detector
	strategy   *strategy.Engine
	tracker    *position.Tracker
	logger     zerolog.Logger

	capital    float64
	stopLoss   float64
	takeProfit float64
	entryFees  float64
	prevSignal *bandwalk.Signal
}

// NewEngine wires the pipeline for one run. Nil configs fall back to the
// respective defaults.
func NewEngine(cfg *Config, classifierCfg *market.ClassifierConfig, detectorCfg *bandwalk.Config, strategyCfg *strategy.Config, logger zerolog.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if classifierCfg == nil {
		classifierCfg = market.DefaultClassifierConfig()
	}

	classifier, err := market.NewClassifier(classifierCfg)
	if err != nil {
		return nil, err
	}

	log := logger.With().Str("component", "BacktestEngine").Logger()
	return &Engine{
		config:     cfg,
		classifier: classifier,
		detector:   bandwalk.NewDetector(detectorCfg, log),
		strategy:   strategy.NewEngine(strategyCfg, log),
		tracker:    position.NewTracker(log),
		logger:     log,
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.InitialCapital <= 0 {
		return &market.InvalidConfigurationError{Reason: "initial capital must be positive"}
	}
	if cfg.SizeFraction <= 0 || cfg.SizeFraction > 1 {
		return &market.InvalidConfigurationError{Reason: "size fraction must be in (0, 1]"}
	}
	if cfg.Leverage <= 0 {
		return &market.InvalidConfigurationError{Reason: "leverage must be positive"}
	}
	if cfg.FeeRate < 0 {
		return &market.InvalidConfigurationError{Reason: "fee rate must not be negative"}
	}
	if cfg.WarmupWindow <= 0 || cfg.WindowSize <= 0 {
		return &market.InvalidConfigurationError{Reason: "warm-up and window size must be positive"}
	}
	return nil
}

// Run replays the candle series. Evaluation starts after the warm-up
// window; each step classifies the trailing window, evaluates exits before
// entries, and compounds capital through completed trades. Any position
// still open at the end is force-closed at the last close price. The
// context is checked between steps only, so an aborted run returns a
// consistent partial result along with ctx.Err().
func (e *Engine) Run(ctx context.Context, candles []coinone.Candle) (*Result, error) {
	if len(candles) <= e.config.WarmupWindow {
		return nil, ErrNotEnoughData
	}

	e.capital = e.config.InitialCapital
	e.detector.Reset()
	e.prevSignal = nil

	result := &Result{
		InitialCapital: e.config.InitialCapital,
		Trades:         []Trade{},
	}

	for i := e.config.WarmupWindow; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			e.finish(result, candles[i-1])
			return result, err
		}
		e.step(result, candles, i)
	}

	e.finish(result, candles[len(candles)-1])
	return result, nil
}

// step evaluates one candle. Internal analysis errors skip the step rather
// than aborting the run or emitting a signal.
func (e *Engine) step(result *Result, candles []coinone.Candle, i int) {
	start := i + 1 - e.config.WindowSize
	if start < 0 {
		start = 0
	}
	window := candles[start : i+1]
	candle := candles[i]

	analysis, err := e.classifier.Classify(window)
	if err != nil {
		e.skip(result, candle, err)
		return
	}
	signal, err := e.detector.Evaluate(window)
	if err != nil {
		e.skip(result, candle, err)
		return
	}
	breakout := bandwalk.ClassifyBreakout(e.detector.Config(), signal, e.prevSignal)
	e.prevSignal = signal

	decision := e.strategy.Evaluate(strategy.Input{
		Market:   analysis,
		BandWalk: signal,
		Breakout: breakout,
		Position: e.positionState(),
	})

	switch decision.Action {
	case strategy.ActionClosePosition:
		e.closeOpenPosition(result, candle.Close, candle.Timestamp, decision.Reasoning)
	case strategy.ActionOpenLong:
		e.openPosition(position.SideLong, decision, candle.Timestamp)
	case strategy.ActionOpenShort:
		e.openPosition(position.SideShort, decision, candle.Timestamp)
	}

	result.EquityCurve = append(result.EquityCurve, e.capital+e.tracker.UnrealizedPnL(candle.Close))
}

func (e *Engine) skip(result *Result, candle coinone.Candle, err error) {
	result.SkippedSteps++
	e.logger.Debug().
		Int64("timestamp", candle.Timestamp).
		Err(err).
		Msg("Step skipped")
	result.EquityCurve = append(result.EquityCurve, e.capital+e.tracker.UnrealizedPnL(candle.Close))
}

func (e *Engine) positionState() *strategy.PositionState {
	if !e.tracker.IsOpen() {
		return nil
	}
	return &strategy.PositionState{
		Side:       e.tracker.Side(),
		Strategy:   e.tracker.Strategy(),
		EntryPrice: e.tracker.AveragePrice(),
		StopLoss:   e.stopLoss,
		TakeProfit: e.takeProfit,
	}
}

// openPosition sizes a trade from current capital, pays the entry fee, and
// records the stops the strategy chose.
func (e *Engine) openPosition(side position.Side, decision strategy.Decision, timestamp int64) {
	notional := e.capital * e.config.SizeFraction * e.config.Leverage
	quantity := notional / decision.EntryPrice
	fee := notional * e.config.FeeRate

	err := e.tracker.AddEntry(decision.EntryPrice, quantity, time.UnixMilli(timestamp), side, decision.Strategy)
	if err != nil {
		e.logger.Error().Err(err).Msg("Entry rejected")
		return
	}

	e.capital -= fee
	e.entryFees = fee
	e.stopLoss = decision.StopLoss
	e.takeProfit = decision.TakeProfit

	e.logger.Debug().
		Str("side", string(side)).
		Str("strategy", decision.Strategy).
		Float64("price", decision.EntryPrice).
		Float64("quantity", quantity).
		Msg("Backtest entry")
}

// closeOpenPosition exits the full position, pays the exit fee, compounds
// capital, and appends the completed trade.
func (e *Engine) closeOpenPosition(result *Result, price float64, timestamp int64, reason string) {
	quantity := e.tracker.OpenQuantity()
	trade, err := e.tracker.Close(price, 100, time.UnixMilli(timestamp), reason)
	if err != nil {
		e.logger.Error().Err(err).Msg("Close rejected")
		return
	}

	exitFee := price * quantity * e.config.FeeRate
	fees := e.entryFees + exitFee
	e.capital += trade.PnL - exitFee
	e.entryFees = 0
	e.stopLoss = 0
	e.takeProfit = 0

	result.Trades = append(result.Trades, Trade{
		TradeResult:  *trade,
		Fees:         fees,
		CapitalAfter: e.capital,
	})
	result.TotalFees += fees
}

// finish force-closes any open position at the last close and computes the
// summary metrics.
func (e *Engine) finish(result *Result, last coinone.Candle) {
	if e.tracker.IsOpen() {
		e.closeOpenPosition(result, last.Close, last.Timestamp, "end of data")
		result.EquityCurve = append(result.EquityCurve, e.capital)
	}

	result.FinalCapital = e.capital
	result.TotalPnL = e.capital - result.InitialCapital
	computeMetrics(result)

	e.logger.Info().
		Int("trades", result.TotalTrades).
		Float64("final_capital", result.FinalCapital).
		Float64("win_rate", result.WinRate).
		Int("skipped_steps", result.SkippedSteps).
		Msg("Backtest finished")
}

// String describes the run parameters for reports and logs.
func (c *Config) String() string {
	return fmt.Sprintf("capital=%.2f size=%.2f leverage=%.1fx fee=%.4f warmup=%d",
		c.InitialCapital, c.SizeFraction, c.Leverage, c.FeeRate, c.WarmupWindow)
}

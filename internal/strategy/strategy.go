// Package strategy turns classifier and band-walk output into discrete
// trading decisions. The engine is a pure function of its input plus the
// snapshot of the currently open position; it never touches an exchange.
package strategy

import (
	"fmt"

	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/bandwalk"
	"coinone-trading-bot/internal/market"
	"coinone-trading-bot/internal/position"
)

// Action is the decision emitted for one evaluation cycle.
type Action string

const (
	ActionOpenLong      Action = "openLong"
	ActionOpenShort     Action = "openShort"
	ActionClosePosition Action = "closePosition"
	ActionHold          Action = "hold"
)

// Strategy tags carried on entries and trade records.
const (
	StrategyTrendFollowLong   = "trend_follow_long"
	StrategyTrendFollowShort  = "trend_follow_short"
	StrategyCounterTrendLong  = "counter_trend_long"
	StrategyCounterTrendShort = "counter_trend_short"
)

func isTrendFollow(tag string) bool {
	return tag == StrategyTrendFollowLong || tag == StrategyTrendFollowShort
}

// Decision is the output of one evaluation. ExitPrice is set for
// closePosition, EntryPrice/StopLoss/TakeProfit for open actions.
// TakeProfit of zero means no fixed target.
type Decision struct {
	Action     Action  `json:"action"`
	Strategy   string  `json:"strategy,omitempty"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
	StopLoss   float64 `json:"stop_loss,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	Reasoning  string  `json:"reasoning"`
}

// PositionState is the engine's view of the open position, if any.
type PositionState struct {
	Side       position.Side
	Strategy   string
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// Input bundles everything one evaluation cycle consumes. HigherTF is an
// optional longer-interval classification used to veto counter-trend
// entries; nil disables the check.
type Input struct {
	Market   *market.CompositeAnalysis
	BandWalk *bandwalk.Signal
	Breakout bandwalk.BreakoutType
	HigherTF *market.CompositeAnalysis
	Position *PositionState
}

// Config holds the entry gates and per-mode stop parameters.
type Config struct {
	// Trend-follow confirmation, stricter than the composite thresholds.
	TrendRSILong        float64 `json:"trend_rsi_long"`         // Default: 65
	TrendRSIShort       float64 `json:"trend_rsi_short"`        // Default: 35
	TrendHistogramMin   float64 `json:"trend_histogram_min"`    // Default: 5
	TrendVolumeRatioMin float64 `json:"trend_volume_ratio_min"` // Default: 3.0

	// Counter-trend (mean reversion) gates.
	CounterRSILong     float64 `json:"counter_rsi_long"`     // Default: 35
	CounterRSIShort    float64 `json:"counter_rsi_short"`    // Default: 65
	CounterBandEdge    float64 `json:"counter_band_edge"`    // Default: 0.20
	CounterPanicVolume float64 `json:"counter_panic_volume"` // Default: 3.0

	// Per-mode stop-loss and take-profit, percent of entry price. The wide
	// trend stop tolerates pullbacks; the counter stop is tight because a
	// failed reversion usually keeps running.
	TrendStopLossPercent   float64 `json:"trend_stop_loss_percent"`   // Default: 5.0
	TrendTakeProfitPercent float64 `json:"trend_take_profit_percent"` // Default: 5.0
	CounterStopLossPercent float64 `json:"counter_stop_loss_percent"` // Default: 0.5
	RequireHigherTFAlign   bool    `json:"require_higher_tf_align"`   // Default: true
}

// DefaultConfig returns the stock strategy parameters.
func DefaultConfig() *Config {
	return &Config{
		TrendRSILong:        65,
		TrendRSIShort:       35,
		TrendHistogramMin:   5,
		TrendVolumeRatioMin: 3.0,

		CounterRSILong:     35,
		CounterRSIShort:    65,
		CounterBandEdge:    0.20,
		CounterPanicVolume: 3.0,

		TrendStopLossPercent:   5.0,
		TrendTakeProfitPercent: 5.0,
		CounterStopLossPercent: 0.5,
		RequireHigherTFAlign:   true,
	}
}

// Engine evaluates one cycle at a time. It is stateless; all trade state
// lives in the caller's position tracker.
type Engine struct {
	config *Config
	logger zerolog.Logger
}

// NewEngine creates a strategy engine. A nil config uses DefaultConfig.
func NewEngine(config *Config, logger zerolog.Logger) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config: config,
		logger: logger.With().Str("component", "StrategyEngine").Logger(),
	}
}

func hold(reason string) Decision {
	return Decision{Action: ActionHold, Reasoning: reason}
}

// Evaluate runs one cycle. Exit checks run before entry checks, and at
// most one entry can fire per cycle, trend-follow taking priority over
// counter-trend.
func (e *Engine) Evaluate(in Input) Decision {
	if in.Market == nil || in.BandWalk == nil {
		return hold("incomplete analysis input")
	}

	if in.Position != nil {
		return e.evaluateExit(in)
	}

	if d, ok := e.trendEntry(in); ok {
		return d
	}
	if d, ok := e.counterEntry(in); ok {
		return d
	}
	return hold("no entry conditions met")
}

// evaluateExit checks the open position against protective overrides,
// TP/SL touches, and band-walk exhaustion. While a position is open no
// new entry is considered.
func (e *Engine) evaluateExit(in Input) Decision {
	pos := in.Position
	price := in.Market.CurrentPrice

	// Protective override, independent of PnL.
	if in.BandWalk.Risk == bandwalk.RiskHigh && opposes(in.BandWalk.Direction, pos.Side) {
		return e.closeDecision(price, fmt.Sprintf(
			"opposite band-walk at HIGH risk (score %d, direction %s)",
			in.BandWalk.RiskScore, in.BandWalk.Direction))
	}
	if in.Breakout == bandwalk.BreakoutReversal && isTrendFollow(pos.Strategy) {
		return e.closeDecision(price, "breakout reversal against open trend position")
	}

	if pos.Side == position.SideLong {
		if pos.StopLoss > 0 && price <= pos.StopLoss {
			return e.closeDecision(price, fmt.Sprintf("stop loss hit at %.4f", price))
		}
		if pos.TakeProfit > 0 && price >= pos.TakeProfit {
			return e.closeDecision(price, fmt.Sprintf("take profit hit at %.4f", price))
		}
	} else {
		if pos.StopLoss > 0 && price >= pos.StopLoss {
			return e.closeDecision(price, fmt.Sprintf("stop loss hit at %.4f", price))
		}
		if pos.TakeProfit > 0 && price <= pos.TakeProfit {
			return e.closeDecision(price, fmt.Sprintf("take profit hit at %.4f", price))
		}
	}

	if isTrendFollow(pos.Strategy) && in.BandWalk.ExhaustionConfirmed {
		return e.closeDecision(price, "band-walk exhaustion confirmed")
	}

	return hold("position open, no exit conditions met")
}

func (e *Engine) closeDecision(price float64, reason string) Decision {
	e.logger.Debug().Float64("exit_price", price).Str("reason", reason).Msg("Exit signal")
	return Decision{
		Action:    ActionClosePosition,
		ExitPrice: price,
		Reasoning: reason,
	}
}

// trendEntry fires when the detector requests trend-follow entry and the
// direction-aligned RSI/MACD/volume confirmations all hold.
func (e *Engine) trendEntry(in Input) (Decision, bool) {
	bw := in.BandWalk
	if !bw.ShouldEnterTrendFollow {
		return Decision{}, false
	}

	cfg := e.config
	price := in.Market.CurrentPrice

	switch bw.Direction {
	case bandwalk.DirectionUp:
		if in.Market.RSI > cfg.TrendRSILong &&
			bw.MACDHistogram > cfg.TrendHistogramMin &&
			bw.VolumeRatio > cfg.TrendVolumeRatioMin {
			return e.openDecision(ActionOpenLong, StrategyTrendFollowLong, price,
				price*(1-cfg.TrendStopLossPercent/100),
				price*(1+cfg.TrendTakeProfitPercent/100),
				fmt.Sprintf("band-walking UP, score %d, RSI %.1f, volume ratio %.2f",
					bw.RiskScore, in.Market.RSI, bw.VolumeRatio)), true
		}
	case bandwalk.DirectionDown:
		if in.Market.RSI < cfg.TrendRSIShort &&
			bw.MACDHistogram < -cfg.TrendHistogramMin &&
			bw.VolumeRatio > cfg.TrendVolumeRatioMin {
			return e.openDecision(ActionOpenShort, StrategyTrendFollowShort, price,
				price*(1+cfg.TrendStopLossPercent/100),
				price*(1-cfg.TrendTakeProfitPercent/100),
				fmt.Sprintf("band-walking DOWN, score %d, RSI %.1f, volume ratio %.2f",
					bw.RiskScore, in.Market.RSI, bw.VolumeRatio)), true
		}
	}
	return Decision{}, false
}

// counterEntry fires in ranging or weak conditions when price sits in the
// outer edge of the Bollinger range with RSI agreement and no volume panic.
// The target is the band middle.
func (e *Engine) counterEntry(in Input) (Decision, bool) {
	bw := in.BandWalk
	cfg := e.config

	if bw.ShouldBlockCounterTrend {
		return Decision{}, false
	}
	if !rangingOrWeak(in.Market.Condition) {
		return Decision{}, false
	}
	if bw.VolumeRatio >= cfg.CounterPanicVolume {
		return Decision{}, false
	}
	if in.Market.Bands == nil {
		return Decision{}, false
	}

	price := in.Market.CurrentPrice
	middle := in.Market.Bands.Middle

	if in.Market.BandPosition <= cfg.CounterBandEdge && in.Market.RSI < cfg.CounterRSILong {
		if e.higherTFBlocks(in, position.SideLong) {
			return Decision{}, false
		}
		return e.openDecision(ActionOpenLong, StrategyCounterTrendLong, price,
			price*(1-cfg.CounterStopLossPercent/100), middle,
			fmt.Sprintf("mean reversion long at band position %.2f, RSI %.1f",
				in.Market.BandPosition, in.Market.RSI)), true
	}
	if in.Market.BandPosition >= 1-cfg.CounterBandEdge && in.Market.RSI > cfg.CounterRSIShort {
		if e.higherTFBlocks(in, position.SideShort) {
			return Decision{}, false
		}
		return e.openDecision(ActionOpenShort, StrategyCounterTrendShort, price,
			price*(1+cfg.CounterStopLossPercent/100), middle,
			fmt.Sprintf("mean reversion short at band position %.2f, RSI %.1f",
				in.Market.BandPosition, in.Market.RSI)), true
	}
	return Decision{}, false
}

// higherTFBlocks vetoes a counter-trend entry when the higher timeframe is
// in an extreme condition running against it.
func (e *Engine) higherTFBlocks(in Input, side position.Side) bool {
	if !e.config.RequireHigherTFAlign || in.HigherTF == nil {
		return false
	}
	cond := in.HigherTF.Condition
	if side == position.SideLong && cond == market.ConditionExtremeBearish {
		return true
	}
	if side == position.SideShort && cond == market.ConditionExtremeBullish {
		return true
	}
	return false
}

func (e *Engine) openDecision(action Action, tag string, price, stop, target float64, reason string) Decision {
	e.logger.Debug().
		Str("action", string(action)).
		Str("strategy", tag).
		Float64("entry_price", price).
		Float64("stop_loss", stop).
		Float64("take_profit", target).
		Msg("Entry signal")
	return Decision{
		Action:     action,
		Strategy:   tag,
		EntryPrice: price,
		StopLoss:   stop,
		TakeProfit: target,
		Reasoning:  reason,
	}
}

func rangingOrWeak(c market.MarketCondition) bool {
	return c == market.ConditionRanging ||
		c == market.ConditionWeakBullish ||
		c == market.ConditionWeakBearish
}

func opposes(d bandwalk.Direction, side position.Side) bool {
	return (side == position.SideLong && d == bandwalk.DirectionDown) ||
		(side == position.SideShort && d == bandwalk.DirectionUp)
}

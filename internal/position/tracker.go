// Package position tracks one logical trade built from weighted partial
// entries and exits, and realizes PnL as the position unwinds.
package position

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Side is the position direction.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// sign returns +1 for long, -1 for short.
func (s Side) sign() float64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// StateInconsistencyError reports an operation that would corrupt the
// tracker's invariants, such as closing more size than is open. It is
// surfaced to the caller, never silently clamped.
type StateInconsistencyError struct {
	Reason string
}

func (e *StateInconsistencyError) Error() string {
	return "position state inconsistency: " + e.Reason
}

// Entry is one weighted partial entry of a position.
type Entry struct {
	Price      float64
	Quantity   float64 // remaining open quantity
	Timestamp  time.Time
	EntryLevel int // 1 = initial entry, 2+ = pyramided adds
	Side       Side
	Strategy   string
}

// TradeResult is the immutable record emitted when a position fully closes.
type TradeResult struct {
	ID         string    `json:"id"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	Side       Side      `json:"side"`
	Strategy   string    `json:"strategy"`
	EntryPrice float64   `json:"entry_price"` // quantity-weighted over all entries
	ExitPrice  float64   `json:"exit_price"`  // quantity-weighted over all exits
	Size       float64   `json:"size"`        // total closed quantity
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnl_percent"`
	Reasoning  string    `json:"reasoning"`
}

// residualEpsilon treats a quantity this small, relative to everything
// closed so far, as zero.
const residualEpsilon = 1e-9

// Tracker is the stateful ledger of one logical position. It is mutated by
// a single caller; a fresh (or reset) tracker is reused across trades.
type Tracker struct {
	logger zerolog.Logger

	side      Side
	strategy  string
	entries   []Entry
	nextLevel int

	grossEntryQty  float64 // total quantity ever entered this trade
	grossEntryCost float64 // sum of price*quantity over all entries

	closedQty   float64
	exitCost    float64 // sum of exitPrice*closedQty over all exits
	realizedPnL float64

	firstEntryTime time.Time
	lastReason     string
}

// NewTracker creates an empty position tracker.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{
		logger:    logger.With().Str("component", "PositionTracker").Logger(),
		nextLevel: 1,
	}
}

// IsOpen reports whether any size is currently open.
func (t *Tracker) IsOpen() bool {
	return t.OpenQuantity() > 0
}

// Side returns the position side; meaningless when flat.
func (t *Tracker) Side() Side {
	return t.side
}

// Strategy returns the strategy tag of the current trade.
func (t *Tracker) Strategy() string {
	return t.strategy
}

// OpenQuantity returns the net open size.
func (t *Tracker) OpenQuantity() float64 {
	total := 0.0
	for _, e := range t.entries {
		total += e.Quantity
	}
	return total
}

// AveragePrice returns the quantity-weighted mean price of the open entries.
func (t *Tracker) AveragePrice() float64 {
	totalQty := 0.0
	totalCost := 0.0
	for _, e := range t.entries {
		totalQty += e.Quantity
		totalCost += e.Price * e.Quantity
	}
	if totalQty == 0 {
		return 0
	}
	return totalCost / totalQty
}

// UnrealizedPnL values the open size at the given price.
func (t *Tracker) UnrealizedPnL(currentPrice float64) float64 {
	if !t.IsOpen() {
		return 0
	}
	return (currentPrice - t.AveragePrice()) * t.OpenQuantity() * t.side.sign()
}

// RealizedPnL returns the PnL realized by partial exits so far this trade.
func (t *Tracker) RealizedPnL() float64 {
	return t.realizedPnL
}

// AddEntry appends a weighted entry, opening or pyramiding the position.
func (t *Tracker) AddEntry(price, quantity float64, timestamp time.Time, side Side, strategy string) error {
	if price <= 0 || quantity <= 0 {
		return &StateInconsistencyError{Reason: fmt.Sprintf("entry price %f / quantity %f must be positive", price, quantity)}
	}

	if t.IsOpen() {
		if side != t.side {
			return &StateInconsistencyError{
				Reason: fmt.Sprintf("cannot add %s entry to open %s position", side, t.side),
			}
		}
	} else {
		t.side = side
		t.strategy = strategy
		t.firstEntryTime = timestamp
	}

	t.entries = append(t.entries, Entry{
		Price:      price,
		Quantity:   quantity,
		Timestamp:  timestamp,
		EntryLevel: t.nextLevel,
		Side:       side,
		Strategy:   strategy,
	})
	t.nextLevel++

	t.grossEntryQty += quantity
	t.grossEntryCost += price * quantity

	t.logger.Debug().
		Str("side", string(side)).
		Float64("price", price).
		Float64("quantity", quantity).
		Float64("avg_price", t.AveragePrice()).
		Int("entries", len(t.entries)).
		Msg("Position entry added")

	return nil
}

// Close exits exitPercent (0..100] of the open size at exitPrice, reducing
// every open entry proportionally. When the position reaches zero it
// returns the aggregated TradeResult and resets; otherwise it returns nil.
func (t *Tracker) Close(exitPrice, exitPercent float64, timestamp time.Time, reason string) (*TradeResult, error) {
	if !t.IsOpen() {
		return nil, &StateInconsistencyError{Reason: "close requested on flat position"}
	}
	if exitPrice <= 0 {
		return nil, &StateInconsistencyError{Reason: fmt.Sprintf("exit price %f must be positive", exitPrice)}
	}
	if exitPercent <= 0 || exitPercent > 100 {
		return nil, &StateInconsistencyError{
			Reason: fmt.Sprintf("exit percent %f outside (0, 100]", exitPercent),
		}
	}

	openQty := t.OpenQuantity()
	closeQty := openQty * exitPercent / 100
	avgPrice := t.AveragePrice()

	fraction := exitPercent / 100
	for i := range t.entries {
		t.entries[i].Quantity *= 1 - fraction
	}

	pnl := (exitPrice - avgPrice) * closeQty * t.side.sign()
	t.realizedPnL += pnl
	t.closedQty += closeQty
	t.exitCost += exitPrice * closeQty
	t.lastReason = reason

	t.logger.Debug().
		Float64("exit_price", exitPrice).
		Float64("closed_quantity", closeQty).
		Float64("realized_pnl", t.realizedPnL).
		Str("reason", reason).
		Msg("Position partially closed")

	if t.OpenQuantity() > t.closedQty*residualEpsilon && exitPercent < 100 {
		return nil, nil
	}

	return t.finalize(timestamp), nil
}

// finalize emits the lifecycle TradeResult and resets the tracker.
func (t *Tracker) finalize(exitTime time.Time) *TradeResult {
	entryPrice := 0.0
	if t.grossEntryQty > 0 {
		entryPrice = t.grossEntryCost / t.grossEntryQty
	}
	exitPrice := 0.0
	if t.closedQty > 0 {
		exitPrice = t.exitCost / t.closedQty
	}

	pnlPercent := 0.0
	if entryPrice > 0 && t.closedQty > 0 {
		pnlPercent = t.realizedPnL / (entryPrice * t.closedQty) * 100
	}

	result := &TradeResult{
		ID:         uuid.New().String(),
		EntryTime:  t.firstEntryTime,
		ExitTime:   exitTime,
		Side:       t.side,
		Strategy:   t.strategy,
		EntryPrice: entryPrice,
		ExitPrice:  exitPrice,
		Size:       t.closedQty,
		PnL:        t.realizedPnL,
		PnLPercent: pnlPercent,
		Reasoning:  t.lastReason,
	}

	t.logger.Info().
		Str("trade_id", result.ID).
		Str("side", string(result.Side)).
		Str("strategy", result.Strategy).
		Float64("pnl", result.PnL).
		Float64("pnl_percent", result.PnLPercent).
		Msg("Trade closed")

	t.reset()
	return result
}

func (t *Tracker) reset() {
	t.side = ""
	t.strategy = ""
	t.entries = nil
	t.nextLevel = 1
	t.grossEntryQty = 0
	t.grossEntryCost = 0
	t.closedQty = 0
	t.exitCost = 0
	t.realizedPnL = 0
	t.firstEntryTime = time.Time{}
	t.lastReason = ""
}

package bandwalk

// breachDirection returns the breached side of a signal, or NONE.
func breachDirection(s *Signal) Direction {
	if s == nil {
		return DirectionNone
	}
	if s.OutsideUpper {
		return DirectionUp
	}
	if s.OutsideLower {
		return DirectionDown
	}
	return DirectionNone
}

// ClassifyBreakout categorizes the current candle's breakout archetype from
// the band-walking signals of this frame and the previous one. It is a pure
// decision table; the previous signal may be nil at the start of a series.
//
// Archetypes, checked in order:
//   - HEADFAKE: the previous frame had a short-lived breach and this frame
//     either fell back inside or breached the opposite side.
//   - BREAKOUT_REVERSAL: a sustained HIGH-risk trend flipped direction while
//     the risk is falling.
//   - BREAKOUT_TO_BANDWALKING: a breach held into sustained HIGH risk.
//   - BREAKOUT_INITIAL: a fresh breach with rising volume before the risk
//     reaches HIGH. Not tradable on its own yet.
func ClassifyBreakout(config *Config, current, previous *Signal) BreakoutType {
	if config == nil {
		config = DefaultConfig()
	}
	if current == nil {
		return BreakoutNone
	}

	currentBreach := breachDirection(current)
	previousBreach := breachDirection(previous)

	// Head-fake: a young breach that did not survive this frame.
	if previous != nil && previousBreach != DirectionNone &&
		previous.ConsecutiveOutside <= config.HeadfakeWindow &&
		(currentBreach == DirectionNone || currentBreach == previousBreach.Opposite()) &&
		current.Risk.Level() < RiskHigh.Level() {
		return BreakoutHeadfake
	}

	// Reversal: sustained high-risk trend abruptly changes direction with
	// the risk score falling off.
	if previous != nil && previous.Risk == RiskHigh && previous.HighFrames >= 2 &&
		previous.Direction != DirectionNone &&
		current.Direction == previous.Direction.Opposite() &&
		current.RiskScore < previous.RiskScore {
		return BreakoutReversal
	}

	// Transition into band-walking: the breach held and risk is now HIGH.
	if current.Risk == RiskHigh && currentBreach != DirectionNone &&
		current.ConsecutiveOutside >= 2 {
		return BreakoutToBandWalking
	}

	// Initial breakout: first candle outside the band, volume picking up,
	// risk not yet HIGH.
	if current.JustBreached && current.Risk.Level() < RiskHigh.Level() &&
		current.VolumeRatio > config.InitialVolumeRatio {
		return BreakoutInitial
	}

	return BreakoutNone
}

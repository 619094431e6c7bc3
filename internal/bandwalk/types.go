package bandwalk

// Risk is the band-walking risk level.
type Risk string

const (
	RiskNone   Risk = "NONE"
	RiskLow    Risk = "LOW"
	RiskMedium Risk = "MEDIUM"
	RiskHigh   Risk = "HIGH"
)

// Level returns the risk as an ordered integer, NONE=0 .. HIGH=3.
func (r Risk) Level() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// Direction is the band-walking direction.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionNone Direction = "NONE"
)

// Opposite returns the opposite direction; NONE maps to NONE.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionUp:
		return DirectionDown
	case DirectionDown:
		return DirectionUp
	default:
		return DirectionNone
	}
}

// ScoreBreakdown holds the per-component points of the risk score.
// The components deliberately overlap so no single weak indicator can
// mask a strong one; their ceiling is 105.
type ScoreBreakdown struct {
	Width   int // band-width expansion, up to 40
	RSI     int // RSI extremity, up to 30
	MACD    int // histogram confirmation, up to 20
	Outside int // consecutive closes outside the band, up to 10
	Volume  int // volume expansion, up to 5
}

// Total sums the breakdown.
func (b ScoreBreakdown) Total() int {
	return b.Width + b.RSI + b.MACD + b.Outside + b.Volume
}

// Signal is the detector output for one candle.
type Signal struct {
	RiskScore int // 0..105
	Risk      Risk
	Direction Direction

	ShouldEnterTrendFollow  bool
	ShouldBlockCounterTrend bool

	// Supporting detail for the breakout classifier and logging.
	Points              ScoreBreakdown
	WidthChangePercent  float64
	OutsideUpper        bool
	OutsideLower        bool
	ConsecutiveOutside  int
	JustBreached        bool // first candle of a breach
	HighFrames          int  // consecutive frames at HIGH, inertia counter
	ExhaustionConfirmed bool // risk fell from HIGH and stayed down through the cooldown
	RSI                 float64
	VolumeRatio         float64
	MACDHistogram       float64
}

// BreakoutType categorizes the candle's relationship to the volatility
// envelope and the band-walking state.
type BreakoutType string

const (
	BreakoutNone          BreakoutType = "NONE"
	BreakoutInitial       BreakoutType = "BREAKOUT_INITIAL"
	BreakoutToBandWalking BreakoutType = "BREAKOUT_TO_BANDWALKING"
	BreakoutHeadfake      BreakoutType = "HEADFAKE"
	BreakoutReversal      BreakoutType = "BREAKOUT_REVERSAL"
)

// Config holds band-walking detector parameters. Every coefficient of the
// score is named here so thresholds are tunable without code changes.
type Config struct {
	// Bollinger window the envelope is computed over.
	BollingerPeriod int     `json:"bollinger_period"`  // Default: 20
	BollingerStdDev float64 `json:"bollinger_std_dev"` // Default: 2.0

	// MACD periods for histogram confirmation.
	MACDFastPeriod   int `json:"macd_fast_period"`   // Default: 12
	MACDSlowPeriod   int `json:"macd_slow_period"`   // Default: 26
	MACDSignalPeriod int `json:"macd_signal_period"` // Default: 9

	RSIPeriod    int `json:"rsi_period"`    // Default: 14
	VolumePeriod int `json:"volume_period"` // Default: 20

	// Band-width expansion vs the previous frame, percent change.
	WidthStrongPercent   float64 `json:"width_strong_percent"`   // Default: 3.0
	WidthModeratePercent float64 `json:"width_moderate_percent"` // Default: 1.0
	WidthStrongPoints    int     `json:"width_strong_points"`    // Default: 40
	WidthModeratePoints  int     `json:"width_moderate_points"`  // Default: 30
	WidthAnyPoints       int     `json:"width_any_points"`       // Default: 20

	// RSI extremity.
	RSIExtremeUpper  float64 `json:"rsi_extreme_upper"`  // Default: 70
	RSIExtremeLower  float64 `json:"rsi_extreme_lower"`  // Default: 30
	RSINearUpper     float64 `json:"rsi_near_upper"`     // Default: 65
	RSINearLower     float64 `json:"rsi_near_lower"`     // Default: 35
	RSIExtremePoints int     `json:"rsi_extreme_points"` // Default: 30
	RSINearPoints    int     `json:"rsi_near_points"`    // Default: 20

	// MACD histogram confirmation.
	MACDStrongPoints  int `json:"macd_strong_points"`  // Default: 20
	MACDAlignedPoints int `json:"macd_aligned_points"` // Default: 10

	// Consecutive closes outside the band.
	OutsideLookback     int `json:"outside_lookback"`       // Default: 5
	OutsidePointsPerBar int `json:"outside_points_per_bar"` // Default: 3
	OutsideMaxPoints    int `json:"outside_max_points"`     // Default: 10

	// Volume expansion.
	VolumeStrongRatio    float64 `json:"volume_strong_ratio"`    // Default: 2.0
	VolumeModerateRatio  float64 `json:"volume_moderate_ratio"`  // Default: 1.5
	VolumeStrongPoints   int     `json:"volume_strong_points"`   // Default: 5
	VolumeModeratePoints int     `json:"volume_moderate_points"` // Default: 3

	// Risk thresholds.
	HighThreshold   int `json:"high_threshold"`   // Default: 70
	MediumThreshold int `json:"medium_threshold"` // Default: 50
	LowThreshold    int `json:"low_threshold"`    // Default: 30

	// Direction inference from RSI when price is inside the band.
	DirectionRSIUp   float64 `json:"direction_rsi_up"`   // Default: 60
	DirectionRSIDown float64 `json:"direction_rsi_down"` // Default: 40

	// Inertia: consecutive HIGH frames before trend-follow entries fire,
	// and frames the risk must stay below HIGH before a trend-follow
	// exhaustion exit is believed.
	MinHighFrames            int `json:"min_high_frames"`            // Default: 2
	ExhaustionCooldownFrames int `json:"exhaustion_cooldown_frames"` // Default: 3

	// Breakout classification.
	HeadfakeWindow     int     `json:"headfake_window"`      // Default: 2
	InitialVolumeRatio float64 `json:"initial_volume_ratio"` // Default: 1.2
}

// DefaultConfig returns the default band-walking detector configuration.
func DefaultConfig() *Config {
	return &Config{
		BollingerPeriod:          20,
		BollingerStdDev:          2.0,
		MACDFastPeriod:           12,
		MACDSlowPeriod:           26,
		MACDSignalPeriod:         9,
		RSIPeriod:                14,
		VolumePeriod:             20,
		WidthStrongPercent:       3.0,
		WidthModeratePercent:     1.0,
		WidthStrongPoints:        40,
		WidthModeratePoints:      30,
		WidthAnyPoints:           20,
		RSIExtremeUpper:          70,
		RSIExtremeLower:          30,
		RSINearUpper:             65,
		RSINearLower:             35,
		RSIExtremePoints:         30,
		RSINearPoints:            20,
		MACDStrongPoints:         20,
		MACDAlignedPoints:        10,
		OutsideLookback:          5,
		OutsidePointsPerBar:      3,
		OutsideMaxPoints:         10,
		VolumeStrongRatio:        2.0,
		VolumeModerateRatio:      1.5,
		VolumeStrongPoints:       5,
		VolumeModeratePoints:     3,
		HighThreshold:            70,
		MediumThreshold:          50,
		LowThreshold:             30,
		DirectionRSIUp:           60,
		DirectionRSIDown:         40,
		MinHighFrames:            2,
		ExhaustionCooldownFrames: 3,
		HeadfakeWindow:           2,
		InitialVolumeRatio:       1.2,
	}
}

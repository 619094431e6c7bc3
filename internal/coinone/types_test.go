package coinone

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCandle_DecodesStringNumerics(t *testing.T) {
	raw := `{
		"timestamp": 1700000000000,
		"open": "731.5",
		"high": "733.0",
		"low": "730.1",
		"close": "732.4",
		"target_volume": "152340.7",
		"quote_volume": "111504321.9"
	}`

	var c Candle
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Timestamp != 1700000000000 {
		t.Fatalf("Timestamp = %d", c.Timestamp)
	}
	if c.Open != 731.5 || c.Close != 732.4 {
		t.Fatalf("prices = %v/%v", c.Open, c.Close)
	}
	if c.Volume != 152340.7 {
		t.Fatalf("Volume = %v", c.Volume)
	}
}

func TestInterval_Duration(t *testing.T) {
	tests := []struct {
		interval Interval
		want     time.Duration
	}{
		{Interval1m, time.Minute},
		{Interval5m, 5 * time.Minute},
		{Interval30m, 30 * time.Minute},
		{Interval1d, 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := tt.interval.Duration()
		if err != nil {
			t.Fatalf("%s: %v", tt.interval, err)
		}
		if got != tt.want {
			t.Fatalf("%s: Duration = %v, want %v", tt.interval, got, tt.want)
		}
	}

	if _, err := Interval("7m").Duration(); err == nil {
		t.Fatal("unknown interval must error")
	}
}

func continuous(n int, stepMs int64) []Candle {
	candles := make([]Candle, n)
	for i := range candles {
		candles[i] = Candle{Timestamp: 1_700_000_000_000 + int64(i)*stepMs}
	}
	return candles
}

func TestValidateContinuity(t *testing.T) {
	if err := ValidateContinuity(continuous(20, 300_000), Interval5m); err != nil {
		t.Fatalf("continuous series: %v", err)
	}
	if err := ValidateContinuity(nil, Interval5m); err != nil {
		t.Fatalf("empty series: %v", err)
	}

	gapped := continuous(20, 300_000)
	gapped[10].Timestamp += 300_000 // one bar missing before index 10
	err := ValidateContinuity(gapped, Interval5m)
	if !errors.Is(err, ErrGappedSeries) {
		t.Fatalf("err = %v, want ErrGappedSeries", err)
	}

	// wrong interval for the spacing is also a gap
	if err := ValidateContinuity(continuous(5, 300_000), Interval1m); !errors.Is(err, ErrGappedSeries) {
		t.Fatalf("err = %v, want ErrGappedSeries", err)
	}
}

func TestClosesAndVolumes(t *testing.T) {
	candles := []Candle{
		{Close: 1, Volume: 10},
		{Close: 2, Volume: 20},
		{Close: 3, Volume: 30},
	}
	closes := Closes(candles)
	volumes := Volumes(candles)
	for i := range candles {
		if closes[i] != candles[i].Close || volumes[i] != candles[i].Volume {
			t.Fatalf("index %d: %v/%v", i, closes[i], volumes[i])
		}
	}
}

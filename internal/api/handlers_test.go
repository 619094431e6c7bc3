package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/strategy"
)

type stubProvider struct {
	candles []coinone.Candle
	err     error
}

func (p *stubProvider) GetChart(ctx context.Context, quote, target string, interval coinone.Interval, start, end int64) ([]coinone.Candle, error) {
	return p.candles, p.err
}

func testServer(provider CandleProvider) *Server {
	gin.SetMode(gin.TestMode)
	return NewServer(DefaultServerConfig(), provider, nil, nil, zerolog.Nop())
}

func flatCandles(n int) []coinone.Candle {
	candles := make([]coinone.Candle, n)
	base := int64(1_700_000_000_000)
	for i := range candles {
		candles[i] = coinone.Candle{
			Timestamp: base + int64(i)*300_000,
			Open:      50, High: 50, Low: 50, Close: 50,
			Volume: 1000,
		}
	}
	return candles
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	w := doRequest(t, testServer(&stubProvider{}), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHandleCandles(t *testing.T) {
	s := testServer(&stubProvider{candles: flatCandles(10)})

	w := doRequest(t, s, http.MethodGet,
		"/api/candles?quote=KRW&target=XRP&interval=5m&start=1700000000000&end=1700003000000", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 10 {
		t.Fatalf("count = %d, want 10", resp.Count)
	}
}

func TestHandleCandles_BadRequests(t *testing.T) {
	s := testServer(&stubProvider{candles: flatCandles(10)})

	paths := []string{
		"/api/candles",
		"/api/candles?quote=KRW&target=XRP&interval=7m&start=1&end=2",
		"/api/candles?quote=KRW&target=XRP&start=100&end=50",
	}
	for _, path := range paths {
		if w := doRequest(t, s, http.MethodGet, path, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", path, w.Code)
		}
	}
}

func TestHandleCandles_ProviderFailure(t *testing.T) {
	s := testServer(&stubProvider{err: errors.New("exchange unreachable")})

	w := doRequest(t, s, http.MethodGet,
		"/api/candles?quote=KRW&target=XRP&interval=5m&start=1700000000000&end=1700003000000", nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", w.Code)
	}
}

func TestHandleAnalyze_InlineCandles(t *testing.T) {
	s := testServer(&stubProvider{})

	w := doRequest(t, s, http.MethodPost, "/api/analyze", gin.H{"candles": flatCandles(120)})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Market == nil || resp.BandWalk == nil {
		t.Fatal("analysis payload incomplete")
	}
	if resp.Decision.Action != strategy.ActionHold {
		t.Fatalf("flat series decision = %v, want hold", resp.Decision.Action)
	}
}

// breakoutCandles builds a flat base followed by an accelerating ramp that
// rides outside the upper band on surging volume, the shape a sustained
// band-walk entry requires.
func breakoutCandles() []coinone.Candle {
	candles := make([]coinone.Candle, 0, 60)
	base := int64(1_700_000_000_000)

	for i := 0; i < 54; i++ {
		noise := 0.5
		if i%2 == 0 {
			noise = -0.5
		}
		close := 1000 + noise
		candles = append(candles, coinone.Candle{
			Timestamp: base + int64(i)*300_000,
			Open:      close, High: close + 1, Low: close - 1, Close: close,
			Volume: 1000,
		})
	}

	ramp := []float64{1010, 1030, 1060, 1100, 1150, 1210}
	volumes := []float64{1000, 1000, 1000, 1000, 4200, 4200}
	for i, close := range ramp {
		candles = append(candles, coinone.Candle{
			Timestamp: base + int64(54+i)*300_000,
			Open:      close - 10, High: close + 5, Low: close - 15, Close: close,
			Volume: volumes[i],
		})
	}

	return candles
}

func TestHandleAnalyze_SustainedBreakoutFiresTrendFollow(t *testing.T) {
	s := testServer(&stubProvider{})

	w := doRequest(t, s, http.MethodPost, "/api/analyze", gin.H{"candles": breakoutCandles()})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	// The one-shot flow rebuilds the previous frame from the window minus
	// its last candle; the inertia counter must carry into the final
	// evaluation or a sustained HIGH band-walk could never fire here.
	if !resp.BandWalk.ShouldEnterTrendFollow {
		t.Fatalf("ShouldEnterTrendFollow = false (risk %s, frames %d), want true",
			resp.BandWalk.Risk, resp.BandWalk.HighFrames)
	}
	if resp.Decision.Action != strategy.ActionOpenLong {
		t.Fatalf("decision = %v (%s), want openLong", resp.Decision.Action, resp.Decision.Reasoning)
	}
	if resp.Decision.Strategy != strategy.StrategyTrendFollowLong {
		t.Fatalf("strategy = %q, want %q", resp.Decision.Strategy, strategy.StrategyTrendFollowLong)
	}
}

func TestHandleAnalyze_WindowTooShort(t *testing.T) {
	s := testServer(&stubProvider{})

	w := doRequest(t, s, http.MethodPost, "/api/analyze", gin.H{"candles": flatCandles(10)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
}

func TestHandleBacktest(t *testing.T) {
	s := testServer(&stubProvider{candles: flatCandles(160)})

	w := doRequest(t, s, http.MethodPost, "/api/backtest", gin.H{
		"quote": "KRW", "target": "XRP", "interval": "5m",
		"start": 1_700_000_000_000, "end": 1_700_050_000_000,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Result struct {
			TotalTrades  int     `json:"total_trades"`
			FinalCapital float64 `json:"final_capital"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Result.TotalTrades != 0 {
		t.Fatalf("trades = %d, want 0 on flat data", resp.Result.TotalTrades)
	}
	if resp.Result.FinalCapital != 10000 {
		t.Fatalf("final capital = %v, want unchanged default 10000", resp.Result.FinalCapital)
	}
}

func TestHandleBacktest_NotEnoughData(t *testing.T) {
	s := testServer(&stubProvider{candles: flatCandles(30)})

	w := doRequest(t, s, http.MethodPost, "/api/backtest", gin.H{
		"quote": "KRW", "target": "XRP", "interval": "5m",
		"start": 1_700_000_000_000, "end": 1_700_050_000_000,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleBacktestRuns_WithoutDatabase(t *testing.T) {
	s := testServer(&stubProvider{})

	w := doRequest(t, s, http.MethodGet, "/api/backtest/runs?quote=KRW&target=XRP", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coinone-trading-bot/internal/backtest"
	"coinone-trading-bot/internal/bandwalk"
	"coinone-trading-bot/internal/cache"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/market"
	"coinone-trading-bot/internal/strategy"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// rangeQuery is the common candle-range request shape.
type rangeQuery struct {
	Quote    string `form:"quote" json:"quote"`
	Target   string `form:"target" json:"target"`
	Interval string `form:"interval" json:"interval"`
	Start    int64  `form:"start" json:"start"` // epoch ms
	End      int64  `form:"end" json:"end"`     // epoch ms
}

func (q *rangeQuery) validate() error {
	if q.Quote == "" || q.Target == "" {
		return errors.New("quote and target are required")
	}
	if q.Interval == "" {
		q.Interval = string(coinone.Interval5m)
	}
	if _, err := coinone.Interval(q.Interval).Duration(); err != nil {
		return err
	}
	if q.Start <= 0 || q.End <= q.Start {
		return errors.New("start and end must form a valid epoch-ms range")
	}
	return nil
}

// fetchCandles serves a range from the cache when possible, falling back
// to the exchange and populating the cache on the way out.
func (s *Server) fetchCandles(c *gin.Context, q rangeQuery) ([]coinone.Candle, error) {
	interval := coinone.Interval(q.Interval)
	ctx := c.Request.Context()

	if s.cache != nil {
		if candles, err := s.cache.Get(ctx, q.Quote, q.Target, interval, q.Start, q.End); err == nil {
			return candles, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Debug().Err(err).Msg("Cache lookup error")
		}
	}

	candles, err := s.provider.GetChart(ctx, q.Quote, q.Target, interval, q.Start, q.End)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, q.Quote, q.Target, interval, q.Start, q.End, candles)
	}
	return candles, nil
}

func (s *Server) handleCandles(c *gin.Context) {
	var q rangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := q.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.fetchCandles(c, q)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"candles": candles, "count": len(candles)})
}

// analyzeRequest runs the pipeline over either an inline window or a
// fetched range.
type analyzeRequest struct {
	rangeQuery
	Candles []coinone.Candle `json:"candles"`
}

type analyzeResponse struct {
	Market   *market.CompositeAnalysis `json:"market"`
	BandWalk *bandwalk.Signal          `json:"band_walk"`
	Breakout bandwalk.BreakoutType     `json:"breakout"`
	Decision strategy.Decision         `json:"decision"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles := req.Candles
	if len(candles) == 0 {
		if err := req.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		var err error
		candles, err = s.fetchCandles(c, req.rangeQuery)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
	}

	classifier, err := market.NewClassifier(s.classifierCfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	analysis, err := classifier.Classify(candles)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	// A one-shot evaluation has no frame history, so the previous frame is
	// rebuilt from the window minus its last candle. The detector carries
	// its inertia counters from that frame into the final evaluation;
	// without the carry a sustained band-walk could never clear the
	// minimum-HIGH-frames gate.
	detector := bandwalk.NewDetector(s.detectorCfg, s.logger)
	var prevSignal *bandwalk.Signal
	if len(candles) > 1 {
		if prev, err := detector.Evaluate(candles[:len(candles)-1]); err == nil {
			prevSignal = prev
		}
	}
	signal, err := detector.Evaluate(candles)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	breakout := bandwalk.ClassifyBreakout(s.detectorCfg, signal, prevSignal)

	decision := strategy.NewEngine(s.strategyCfg, s.logger).Evaluate(strategy.Input{
		Market:   analysis,
		BandWalk: signal,
		Breakout: breakout,
	})

	c.JSON(http.StatusOK, analyzeResponse{
		Market:   analysis,
		BandWalk: signal,
		Breakout: breakout,
		Decision: decision,
	})
}

// backtestRequest runs a full backtest over a fetched range. Zero-valued
// engine parameters keep their defaults.
type backtestRequest struct {
	rangeQuery
	InitialCapital float64 `json:"initial_capital"`
	SizeFraction   float64 `json:"size_fraction"`
	Leverage       float64 `json:"leverage"`
	FeeRate        float64 `json:"fee_rate"`
	WarmupWindow   int     `json:"warmup_window"`
	Save           bool    `json:"save"`
}

func (req *backtestRequest) engineConfig() *backtest.Config {
	cfg := backtest.DefaultConfig()
	if req.InitialCapital > 0 {
		cfg.InitialCapital = req.InitialCapital
	}
	if req.SizeFraction > 0 {
		cfg.SizeFraction = req.SizeFraction
	}
	if req.Leverage > 0 {
		cfg.Leverage = req.Leverage
	}
	if req.FeeRate > 0 {
		cfg.FeeRate = req.FeeRate
	}
	if req.WarmupWindow > 0 {
		cfg.WarmupWindow = req.WarmupWindow
	}
	return cfg
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candles, err := s.fetchCandles(c, req.rangeQuery)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	engine, err := backtest.NewEngine(req.engineConfig(), s.classifierCfg, s.detectorCfg, s.strategyCfg, s.logger)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := engine.Run(c.Request.Context(), candles)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, backtest.ErrNotEnoughData) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	var runID int64
	if req.Save && s.repo != nil {
		runID, err = s.repo.SaveRun(c.Request.Context(),
			req.Quote, req.Target, coinone.Interval(req.Interval),
			time.UnixMilli(req.Start), time.UnixMilli(req.End), result)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist backtest run")
		}
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "result": result})
}

func (s *Server) handleBacktestRuns(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database is not configured"})
		return
	}

	quote := c.Query("quote")
	target := c.Query("target")
	if quote == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quote and target are required"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	runs, err := s.repo.GetRuns(c.Request.Context(), quote, target, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// Package api exposes the analysis pipeline and backtest engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/bandwalk"
	"coinone-trading-bot/internal/cache"
	"coinone-trading-bot/internal/coinone"
	"coinone-trading-bot/internal/database"
	"coinone-trading-bot/internal/market"
	"coinone-trading-bot/internal/strategy"
)

// CandleProvider fetches candle series. Implemented by coinone.Client.
type CandleProvider interface {
	GetChart(ctx context.Context, quote, target string, interval coinone.Interval, start, end int64) ([]coinone.Candle, error)
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host           string `json:"host"` // Default: 0.0.0.0
	Port           int    `json:"port"` // Default: 8080
	ProductionMode bool   `json:"production_mode"`
}

// DefaultServerConfig returns the stock server settings.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host: "0.0.0.0",
		Port: 8080,
	}
}

// Server wires the pipeline components behind HTTP handlers. The cache and
// repository are optional; nil disables them.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     *ServerConfig
	provider   CandleProvider
	cache      *cache.CandleCache
	repo       *database.Repository
	logger     zerolog.Logger

	classifierCfg *market.ClassifierConfig
	detectorCfg   *bandwalk.Config
	strategyCfg   *strategy.Config
}

// NewServer creates the API server.
func NewServer(cfg *ServerConfig, provider CandleProvider, candleCache *cache.CandleCache, repo *database.Repository, logger zerolog.Logger) *Server {
	if cfg == nil {
		cfg = DefaultServerConfig()
	}
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	s := &Server{
		router:        router,
		config:        cfg,
		provider:      provider,
		cache:         candleCache,
		repo:          repo,
		logger:        logger.With().Str("component", "APIServer").Logger(),
		classifierCfg: market.DefaultClassifierConfig(),
		detectorCfg:   bandwalk.DefaultConfig(),
		strategyCfg:   strategy.DefaultConfig(),
	}
	s.setupRoutes()
	return s
}

// UseAnalysisConfigs replaces the default classifier, detector, and
// strategy parameters used by the analysis and backtest handlers. Nil
// arguments keep the current values.
func (s *Server) UseAnalysisConfigs(classifier *market.ClassifierConfig, detector *bandwalk.Config, strat *strategy.Config) {
	if classifier != nil {
		s.classifierCfg = classifier
	}
	if detector != nil {
		s.detectorCfg = detector
	}
	if strat != nil {
		s.strategyCfg = strat
	}
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/candles", s.handleCandles)
		api.POST("/analyze", s.handleAnalyze)
		api.POST("/backtest", s.handleBacktest)
		api.GET("/backtest/runs", s.handleBacktestRuns)
	}
}

// Start runs the HTTP server until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("API server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

package coinone

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const defaultStreamURL = "wss://stream.coinone.co.kr"

// TickerStream subscribes to the Coinone public WebSocket ticker channel.
// Live mode uses it to notice candle boundaries without polling; the engine
// itself still evaluates on completed REST candles.
type TickerStream struct {
	mu sync.RWMutex

	url       string
	conn      *websocket.Conn
	isRunning bool
	stopChan  chan struct{}

	onTicker func(*Ticker)

	lastTicker *Ticker
	reconnects int

	logger zerolog.Logger
}

type streamRequest struct {
	RequestType string      `json:"request_type"`
	Channel     string      `json:"channel"`
	Topic       streamTopic `json:"topic"`
}

type streamTopic struct {
	QuoteCurrency  string `json:"quote_currency"`
	TargetCurrency string `json:"target_currency"`
}

type streamMessage struct {
	ResponseType string          `json:"response_type"`
	Channel      string          `json:"channel"`
	Data         json.RawMessage `json:"data"`
}

// NewTickerStream creates a new ticker stream.
func NewTickerStream(url string, logger zerolog.Logger) *TickerStream {
	if url == "" {
		url = defaultStreamURL
	}
	return &TickerStream{
		url:      url,
		stopChan: make(chan struct{}),
		logger:   logger.With().Str("component", "TickerStream").Logger(),
	}
}

// OnTicker registers a callback invoked for every ticker update.
func (s *TickerStream) OnTicker(fn func(*Ticker)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTicker = fn
}

// LastTicker returns the most recent ticker received, or nil.
func (s *TickerStream) LastTicker() *Ticker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTicker
}

// Start connects and subscribes to the ticker channel for the pair.
// The read loop runs until Stop is called, reconnecting on errors.
func (s *TickerStream) Start(quote, target string) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("ticker stream already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	if err := s.connect(quote, target); err != nil {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	}

	go s.readLoop(quote, target)
	go s.pingLoop()

	return nil
}

// Stop closes the connection and ends the read loop.
func (s *TickerStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	s.isRunning = false
	close(s.stopChan)

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *TickerStream) connect(quote, target string) error {
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	sub := streamRequest{
		RequestType: "SUBSCRIBE",
		Channel:     "TICKER",
		Topic: streamTopic{
			QuoteCurrency:  quote,
			TargetCurrency: target,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	s.logger.Info().
		Str("pair", target+"/"+quote).
		Msg("Subscribed to ticker stream")

	return nil
}

func (s *TickerStream) readLoop(quote, target string) {
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-s.stopChan:
				return
			default:
			}

			s.mu.Lock()
			s.reconnects++
			attempts := s.reconnects
			s.mu.Unlock()

			s.logger.Warn().
				Err(err).
				Int("reconnects", attempts).
				Msg("Ticker stream read failed, reconnecting")

			time.Sleep(time.Duration(min64(int64(attempts), 10)) * time.Second)
			if err := s.connect(quote, target); err != nil {
				s.logger.Error().Err(err).Msg("Ticker stream reconnect failed")
			}
			continue
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparseable stream message")
			continue
		}

		if msg.ResponseType != "DATA" || msg.Channel != "TICKER" {
			continue
		}

		var ticker Ticker
		if err := json.Unmarshal(msg.Data, &ticker); err != nil {
			s.logger.Debug().Err(err).Msg("Skipping unparseable ticker payload")
			continue
		}

		s.mu.Lock()
		s.lastTicker = &ticker
		cb := s.onTicker
		s.mu.Unlock()

		if cb != nil {
			cb(&ticker)
		}
	}
}

func (s *TickerStream) pingLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug().Err(err).Msg("Ping failed")
			}
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

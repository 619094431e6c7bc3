package coinone

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.coinone.co.kr"

// Client is a Coinone public API client. It only touches public (unsigned)
// endpoints; order placement and account access are out of scope.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new Coinone public API client.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger.With().Str("component", "CoinoneClient").Logger(),
	}
}

type chartResponse struct {
	Result    string   `json:"result"`
	ErrorCode string   `json:"error_code"`
	Chart     []Candle `json:"chart"`
}

type tickerResponse struct {
	Result    string   `json:"result"`
	ErrorCode string   `json:"error_code"`
	Tickers   []Ticker `json:"tickers"`
}

// GetChart fetches candles for a pair between start and end (inclusive),
// both Unix milliseconds. Candles are returned ascending by timestamp and
// validated for gaps.
func (c *Client) GetChart(ctx context.Context, quote, target string, interval Interval, start, end int64) ([]Candle, error) {
	endpoint := fmt.Sprintf("%s/public/v2/chart/%s/%s", c.baseURL, quote, target)

	params := url.Values{}
	params.Set("interval", string(interval))
	params.Set("start_time", strconv.FormatInt(start, 10))
	params.Set("end_time", strconv.FormatInt(end, 10))

	var resp chartResponse
	if err := c.get(ctx, endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}

	if resp.Result != "success" {
		return nil, fmt.Errorf("coinone chart request failed: error_code=%s", resp.ErrorCode)
	}

	candles := resp.Chart
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp < candles[j].Timestamp
	})

	if err := ValidateContinuity(candles, interval); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("pair", target+"/"+quote).
		Str("interval", string(interval)).
		Int("candles", len(candles)).
		Msg("Fetched chart data")

	return candles, nil
}

// GetTicker fetches the latest ticker for a pair.
func (c *Client) GetTicker(ctx context.Context, quote, target string) (*Ticker, error) {
	endpoint := fmt.Sprintf("%s/public/v2/ticker_new/%s/%s", c.baseURL, quote, target)

	var resp tickerResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, err
	}

	if resp.Result != "success" {
		return nil, fmt.Errorf("coinone ticker request failed: error_code=%s", resp.ErrorCode)
	}
	if len(resp.Tickers) == 0 {
		return nil, fmt.Errorf("coinone ticker response empty for %s/%s", target, quote)
	}

	return &resp.Tickers[0], nil
}

func (c *Client) get(ctx context.Context, rawURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

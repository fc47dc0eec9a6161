// Package pricefeed reads spot prices and daily price history from a
// CoinGecko-compatible API.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 10 * time.Second
	vsCurrency     = "usd"
)

type PricePoint struct {
	At    time.Time
	Price float64
}

// Source is what the sizer needs from a price feed.
type Source interface {
	LatestPrice(ctx context.Context, id string) (float64, error)
	DailySeries(ctx context.Context, id string, days int) ([]PricePoint, error)
}

type Config struct {
	BaseURL string `mapstructure:"baseUrl"`
	APIKey  string `mapstructure:"apiKey"`
	// APIKeyHeader is x-cg-demo-api-key for the public tier, x-cg-pro-api-key for pro.
	APIKeyHeader string        `mapstructure:"apiKeyHeader"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type Client struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	header := cfg.APIKeyHeader
	if header == "" {
		header = "x-cg-demo-api-key"
	}
	return &Client{
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      base,
		apiKey:       cfg.APIKey,
		apiKeyHeader: header,
	}
}

// LatestPrice wraps GET /simple/price.
func (c *Client) LatestPrice(ctx context.Context, id string) (float64, error) {
	q := url.Values{}
	q.Set("ids", id)
	q.Set("vs_currencies", vsCurrency)

	var out map[string]map[string]float64
	if err := c.get(ctx, "/simple/price", q, &out); err != nil {
		return 0, err
	}
	price, ok := out[id][vsCurrency]
	if !ok {
		return 0, fmt.Errorf("%w: no %s price for %q", errs.ErrPriceDataUnavailable, vsCurrency, id)
	}
	return price, nil
}

type marketChartResponse struct {
	Prices [][]json.Number `json:"prices"`
}

// DailySeries wraps GET /coins/{id}/market_chart and returns points oldest first.
func (c *Client) DailySeries(ctx context.Context, id string, days int) ([]PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", vsCurrency)
	q.Set("days", fmt.Sprint(days))
	q.Set("interval", "daily")

	var out marketChartResponse
	if err := c.get(ctx, "/coins/"+url.PathEscape(id)+"/market_chart", q, &out); err != nil {
		return nil, err
	}
	return parseSeries(out.Prices)
}

func parseSeries(raw [][]json.Number) ([]PricePoint, error) {
	points := make([]PricePoint, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%w: price pair %d has %d elements", errs.ErrPriceDataUnavailable, i, len(pair))
		}
		ms, err := pair[0].Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: price pair %d timestamp: %v", errs.ErrPriceDataUnavailable, i, err)
		}
		price, err := pair[1].Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: price pair %d value: %v", errs.ErrPriceDataUnavailable, i, err)
		}
		points = append(points, PricePoint{At: time.UnixMilli(int64(ms)).UTC(), Price: price})
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
	return points, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("price feed %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", errs.ErrPriceDataUnavailable, path, err)
	}
	return nil
}

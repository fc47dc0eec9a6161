package pricefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

func newFeed(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "cg-key"})
}

func TestLatestPrice(t *testing.T) {
	var (
		mu  sync.Mutex
		ids []string
	)
	c := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		assert.Equal(t, "cg-key", r.Header.Get("x-cg-demo-api-key"))
		mu.Lock()
		ids = append(ids, r.URL.Query().Get("ids"))
		mu.Unlock()
		// only ethereum is known to this feed
		_, _ = w.Write([]byte(`{"ethereum":{"usd":2000.5}}`))
	})

	price, err := c.LatestPrice(context.Background(), "ethereum")
	require.NoError(t, err)
	assert.Equal(t, 2000.5, price)

	_, err = c.LatestPrice(context.Background(), "bitcoin")
	require.ErrorIs(t, err, errs.ErrPriceDataUnavailable)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"ethereum", "bitcoin"}, ids)
}

func TestDailySeriesSortsAndParses(t *testing.T) {
	c := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/ethereum/market_chart", r.URL.Path)
		assert.Equal(t, "365", r.URL.Query().Get("days"))
		assert.Equal(t, "daily", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"prices":[[1700086400000,2100],[1700000000000,2000.25]]}`))
	})

	points, err := c.DailySeries(context.Background(), "ethereum", 365)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 2000.25, points[0].Price)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), points[0].At)
	assert.Equal(t, 2100.0, points[1].Price)
}

func TestDailySeriesRejectsMalformedPairs(t *testing.T) {
	for name, body := range map[string]string{
		"short pair":    `{"prices":[[1700000000000]]}`,
		"null price":    `{"prices":[[1700000000000,null]]}`,
		"string price":  `{"prices":[[1700000000000,"abc"]]}`,
		"not an object": `[]`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			_, err := c.DailySeries(context.Background(), "ethereum", 30)
			require.ErrorIs(t, err, errs.ErrPriceDataUnavailable)
		})
	}
}

func TestNon200IsAnError(t *testing.T) {
	c := newFeed(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error_code":429}}`, http.StatusTooManyRequests)
	})
	_, err := c.LatestPrice(context.Background(), "ethereum")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.NotErrorIs(t, err, errs.ErrPriceDataUnavailable)
}

type memoryCache struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	sets    int
	lastTTL time.Duration
}

func (m *memoryCache) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(value.([]byte))
	m.sets++
	m.lastTTL = ttl
	return redis.NewStatusResult("OK", nil)
}

type countingSource struct {
	calls  int
	points []PricePoint
}

func (c *countingSource) LatestPrice(context.Context, string) (float64, error) {
	return 1, nil
}

func (c *countingSource) DailySeries(context.Context, string, int) ([]PricePoint, error) {
	c.calls++
	return c.points, nil
}

func TestCachedSourceServesRepeatReads(t *testing.T) {
	src := &countingSource{points: []PricePoint{
		{At: time.UnixMilli(1700000000000).UTC(), Price: 2000},
		{At: time.UnixMilli(1700086400000).UTC(), Price: 2040},
	}}
	cache := &memoryCache{data: map[string]string{}}
	cs := NewCachedSource(src, cache, time.Hour)

	first, err := cs.DailySeries(context.Background(), "ethereum", 365)
	require.NoError(t, err)
	second, err := cs.DailySeries(context.Background(), "ethereum", 365)
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 1, cache.sets)
	assert.Equal(t, time.Hour, cache.lastTTL)
	assert.Equal(t, first, second)

	_, err = cs.DailySeries(context.Background(), "ethereum", 30)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestCachedSourceFallsThroughOnCacheError(t *testing.T) {
	src := &countingSource{points: []PricePoint{{Price: 1}, {Price: 2}}}
	cache := &memoryCache{data: map[string]string{}, getErr: assert.AnError}
	cs := NewCachedSource(src, cache, time.Minute)

	points, err := cs.DailySeries(context.Background(), "ethereum", 365)
	require.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Equal(t, 1, src.calls)
}

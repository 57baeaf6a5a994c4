package price

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/metrics"

	"github.com/golang/groupcache/lru"
	"github.com/shopspring/decimal"
)

var CoinCapBaseURL = "https://api.coincap.io/v2"

const cacheSize = 64

type assetResponse struct {
	Data struct {
		PriceUsd string `json:"priceUsd"`
	} `json:"data"`
}

type cached struct {
	price decimal.Decimal
	at    time.Time
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches USD prices from a coincap-compatible API and keeps them for
// ttl. A zero ttl disables the cache.
type Client struct {
	baseURL    string
	httpClient Doer
	ttl        time.Duration

	mu    sync.Mutex
	cache *lru.Cache
	now   func() time.Time
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

func NewClient(baseURL string, ttl time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = CoinCapBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		ttl:        ttl,
		cache:      lru.New(cacheSize),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Price returns the USD unit price of token.
func (c *Client) Price(ctx context.Context, token chains.Token) (decimal.Decimal, error) {
	info, err := chains.TokenDetails(token)
	if err != nil {
		return decimal.Zero, err
	}

	if p, ok := c.lookup(token); ok {
		metrics.PriceRequests.WithLabelValues(string(token), "cached").Inc()
		return p, nil
	}

	p, err := c.fetch(ctx, info.PriceAssetID)
	metrics.PriceRequests.WithLabelValues(string(token), metrics.Outcome(err)).Inc()
	if err != nil {
		return decimal.Zero, fmt.Errorf("price %s: %w", token, err)
	}
	c.store(token, p)
	return p, nil
}

func (c *Client) fetch(ctx context.Context, assetID string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/assets/%s", c.baseURL, assetID), nil)
	if err != nil {
		return decimal.Zero, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("http status %d", resp.StatusCode)
	}

	var out assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(out.Data.PriceUsd)
}

func (c *Client) lookup(token chains.Token) (decimal.Decimal, bool) {
	if c.ttl <= 0 {
		return decimal.Zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(token)
	if !ok {
		return decimal.Zero, false
	}
	e := v.(cached)
	if c.now().Sub(e.at) > c.ttl {
		c.cache.Remove(token)
		return decimal.Zero, false
	}
	return e.price, true
}

func (c *Client) store(token chains.Token, p decimal.Decimal) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Add(token, cached{price: p, at: c.now()})
}

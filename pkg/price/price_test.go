package price

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"walletunity/pkg/chains"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrice(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/assets/ethereum", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":"ethereum","priceUsd":"2000.5"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Minute)
	p, err := c.Price(context.Background(), chains.ETH)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("2000.5")))

	// second call is served from cache
	_, err = c.Price(context.Background(), chains.ETH)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPriceCacheExpiry(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"data":{"priceUsd":"1.0001"}}`))
	}))
	defer server.Close()

	now := time.Now()
	c := NewClient(server.URL, time.Minute)
	c.now = func() time.Time { return now }

	_, err := c.Price(context.Background(), chains.USDC)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Price(context.Background(), chains.USDC)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPriceErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(server.URL, 0)
	p, err := c.Price(context.Background(), chains.UNI)
	assert.Error(t, err)
	assert.True(t, p.IsZero())

	_, err = c.Price(context.Background(), chains.Token("DOGE"))
	assert.ErrorIs(t, err, chains.ErrUnknownToken)
}

func TestPriceMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"priceUsd":""}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Minute)
	_, err := c.Price(context.Background(), chains.AVAX)
	assert.Error(t, err)
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }

func TestWithHTTPClient(t *testing.T) {
	var urls []string
	d := doerFunc(func(req *http.Request) (*http.Response, error) {
		urls = append(urls, req.URL.String())
		rec := httptest.NewRecorder()
		_, _ = rec.WriteString(`{"data":{"priceUsd":"1.0001"}}`)
		return rec.Result(), nil
	})

	c := NewClient("http://prices.test/v2/", 0, WithHTTPClient(d))
	p, err := c.Price(context.Background(), chains.USDC)
	require.NoError(t, err)
	assert.True(t, p.Equal(decimal.RequireFromString("1.0001")))
	assert.Equal(t, []string{"http://prices.test/v2/assets/usd-coin"}, urls)
}

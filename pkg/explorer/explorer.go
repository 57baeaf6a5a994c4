package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/metrics"
)

var (
	// ErrNotOK is returned when the API answers with status != "1".
	ErrNotOK      = errors.New("explorer response status not ok")
	ErrNoEndpoint = errors.New("no explorer endpoint for chain")
	ErrBadResult  = errors.New("unparseable explorer result")
)

var RequestTimeout = 10 * time.Second

// Response is the envelope every etherscan-compatible API returns.
type Response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// Endpoint is the API base URL and key of one chain's explorer.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// ReceiptStatus is the value of gettxreceiptstatus: "1" success, "0" failed,
// "" not yet mined.
type ReceiptStatus string

const (
	ReceiptSuccess ReceiptStatus = "1"
	ReceiptFailed  ReceiptStatus = "0"
	ReceiptPending ReceiptStatus = ""
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	httpClient Doer
	endpoints  map[chains.Chain]Endpoint
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

func NewClient(endpoints map[chains.Chain]Endpoint, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: RequestTimeout},
		endpoints:  endpoints,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NativeBalance returns the raw native balance (wei) of address.
func (c *Client) NativeBalance(ctx context.Context, chain chains.Chain, address string) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "balance")
	params.Set("address", address)
	params.Set("tag", "latest")
	return c.intResult(ctx, chain, params)
}

// TokenBalance returns the raw ERC-20 balance of address for contract.
func (c *Client) TokenBalance(ctx context.Context, chain chains.Chain, contract, address string) (*big.Int, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "tokenbalance")
	params.Set("contractaddress", contract)
	params.Set("address", address)
	params.Set("tag", "latest")
	return c.intResult(ctx, chain, params)
}

// TxReceiptStatus queries module=transaction&action=gettxreceiptstatus.
func (c *Client) TxReceiptStatus(ctx context.Context, chain chains.Chain, txHash string) (ReceiptStatus, error) {
	params := url.Values{}
	params.Set("module", "transaction")
	params.Set("action", "gettxreceiptstatus")
	params.Set("txhash", txHash)

	resp, err := c.get(ctx, chain, params)
	if err != nil {
		return ReceiptPending, err
	}
	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return ReceiptPending, fmt.Errorf("%w: %s", ErrBadResult, string(resp.Result))
	}
	return ReceiptStatus(result.Status), nil
}

func (c *Client) intResult(ctx context.Context, chain chains.Chain, params url.Values) (*big.Int, error) {
	resp, err := c.get(ctx, chain, params)
	if err != nil {
		return nil, err
	}
	var s string
	if err := json.Unmarshal(resp.Result, &s); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBadResult, string(resp.Result))
	}
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBadResult, s)
	}
	return v, nil
}

func (c *Client) get(ctx context.Context, chain chains.Chain, params url.Values) (resp *Response, err error) {
	action := params.Get("action")
	defer func() {
		metrics.ExplorerRequests.WithLabelValues(string(chain), action, metrics.Outcome(err)).Inc()
	}()

	ep, ok := c.endpoints[chain]
	if !ok || ep.BaseURL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEndpoint, chain)
	}
	if ep.APIKey != "" {
		params.Set("apikey", ep.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("explorer %s %s: %w", chain, action, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("explorer %s %s: http status %d", chain, action, httpResp.StatusCode)
	}

	var out Response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("explorer %s %s: decode: %w", chain, action, err)
	}
	if out.Status != "1" {
		return &out, fmt.Errorf("%w: %s %s: %s", ErrNotOK, chain, action, out.Message)
	}
	return &out, nil
}

package attestation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var IrisSandboxURL = "https://iris-api-sandbox.circle.com"

// Status values reported by the attestation service.
const (
	StatusComplete             = "complete"
	StatusPendingConfirmations = "pending_confirmations"
)

// Attestation is the service's answer for one message hash.
type Attestation struct {
	Status    string `json:"status"`
	Signature string `json:"attestation"`
}

func (a Attestation) Complete() bool {
	return a.Status == StatusComplete && a.Signature != "" && a.Signature != "PENDING"
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL    string
	httpClient Doer
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.httpClient = d }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = IrisSandboxURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the attestation for messageHash (0x-prefixed keccak256 of the
// CCTP message). A message the service has not seen yet is reported as
// pending, not as an error.
func (c *Client) Fetch(ctx context.Context, messageHash string) (Attestation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/attestations/%s", c.baseURL, messageHash), nil)
	if err != nil {
		return Attestation{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Attestation{}, fmt.Errorf("attestation %s: %w", messageHash, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Attestation{Status: StatusPendingConfirmations}, nil
	default:
		return Attestation{}, fmt.Errorf("attestation %s: http status %d", messageHash, resp.StatusCode)
	}

	var out Attestation
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Attestation{}, fmt.Errorf("attestation %s: decode: %w", messageHash, err)
	}
	return out, nil
}

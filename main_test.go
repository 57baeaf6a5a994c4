package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/config"
	"walletunity/pkg/models"
	"walletunity/pkg/tracker"
	"walletunity/pkg/watcher"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

// newRPCServer answers eth_chainId with the hex id taken from the request
// path, so one server can impersonate every chain.
func newRPCServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_chainId":
			result = strings.TrimPrefix(r.URL.Path, "/")
		case "eth_getBlockByNumber":
			// Minimal header fields required by go-ethereum
			result = map[string]interface{}{
				"number":           "0x1000",
				"hash":             "0x0000000000000000000000000000000000000000000000000000000000000001",
				"parentHash":       "0x0000000000000000000000000000000000000000000000000000000000000002",
				"sha3Uncles":       "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
				"timestamp":        "0x5f5e1000",
				"miner":            "0x0000000000000000000000000000000000000000",
				"gasLimit":         "0x1",
				"gasUsed":          "0x0",
				"difficulty":       "0x0",
				"extraData":        "0x",
				"mixHash":          "0x0000000000000000000000000000000000000000000000000000000000000000",
				"nonce":            "0x0000000000000000",
				"stateRoot":        "0x0000000000000000000000000000000000000000000000000000000000000000",
				"receiptsRoot":     "0x0000000000000000000000000000000000000000000000000000000000000000",
				"transactionsRoot": "0x0000000000000000000000000000000000000000000000000000000000000000",
				"logsBloom":        "0x" + strings.Repeat("00", 256),
			}
		default:
			result = "0x0"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger("debug", &buf)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = newLogger("loud", &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), `unknown log level \"loud\"`)
}

func TestTestConfig(t *testing.T) {
	server := newRPCServer(t)
	cfg := config.Default()
	cfg.AddAddress(testAddress, "")
	cfg.Chains = []config.ChainConfig{
		{Chain: chains.Ethereum, RPCURLs: []string{server.URL + "/0x5", server.URL + "/0x5"}, APIKey: "KEY"},
		{Chain: chains.Avalanche, RPCURLs: []string{server.URL + "/0xa869"}},
		{Chain: chains.Optimism, RPCURLs: []string{server.URL + "/0x1a4", server.URL + "/0x1"}},
		{Chain: chains.Arbitrum, RPCURLs: []string{"http://127.0.0.1:1"}},
	}

	var out bytes.Buffer
	report := testConfig(context.Background(), cfg, "/tmp/cfg.json", &out)

	assert.True(t, report.ValidStructure)
	assert.Equal(t, 1, report.AddressCount)
	assert.Equal(t, 4, report.ChainCount)
	require.Len(t, report.Chains, 4)

	eth := report.Chains[0]
	assert.True(t, eth.APIKeySet)
	assert.False(t, eth.Inconsistent)
	assert.Equal(t, int64(5), eth.ObservedChainID)
	require.Len(t, eth.RPCs, 2)
	assert.Equal(t, "ok", eth.RPCs[0].Status)

	assert.False(t, report.Chains[2].APIKeySet)
	assert.False(t, report.Chains[2].Inconsistent)
	assert.Equal(t, "AVAX", report.Chains[2].Chain)

	op := report.Chains[1]
	assert.True(t, op.Inconsistent)
	assert.Equal(t, "Mismatch! Expected 420", op.RPCs[1].Error)

	arb := report.Chains[3]
	require.Len(t, arb.RPCs, 1)
	assert.Equal(t, "error", arb.RPCs[0].Status)

	assert.Equal(t, []string{"Optimism"}, report.InconsistentChains)
	assert.Contains(t, out.String(), "Testing Chain: Ethereum (ETH)")
	assert.Contains(t, out.String(), "WARNING: Inconsistent RPCs detected!")
}

func TestTestConfig_InvalidStructure(t *testing.T) {
	cfg := config.Default()
	cfg.Addresses = []config.AddressConfig{{Address: "not-an-address"}}

	var out bytes.Buffer
	report := testConfig(context.Background(), cfg, "cfg.json", &out)
	assert.False(t, report.ValidStructure)
	assert.NotEmpty(t, report.StructureErrors)
	assert.Empty(t, report.Chains)
}

type statusFunc func(models.Transaction) models.Transaction

func (f statusFunc) Status(_ context.Context, tx models.Transaction) (models.Transaction, error) {
	return f(tx), nil
}

func newTrackerApp(t *testing.T, fn statusFunc) (*app, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	hub := watcher.NewHub()
	tr := tracker.New(hub, map[models.TxType]tracker.StatusSource{models.TxSend: fn}, 5*time.Millisecond, log)
	t.Cleanup(tr.Stop)
	return &app{log: log, hub: hub, tracker: tr}, hook
}

func TestTrackOnce(t *testing.T) {
	polls := 0
	a, hook := newTrackerApp(t, func(tx models.Transaction) models.Transaction {
		polls++
		if polls > 1 {
			tx.Status = models.TxFailed
		}
		return tx
	})

	hash := "0x" + strings.Repeat("ab", 32)
	tx, err := a.trackOnce(context.Background(), hash, chains.Ethereum, models.TxSend)
	require.NoError(t, err)
	assert.Equal(t, models.TxFailed, tx.Status)
	assert.Equal(t, hash, tx.Hash)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, models.TxFailed, hook.LastEntry().Data["status"])
}

func TestTrackOnce_Cancelled(t *testing.T) {
	a, _ := newTrackerApp(t, func(tx models.Transaction) models.Transaction { return tx })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	hash := "0x" + strings.Repeat("cd", 32)
	tx, err := a.trackOnce(ctx, hash, chains.Avalanche, models.TxSend)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.TxPending, tx.Status)
}

func TestTrackOnce_InvalidHash(t *testing.T) {
	a, _ := newTrackerApp(t, func(tx models.Transaction) models.Transaction { return tx })
	_, err := a.trackOnce(context.Background(), "0x12", chains.Ethereum, models.TxSend)
	assert.ErrorIs(t, err, tracker.ErrInvalidHash)
}

func TestNewApp_FetchesPortfolio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/assets/") {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]string{"priceUsd": "2"}})
			return
		}
		result := "1000000000000000000"
		if r.URL.Query().Get("action") == "tokenbalance" {
			result = "3000000"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "1", "message": "OK", "result": result})
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.PriceBaseURL = server.URL
	for _, c := range chains.All() {
		cfg.Chains = append(cfg.Chains, config.ChainConfig{Chain: c, ExplorerAPI: server.URL + "/api"})
	}
	log, _ := test.NewNullLogger()
	a := newApp(cfg, log)
	defer a.Close()

	p := a.watcher.Fetch(context.Background(), testAddress)
	require.Len(t, p.Chains, len(chains.All()))
	assert.True(t, p.Total.IsPositive())

	eth := p.Chains[0]
	for _, row := range eth.Tokens {
		if row.Token == chains.USDC {
			assert.True(t, row.Amount.Equal(decimal.NewFromInt(3)), row.Amount.String())
			assert.True(t, row.USD.Equal(decimal.NewFromInt(6)), row.USD.String())
		}
	}

	cached, ok := a.watcher.Portfolio(strings.ToLower(testAddress))
	require.True(t, ok)
	assert.True(t, cached.Total.Equal(p.Total))
}

func TestPrintPortfolio(t *testing.T) {
	p := models.Portfolio{
		Address: testAddress,
		Chains: []models.ChainRow{{
			Name: "Ethereum",
			USD:  decimal.NewFromFloat(12.5),
			Tokens: []models.TokenRow{
				{Token: chains.USDC, Amount: decimal.NewFromFloat(12.5), USD: decimal.NewFromFloat(12.5)},
				{Token: chains.UNI, Error: "price UNI: http status 500"},
			},
		}},
		Total: decimal.NewFromFloat(12.5),
	}

	var out bytes.Buffer
	printPortfolio(&out, p, 2, 4)
	s := out.String()
	assert.Contains(t, s, "Address: "+testAddress)
	assert.Contains(t, s, "12.5000")
	assert.Contains(t, s, "(price UNI: http status 500)")
	assert.Contains(t, s, "Total: $12.50")
}

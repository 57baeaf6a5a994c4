package main

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"

	"walletunity/pkg/attestation"
	"walletunity/pkg/chains"
	"walletunity/pkg/config"
	"walletunity/pkg/explorer"
	"walletunity/pkg/models"
	"walletunity/pkg/portfolio"
	"walletunity/pkg/price"
	"walletunity/pkg/rpc"
	"walletunity/pkg/tracker"
	"walletunity/pkg/utils"
	"walletunity/pkg/watcher"

	"github.com/sirupsen/logrus"
)

// app holds the long-lived components shared by the TUI and the API server.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	hub     *watcher.Hub
	watcher *watcher.Watcher
	tracker *tracker.Tracker
}

func newApp(cfg config.Config, log *logrus.Logger) *app {
	// One client keeps a single connection pool across the REST APIs.
	httpClient := &http.Client{Timeout: explorer.RequestTimeout}
	explorerClient := explorer.NewClient(cfg.Endpoints(), explorer.WithHTTPClient(httpClient))
	priceClient := price.NewClient(cfg.PriceBaseURL, cfg.PriceCacheTTL(), price.WithHTTPClient(httpClient))
	attestationClient := attestation.NewClient(cfg.AttestationBaseURL, attestation.WithHTTPClient(httpClient))
	fetcher := portfolio.NewFetcher(explorerClient, priceClient, log)

	hub := watcher.NewHub()
	w := watcher.NewWatcher(fetcher, cfg.AddressList(), chains.All(), cfg.RefreshInterval(), hub, log)

	sources := map[models.TxType]tracker.StatusSource{
		models.TxSend:   tracker.NewReceiptSource(tracker.RPCReceipts(cfg.RPCURLs()), attestationClient),
		models.TxRedeem: tracker.NewExplorerSource(explorerClient),
	}
	// A finished transfer moves balances on both chains.
	t := tracker.New(hub, sources, cfg.PollInterval(), log,
		tracker.OnComplete(func(models.Transaction) { w.Refresh() }))

	return &app{cfg: cfg, log: log, hub: hub, watcher: w, tracker: t}
}

func (a *app) Close() {
	a.tracker.Stop()
	a.watcher.Stop()
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown log level %q, using info", level)
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	return log
}

// testConfig validates cfg and probes every RPC of every chain. Progress is
// written to out.
func testConfig(ctx context.Context, cfg config.Config, path string, out io.Writer) models.TestReport {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		AddressCount:   len(cfg.AddressList()),
		ChainCount:     len(chains.All()),
	}
	fmt.Fprintf(out, "Testing configuration at: %s\n", path)

	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		fmt.Fprintf(out, "Error: %v\n", err)
		return report
	}
	fmt.Fprintf(out, "Found %d addresses and %d chains.\n", report.AddressCount, report.ChainCount)

	for _, c := range chains.All() {
		info, _ := chains.Info(c)
		cc := cfg.Chain(c)
		result := models.ChainResult{
			Name:            info.Name,
			Chain:           string(c),
			ExpectedChainID: info.ChainID,
			APIKeySet:       cc.APIKey != "",
		}
		fmt.Fprintf(out, "Testing Chain: %s (%s)\n", info.Name, c)
		if !result.APIKeySet {
			fmt.Fprintf(out, "  WARNING: no explorer API key, balances may be rate limited\n")
		}

		var observed *big.Int
		for _, url := range cc.RPCURLs {
			r := probeRPC(ctx, url, info.ChainID)
			fmt.Fprintf(out, "  RPC: %s ... ", url)
			if r.Status != "ok" {
				fmt.Fprintf(out, "Failed: %s\n", r.Error)
				result.RPCs = append(result.RPCs, r)
				continue
			}
			fmt.Fprintf(out, "OK (ChainID: %d, %dms)", r.ChainID, r.LatencyMS)
			id := big.NewInt(r.ChainID)
			if observed == nil {
				observed = id
				result.ObservedChainID = r.ChainID
			} else if observed.Cmp(id) != 0 {
				fmt.Fprintf(out, " - WARNING: ChainID mismatch with previous RPC (%s)", observed)
				result.Inconsistent = true
			}
			if r.Error != "" {
				fmt.Fprintf(out, " - MISMATCH! Expected %d", info.ChainID)
				result.Inconsistent = true
			} else {
				fmt.Fprint(out, " - Verified")
			}
			fmt.Fprintln(out)
			result.RPCs = append(result.RPCs, r)
		}

		if result.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, info.Name)
		}
		report.Chains = append(report.Chains, result)
	}

	if len(report.InconsistentChains) > 0 {
		fmt.Fprintln(out, "\nWARNING: Inconsistent RPCs detected!")
		fmt.Fprintln(out, "The following chains have RPCs returning unexpected Chain IDs:")
		for _, name := range report.InconsistentChains {
			fmt.Fprintf(out, " - %s\n", name)
		}
	}
	return report
}

func probeRPC(ctx context.Context, url string, expected int64) models.RPCResult {
	r := models.RPCResult{URL: url}
	id, err := rpc.FetchChainID(ctx, url)
	if err != nil {
		r.Status = "error"
		r.Error = err.Error()
		return r
	}
	r.Status = "ok"
	r.ChainID = id.Int64()
	if lat, err := rpc.FetchRPCLatency(url); err == nil {
		r.LatencyMS = lat.Latency.Milliseconds()
	}
	if r.ChainID != expected {
		r.Error = fmt.Sprintf("Mismatch! Expected %d", expected)
	}
	return r
}

// trackOnce polls a single transaction until it is terminal or ctx ends.
func (a *app) trackOnce(ctx context.Context, hash string, chain chains.Chain, typ models.TxType) (models.Transaction, error) {
	sub := a.hub.Subscribe()
	defer a.hub.Unsubscribe(sub)

	tx, err := a.tracker.Track(hash, chain, typ)
	if err != nil {
		return tx, err
	}
	for {
		select {
		case ev := <-sub:
			got, ok := ev.Data.(models.Transaction)
			if !ok || got.Hash != tx.Hash {
				continue
			}
			a.log.WithField("status", got.Status).Infof("transaction %s", utils.ShortHash(got.Hash))
			if got.Status.Terminal() {
				return got, nil
			}
		case <-ctx.Done():
			last, _ := a.tracker.Get(tx.Hash)
			return last, ctx.Err()
		}
	}
}

func printPortfolio(out io.Writer, p models.Portfolio, fiatDecimals, tokenDecimals int) {
	fmt.Fprintf(out, "Address: %s\n", p.Address)
	for _, c := range p.Chains {
		fmt.Fprintf(out, "%-10s $%s\n", c.Name, utils.FormatDecimal(c.USD, int32(fiatDecimals)))
		for _, t := range c.Tokens {
			line := fmt.Sprintf("  %-6s %14s  $%s", t.Token,
				utils.FormatDecimal(t.Amount, int32(tokenDecimals)),
				utils.FormatDecimal(t.USD, int32(fiatDecimals)))
			if t.Error != "" {
				line += "  (" + t.Error + ")"
			}
			fmt.Fprintln(out, line)
		}
	}
	fmt.Fprintf(out, "%s\nTotal: $%s\n", strings.Repeat("-", 32), utils.FormatDecimal(p.Total, int32(fiatDecimals)))
}

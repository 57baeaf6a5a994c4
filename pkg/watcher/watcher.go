package watcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/models"

	"github.com/sirupsen/logrus"
)

// DataSource builds portfolios.
type DataSource interface {
	Aggregate(ctx context.Context, cs []chains.Chain, address string) models.Portfolio
}

// Watcher keeps the portfolios of the watched addresses fresh and publishes
// each refresh on its hub.
type Watcher struct {
	hub        *Hub
	chains     []chains.Chain
	interval   time.Duration
	dataSource DataSource
	log        *logrus.Logger

	mu         sync.RWMutex
	addresses  []string
	portfolios map[string]models.Portfolio

	refresh  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(ds DataSource, addresses []string, cs []chains.Chain, interval time.Duration, hub *Hub, log *logrus.Logger) *Watcher {
	if hub == nil {
		hub = NewHub()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &Watcher{
		hub:        hub,
		chains:     cs,
		interval:   interval,
		dataSource: ds,
		log:        log,
		portfolios: make(map[string]models.Portfolio),
		refresh:    make(chan struct{}, 1),
		stopChan:   make(chan struct{}),
	}
	for _, a := range addresses {
		w.AddAddress(a)
	}
	return w
}

func (w *Watcher) Hub() *Hub { return w.hub }

// AddAddress starts watching address. It reports false if the address was
// empty or already watched.
func (w *Watcher) AddAddress(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, a := range w.addresses {
		if strings.EqualFold(a, address) {
			return false
		}
	}
	w.addresses = append(w.addresses, address)
	return true
}

func (w *Watcher) Addresses() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]string, len(w.addresses))
	copy(out, w.addresses)
	return out
}

// Start begins the monitoring loop.
func (w *Watcher) Start(ctx context.Context) {
	go w.pollingLoop(ctx)
}

// Stop stops the monitoring loop.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// Refresh asks the loop for an immediate refresh.
func (w *Watcher) Refresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

func (w *Watcher) pollingLoop(ctx context.Context) {
	w.fetchAll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.fetchAll(ctx)
		case <-w.refresh:
			w.fetchAll(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) fetchAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, addr := range w.Addresses() {
		wg.Add(1)
		go func(address string) {
			defer wg.Done()
			w.Fetch(ctx, address)
		}(addr)
	}
	wg.Wait()
}

// Fetch aggregates the portfolio of address now, caches it and publishes it.
// The address does not have to be watched.
func (w *Watcher) Fetch(ctx context.Context, address string) models.Portfolio {
	w.mu.RLock()
	ds := w.dataSource
	w.mu.RUnlock()

	p := ds.Aggregate(ctx, w.chains, address)
	w.mu.Lock()
	w.portfolios[strings.ToLower(address)] = p
	w.mu.Unlock()
	w.log.WithField("address", address).WithField("total", p.Total.StringFixed(2)).Debug("portfolio refreshed")
	w.hub.Publish(Event{Type: EventPortfolioUpdated, Data: p})
	return p
}

// Portfolio returns the last portfolio fetched for address.
func (w *Watcher) Portfolio(address string) (models.Portfolio, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.portfolios[strings.ToLower(address)]
	return p, ok
}

// Portfolios returns the last fetched portfolios in address order.
func (w *Watcher) Portfolios() []models.Portfolio {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []models.Portfolio
	for _, a := range w.addresses {
		if p, ok := w.portfolios[strings.ToLower(a)]; ok {
			out = append(out, p)
		}
	}
	return out
}

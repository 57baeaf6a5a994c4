package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"walletunity/pkg/chains"
	"walletunity/pkg/models"
	"walletunity/pkg/watcher"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFound        = errors.New("transaction not tracked")
	ErrInvalidHash     = errors.New("invalid transaction hash")
	ErrUnsupportedType = errors.New("unsupported transaction type")
)

// Tracker keeps the tracked transactions and polls each one in its own
// goroutine. State changes are published on the hub.
type Tracker struct {
	hub        *watcher.Hub
	sources    map[models.TxType]StatusSource
	interval   time.Duration
	log        *logrus.Logger
	onComplete func(models.Transaction)
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	records map[string]models.Transaction
	polls   map[string]*poll
}

// poll is the handle of one running poller. A record has at most one.
type poll struct {
	stop context.CancelFunc
}

type Option func(*Tracker)

// OnComplete registers fn to run once for every transaction that completes.
func OnComplete(fn func(models.Transaction)) Option {
	return func(t *Tracker) { t.onComplete = fn }
}

func New(hub *watcher.Hub, sources map[models.TxType]StatusSource, interval time.Duration, log *logrus.Logger, opts ...Option) *Tracker {
	if hub == nil {
		hub = watcher.NewHub()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		hub:      hub,
		sources:  sources,
		interval: interval,
		log:      log,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		records:  make(map[string]models.Transaction),
		polls:    make(map[string]*poll),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Hub() *watcher.Hub { return t.hub }

// NormalizeHash validates a 32-byte hex transaction hash and lower-cases it.
func NormalizeHash(hash string) (string, error) {
	hash = strings.ToLower(strings.TrimSpace(hash))
	b, err := hexutil.Decode(hash)
	if err != nil || len(b) != 32 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return hash, nil
}

// Track starts polling a transaction. Tracking a hash that is already being
// polled, or that is terminal, returns the existing record. A pending record
// whose poll was cancelled is polled again.
func (t *Tracker) Track(hash string, chain chains.Chain, typ models.TxType) (models.Transaction, error) {
	key, err := NormalizeHash(hash)
	if err != nil {
		return models.Transaction{}, err
	}
	if _, err := chains.Info(chain); err != nil {
		return models.Transaction{}, err
	}
	source, ok := t.sources[typ]
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %q", ErrUnsupportedType, typ)
	}

	t.mu.Lock()
	tx, exists := t.records[key]
	if exists {
		if _, live := t.polls[key]; live || tx.Status.Terminal() {
			t.mu.Unlock()
			return tx, nil
		}
		source, ok = t.sources[tx.Type]
		if !ok {
			t.mu.Unlock()
			return tx, fmt.Errorf("%w: %q", ErrUnsupportedType, tx.Type)
		}
	} else {
		now := t.now()
		tx = models.Transaction{
			Hash:      key,
			Chain:     chain,
			Type:      typ,
			Status:    models.TxPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		t.records[key] = tx
	}
	ctx, stop := context.WithCancel(t.ctx)
	p := &poll{stop: stop}
	t.polls[key] = p
	t.mu.Unlock()

	entry := t.log.WithField("tx", key).WithField("chain", tx.Chain).WithField("type", tx.Type)
	if exists {
		entry.Info("resuming transaction")
	} else {
		entry.Info("tracking transaction")
	}

	poller := NewPoller(source, t.interval, t.log, WithUpdates(t.update))
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer stop()
		final := poller.Poll(ctx, tx, t.complete)
		t.finish(p, final)
	}()
	return tx, nil
}

// finish stores the last record of a poll and releases its handle. A poll
// that was cancelled or superseded leaves the record alone.
func (t *Tracker) finish(p *poll, final models.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.polls[final.Hash] != p {
		return
	}
	delete(t.polls, final.Hash)
	t.records[final.Hash] = final
}

func (t *Tracker) store(tx models.Transaction) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.records[tx.Hash]; ok {
		t.records[tx.Hash] = tx
	}
}

func (t *Tracker) update(tx models.Transaction) {
	t.store(tx)
	t.hub.Publish(watcher.Event{Type: watcher.EventTransactionUpdated, Data: tx})
}

func (t *Tracker) complete(tx models.Transaction) {
	t.store(tx)
	t.log.WithField("tx", tx.Hash).WithField("chain", tx.Chain).Info("transaction complete")
	t.hub.Publish(watcher.Event{Type: watcher.EventTransactionComplete, Data: tx})
	if t.onComplete != nil {
		t.onComplete(tx)
	}
}

// Get returns the tracked record for hash.
func (t *Tracker) Get(hash string) (models.Transaction, error) {
	key, err := NormalizeHash(hash)
	if err != nil {
		return models.Transaction{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	tx, ok := t.records[key]
	if !ok {
		return models.Transaction{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return tx, nil
}

// List returns all records, oldest first.
func (t *Tracker) List() []models.Transaction {
	t.mu.RLock()
	out := make([]models.Transaction, 0, len(t.records))
	for _, tx := range t.records {
		out = append(out, tx)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Hash < out[j].Hash
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Cancel stops polling hash. The record is kept with its last status and
// can be tracked again.
func (t *Tracker) Cancel(hash string) error {
	key, err := NormalizeHash(hash)
	if err != nil {
		return err
	}
	t.mu.Lock()
	if _, ok := t.records[key]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	p, live := t.polls[key]
	delete(t.polls, key)
	t.mu.Unlock()
	if live {
		p.stop()
	}
	return nil
}

// Polling reports whether hash has a running poll.
func (t *Tracker) Polling(hash string) bool {
	key, err := NormalizeHash(hash)
	if err != nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.polls[key]
	return ok
}

// Stop cancels every poll and waits for them to return.
func (t *Tracker) Stop() {
	t.cancel()
	t.wg.Wait()
}

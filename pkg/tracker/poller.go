package tracker

import (
	"context"
	"sync"
	"time"

	"walletunity/pkg/metrics"
	"walletunity/pkg/models"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// DefaultInterval is the delay between two status checks.
const DefaultInterval = 5 * time.Second

// Poller checks a StatusSource on a fixed interval. There is no backoff and
// no retry limit: a transaction is polled until it reaches a terminal status
// or the context is cancelled.
type Poller struct {
	source   StatusSource
	interval time.Duration
	log      *logrus.Logger
	onUpdate func(models.Transaction)
	now      func() time.Time

	polls atomic.Int64
}

type PollerOption func(*Poller)

// WithUpdates registers fn to receive every record whose state changed.
func WithUpdates(fn func(models.Transaction)) PollerOption {
	return func(p *Poller) { p.onUpdate = fn }
}

func NewPoller(source StatusSource, interval time.Duration, log *logrus.Logger, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Poller{source: source, interval: interval, log: log, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Polls returns the number of status checks issued so far.
func (p *Poller) Polls() int64 {
	return p.polls.Load()
}

// Poll checks tx immediately and then every interval until its status is
// terminal or ctx is done. onComplete runs at most once, when the status
// becomes complete. The last known record is returned.
func (p *Poller) Poll(ctx context.Context, tx models.Transaction, onComplete func(models.Transaction)) models.Transaction {
	var once sync.Once

	check := func() bool {
		p.polls.Inc()
		metrics.TransactionPolls.WithLabelValues(string(tx.Type)).Inc()

		next, err := p.source.Status(ctx, tx)
		next.Polls = tx.Polls + 1
		entry := p.log.WithField("tx", tx.Hash).WithField("chain", tx.Chain).WithField("type", tx.Type)
		if err != nil && ctx.Err() == nil {
			entry.WithError(err).Warn("transaction status check failed")
		}
		entry.WithField("status", next.Status).Debug("transaction polled")

		changed := next.Status != tx.Status || next.MessageHash != tx.MessageHash || next.Signature != tx.Signature
		if changed {
			next.UpdatedAt = p.now()
		}
		tx = next
		if changed && p.onUpdate != nil {
			p.onUpdate(tx)
		}

		if !tx.Status.Terminal() {
			return false
		}
		metrics.TransactionsFinished.WithLabelValues(string(tx.Type), string(tx.Status)).Inc()
		if tx.Status == models.TxComplete && onComplete != nil {
			once.Do(func() { onComplete(tx) })
		}
		return true
	}

	if tx.Status.Terminal() || ctx.Err() != nil {
		return tx
	}
	if check() {
		return tx
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return tx
		case <-ticker.C:
			if check() {
				return tx
			}
		}
	}
}

// Package sync runs the fetch→dedup→notify→mark cycle on a fixed
// interval.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/notify"
	"github.com/nhle/mailnotify/internal/store"
)

// Fetcher drains the mailbox once, returning decoded messages keyed by
// server uid, or (nil, nil) when nothing matched the search.
type Fetcher interface {
	FetchAll(ctx context.Context) (map[uint32]model.DecodedMessage, error)
}

// Loop owns the sequential poll cycle. Exactly one cycle runs at a
// time; the store, fetcher, and notifier are never accessed
// concurrently.
type Loop struct {
	store    store.Store
	fetcher  Fetcher
	notifier notify.Notifier
	interval time.Duration
	log      *zap.SugaredLogger
}

// NewLoop wires a poll loop over the given collaborators.
func NewLoop(
	s store.Store,
	f Fetcher,
	n notify.Notifier,
	interval time.Duration,
	log *zap.SugaredLogger,
) *Loop {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Loop{
		store:    s,
		fetcher:  f,
		notifier: n,
		interval: interval,
		log:      log,
	}
}

// Run executes cycles until ctx is cancelled: one immediately, then one
// per interval tick. Nothing inside a cycle stops the loop.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Infow("poll loop started", "interval", l.interval)
	for {
		l.RunCycle(ctx)
		select {
		case <-ctx.Done():
			l.log.Info("poll loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunCycle performs one full fetch→dedup→notify→mark pass. Transport
// and protocol failures abandon the cycle after a best-effort failure
// report; storage and notification failures are logged and the affected
// records retry on a later cycle.
func (l *Loop) RunCycle(ctx context.Context) {
	log := l.log.With("cycle", uuid.NewString())

	messages, err := l.fetcher.FetchAll(ctx)
	if err != nil {
		log.Errorw("mailbox fetch failed, cycle abandoned", "error", err)
		l.reportFailure(ctx, log, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	inserted, err := l.store.CommitNew(ctx, messages)
	if err != nil {
		// The batch is dropped; the same messages are offered again
		// next cycle as long as they still match the search.
		log.Errorw("committing new mail failed", "error", err)
	} else {
		log.Infow("mail committed", "fetched", len(messages), "new", inserted)
	}

	undelivered, err := l.store.FetchAll(ctx, true)
	if err != nil {
		log.Errorw("listing undelivered mail failed", "error", err)
		return
	}

	for _, rec := range undelivered {
		if ctx.Err() != nil {
			return
		}
		if err := l.notifier.Send(ctx, FormatRecord(rec)); err != nil {
			log.Errorw("notification failed, will retry next cycle",
				"uid", rec.UID, "error", err)
			continue
		}
		if err := l.store.MarkDelivered(ctx, rec.UID); err != nil {
			// Delivered but not recorded: the record is re-sent next
			// cycle. At-least-once, by contract.
			log.Errorw("marking delivered failed", "uid", rec.UID, "error", err)
		}
	}
}

// reportFailure forwards a cycle failure to the operator chat. A
// failure to deliver the report itself is logged and swallowed.
func (l *Loop) reportFailure(ctx context.Context, log *zap.SugaredLogger, err error) {
	text := fmt.Sprintf("mailnotify: cycle failed: %v", err)
	if sendErr := l.notifier.Send(ctx, text); sendErr != nil {
		log.Errorw("failure report not delivered", "error", sendErr)
	}
}

// FormatRecord renders one stored message as the operator-facing
// notification text.
func FormatRecord(r model.MailRecord) string {
	return fmt.Sprintf(
		"Subject: %s\n\nFrom: %s\nDate: %s\nMessage:\n%s",
		r.Thread, r.Sender, r.Date, r.Body,
	)
}

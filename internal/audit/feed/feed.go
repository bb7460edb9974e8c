// Package feed relays recorded task events from the transactional outbox
// to an external event stream.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"trellis/internal/audit"
	"trellis/internal/audit/metrics"
	dErrors "trellis/pkg/domain-errors"
	"trellis/pkg/platform/tx"
)

// Entry is one outbox row. Seq orders entries across all tasks.
type Entry struct {
	Seq         int64
	Event       audit.Event
	PublishedAt *time.Time
}

// Message is the wire form of an Entry on the stream.
type Message struct {
	Seq         int64     `json:"seq"`
	EventID     string    `json:"event_id"`
	TaskID      string    `json:"task_id"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func ToMessage(e Entry) Message {
	return Message{
		Seq:         e.Seq,
		EventID:     e.Event.ID.String(),
		TaskID:      e.Event.TaskID.String(),
		Description: e.Event.Description,
		OccurredAt:  e.Event.OccurredAt,
	}
}

// Outbox is the relay's view of the outbox store. Pending must return
// unpublished entries in Seq order.
type Outbox interface {
	Pending(ctx context.Context, limit int) ([]Entry, error)
	MarkPublished(ctx context.Context, seqs []int64, at time.Time) error
}

// Publisher delivers a batch in order. A nil error means every entry was
// acknowledged.
type Publisher interface {
	Publish(ctx context.Context, entries []Entry) error
}

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Relay moves outbox entries to the publisher. Each batch is claimed,
// published and marked inside one transaction, so a failed publish leaves
// the batch pending for the next tick. Delivery is at least once.
type Relay struct {
	outbox    Outbox
	publisher Publisher
	runner    tx.Runner
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func NewRelay(outbox Outbox, publisher Publisher, runner tx.Runner, opts ...Option) *Relay {
	r := &Relay{
		outbox:    outbox,
		publisher: publisher,
		runner:    runner,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RelayOnce publishes at most one batch and returns how many entries went out.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.runner.RunInTx(ctx, func(ctx context.Context) error {
		entries, err := r.outbox.Pending(ctx, r.batchSize)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pending events")
		}
		if len(entries) == 0 {
			return nil
		}
		if err := r.publisher.Publish(ctx, entries); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish events")
		}
		seqs := make([]int64, len(entries))
		for i, e := range entries {
			seqs[i] = e.Seq
		}
		if err := r.outbox.MarkPublished(ctx, seqs, r.now().UTC()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mark events published")
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		r.metrics.IncFeedFailures()
		return 0, err
	}
	r.metrics.AddFeedPublished(published)
	return published, nil
}

// Run drains the outbox every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Relay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.RelayOnce(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				r.logger.ErrorContext(ctx, "event feed relay failed", "error", err)
			}
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

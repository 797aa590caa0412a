package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/telehealth-scheduling/internal/metrics"
)

// OutboxStore is the subset of the outbox the deliverer reads and settles.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]NotificationRequest, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}

// Handler hands a single notification request to its transport.
type Handler interface {
	Deliver(ctx context.Context, n NotificationRequest) error
}

type Deliverer struct {
	store     OutboxStore
	handler   Handler
	logger    zerolog.Logger
	metrics   *metrics.OutboxMetrics
	interval  time.Duration
	batchSize int
}

func NewDeliverer(store OutboxStore, handler Handler, logger zerolog.Logger) *Deliverer {
	return &Deliverer{
		store:     store,
		handler:   handler,
		logger:    logger,
		interval:  5 * time.Second,
		batchSize: 100,
	}
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Deliverer) WithBatchSize(n int) *Deliverer {
	if n > 0 {
		d.batchSize = n
	}
	return d
}

func (d *Deliverer) WithMetrics(m *metrics.OutboxMetrics) *Deliverer {
	d.metrics = m
	return d
}

// Run drains the outbox until ctx is cancelled. One pass runs immediately so
// a fresh worker does not sit idle behind the first tick.
func (d *Deliverer) Run(ctx context.Context) {
	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Deliverer) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	delivered, err := d.DeliverPending(runCtx)
	if err != nil {
		d.logger.Error().Err(err).Msg("outbox pass failed")
		return
	}
	if delivered > 0 {
		d.logger.Info().
			Int("delivered", delivered).
			Dur("elapsed", time.Since(start)).
			Msg("outbox pass complete")
	}
}

// DeliverPending publishes one batch of undelivered requests. A failed
// delivery leaves its row pending for the next pass; later rows still go
// out.
func (d *Deliverer) DeliverPending(ctx context.Context) (int, error) {
	pending, err := d.store.ListPending(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, n := range pending {
		if err := d.handler.Deliver(ctx, n); err != nil {
			d.metrics.Failed()
			d.logger.Error().
				Err(err).
				Str("event_type", n.EventType).
				Stringer("notification_id", n.ID).
				Msg("notification delivery failed")
			continue
		}

		if err := d.store.MarkDelivered(ctx, n.ID); err != nil {
			return delivered, err
		}
		delivered++
	}

	d.metrics.Delivered(delivered)
	return delivered, nil
}

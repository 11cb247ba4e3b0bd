// Package outbox records domain events in the same transaction as the state
// change that caused them, and relays them to the broker afterwards.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Event names.
const (
	EventOrderSplit        = "order.split"
	EventCheckoutSubmitted = "checkout.submitted"
	EventPaymentRequested  = "payment.requested"
	EventPaymentSucceeded  = "payment.succeeded"
	EventPaymentFailed     = "payment.failed"
)

// Writer is satisfied by *database.Queries bound to the caller's transaction.
type Writer interface {
	InsertOutboxEvent(ctx context.Context, arg database.InsertOutboxEventParams) error
}

// Insert appends an event. It must run on the transaction that performs the
// state change so the two commit or roll back together.
func Insert(ctx context.Context, w Writer, event, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return w.InsertOutboxEvent(ctx, database.InsertOutboxEventParams{
		EventID: uuid.NewString(),
		Topic:   event,
		Key:     key,
		Payload: data,
	})
}

// Store is the relay's view of the outbox table.
type Store interface {
	FetchPendingOutbox(ctx context.Context, limit int32) ([]database.Outbox, error)
	MarkOutboxSent(ctx context.Context, id int64) error
}

// NewStore creates a Store from a DBTX (pool or tx).
type NewStore func(db database.DBTX) Store

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Publisher delivers one record to the broker.
type Publisher interface {
	Publish(ctx context.Context, rec database.Outbox) error
}

// Relay drains unsent events in id order. Delivery is at-least-once: a record
// is marked sent only after the publisher accepted it.
type Relay struct {
	pool      TxBeginner
	newStore  NewStore
	publisher Publisher
	interval  time.Duration
	batchSize int32
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewRelay(pool TxBeginner, newStore NewStore, publisher Publisher, interval time.Duration, logger *zap.Logger, m *metrics.Metrics) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Relay{
		pool:      pool,
		newStore:  newStore,
		publisher: publisher,
		interval:  interval,
		batchSize: 100,
		logger:    logger,
		metrics:   m,
	}
}

// Run flushes on every tick until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

// Flush publishes one batch and returns how many records were sent. It stops
// at the first publish failure so events of one key keep their order.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := r.newStore(tx)
	records, err := store.FetchPendingOutbox(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending: %w", err)
	}

	sent := 0
	var publishErr error
	for _, rec := range records {
		if err := r.publisher.Publish(ctx, rec); err != nil {
			r.metrics.OutboxRelayed(false)
			publishErr = fmt.Errorf("publish %s (%s): %w", rec.EventID, rec.Topic, err)
			break
		}
		if err := store.MarkOutboxSent(ctx, rec.ID); err != nil {
			return 0, fmt.Errorf("mark sent %d: %w", rec.ID, err)
		}
		r.metrics.OutboxRelayed(true)
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	if sent > 0 {
		r.logger.Debug("outbox relayed", zap.Int("count", sent))
	}
	return sent, publishErr
}

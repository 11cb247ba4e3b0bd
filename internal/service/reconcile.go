package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/carehub-id/api/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// PaymentCallback is the gateway's verdict on a transaction.
type PaymentCallback struct {
	TransactionReference string `json:"transaction_reference" validate:"required"`
	Outcome              string `json:"outcome" validate:"required,oneof=success failure cancel"`
}

// ReconcilePaymentCallback applies a payment outcome exactly once. The first
// call stores its result on the transaction; later calls for the same
// reference return that stored result with Replayed set and change nothing.
func (s *CheckoutService) ReconcilePaymentCallback(ctx context.Context, cb PaymentCallback) (domain.ReconcileResult, error) {
	if err := validateStruct(cb); err != nil {
		return domain.ReconcileResult{}, err
	}

	var guestID string
	result, err := inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (domain.ReconcileResult, error) {
		txn, err := store.GetCheckoutTransactionForUpdate(ctx, cb.TransactionReference)
		if errors.Is(err, pgx.ErrNoRows) {
			s.env.Logger.Warn("payment callback for unknown transaction",
				zap.String("transaction_reference", cb.TransactionReference),
				zap.String("outcome", cb.Outcome),
			)
			return domain.ReconcileResult{}, fmt.Errorf("transaction %s: %w", cb.TransactionReference, domain.ErrNotFound)
		}
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("lock transaction: %w", err)
		}
		guestID = txn.GuestID

		if txn.Status != enum.TransactionStatusPending {
			var stored domain.ReconcileResult
			if err := json.Unmarshal(txn.Result, &stored); err != nil {
				return domain.ReconcileResult{}, fmt.Errorf("decode stored result: %w", err)
			}
			stored.Replayed = true
			return stored, nil
		}

		refs, err := store.ListPaymentReferencesByTransaction(ctx, txn.Reference)
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("list payment references: %w", err)
		}

		res := domain.ReconcileResult{
			TransactionReference: txn.Reference,
			Outcome:              cb.Outcome,
			Changes:              []domain.StatusChange{},
			ReconciledAt:         time.Now().UTC(),
		}
		event := outbox.EventPaymentFailed

		if cb.Outcome == enum.PaymentOutcomeSuccess {
			res.Status = enum.TransactionStatusSucceeded
			event = outbox.EventPaymentSucceeded
			if res.Changes, err = settle(ctx, store, txn.Reference, refs); err != nil {
				return domain.ReconcileResult{}, err
			}
		} else {
			res.Status = enum.TransactionStatusFailed
			if cb.Outcome == enum.PaymentOutcomeCancel {
				res.Status = enum.TransactionStatusCancelled
			}
			if _, err := store.FailPaymentReferences(ctx, txn.Reference); err != nil {
				return domain.ReconcileResult{}, fmt.Errorf("fail payment references: %w", err)
			}
		}

		data, err := json.Marshal(res)
		if err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("encode result: %w", err)
		}
		if _, err := store.CompleteCheckoutTransaction(ctx, database.CompleteCheckoutTransactionParams{
			Reference: txn.Reference,
			Status:    res.Status,
			Result:    data,
		}); err != nil {
			return domain.ReconcileResult{}, fmt.Errorf("complete transaction: %w", err)
		}
		if err := outbox.Insert(ctx, store, event, txn.Reference, res); err != nil {
			return domain.ReconcileResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	s.env.Metrics.Reconciled(cb.Outcome, result.Replayed)
	if result.Replayed {
		s.env.Logger.Info("payment callback replayed",
			zap.String("transaction_reference", result.TransactionReference),
			zap.String("status", result.Status),
		)
		return result, nil
	}

	event := outbox.EventPaymentFailed
	if result.Status == enum.TransactionStatusSucceeded {
		event = outbox.EventPaymentSucceeded
	}
	s.env.Notifier.Notify(guestID, event, result)
	s.env.Logger.Info("payment reconciled",
		zap.String("transaction_reference", result.TransactionReference),
		zap.String("status", result.Status),
		zap.Int("status_changes", len(result.Changes)),
	)
	return result, nil
}

// settle marks the transaction's references and items paid and moves each
// covered order to its settled status. Orders are locked in id order.
func settle(ctx context.Context, store CheckoutStore, txnRef string, refs []database.PaymentReference) ([]domain.StatusChange, error) {
	changes := []domain.StatusChange{}
	if len(refs) == 0 {
		return changes, nil
	}

	var orderIDs, itemIDs []uuid.UUID
	for _, r := range refs {
		orderIDs = append(orderIDs, r.OrderID)
		itemIDs = append(itemIDs, r.ItemIds...)
	}
	rows, err := store.LockOrders(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("lock orders: %w", err)
	}

	if _, err := store.MarkPaymentReferencesPaid(ctx, txnRef); err != nil {
		return nil, fmt.Errorf("mark payment references paid: %w", err)
	}
	if _, err := store.MarkOrderItemsPaid(ctx, itemIDs); err != nil {
		return nil, fmt.Errorf("mark items paid: %w", err)
	}

	orders, err := loadOrders(ctx, store, rows)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		next := domain.SettledStatus(o)
		if next == o.Status || !domain.CanTransition(o.Status, next) {
			continue
		}
		if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: o.ID, Status: next}); err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
		changes = append(changes, domain.StatusChange{OrderID: o.ID, From: o.Status, To: next})
	}
	return changes, nil
}

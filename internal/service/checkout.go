package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/carehub-id/api/internal/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SubmitCheckoutRequest is the input for submitting an order. DocumentRef
// points at an already uploaded prescription file.
type SubmitCheckoutRequest struct {
	GuestID     string
	OrderID     uuid.UUID
	Customer    domain.CustomerInfo
	DocumentRef string
}

// SplitResult describes a completed partial checkout.
type SplitResult struct {
	NewOrderID    uuid.UUID   `json:"new_order_id"`
	SourceOrderID uuid.UUID   `json:"source_order_id"`
	SourceDeleted bool        `json:"source_deleted"`
	MovedItemIDs  []uuid.UUID `json:"moved_item_ids"`
	MovedTotal    int64       `json:"moved_total"`
}

// CheckoutSession is what a checkout session id resolves to after the
// payment redirect.
type CheckoutSession struct {
	TransactionReference string
	Status               string
	Orders               []domain.Order
}

type checkoutEvent struct {
	TransactionReference string      `json:"transaction_reference,omitempty"`
	GuestID              string      `json:"guest_id"`
	OrderID              uuid.UUID   `json:"order_id"`
	Status               string      `json:"status"`
	PayableTotal         int64       `json:"payable_total"`
	PayableItemIDs       []uuid.UUID `json:"payable_item_ids,omitempty"`
	PendingItemIDs       []uuid.UUID `json:"pending_item_ids,omitempty"`
}

type paymentRequestedEvent struct {
	TransactionReference string                    `json:"transaction_reference"`
	GuestID              string                    `json:"guest_id"`
	PayableTotal         int64                     `json:"payable_total"`
	PayerContact         string                    `json:"payer_contact"`
	References           []domain.PaymentReference `json:"references"`
}

// CheckoutService turns orders into payable transactions: eligibility,
// partial checkout, submission and resumption of unfinished payments.
type CheckoutService struct {
	pool     TxBeginner
	newStore NewCheckoutStore
	docs     DocumentStore
	signer   SessionSigner
	env      Env
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(pool TxBeginner, newStore NewCheckoutStore, docs DocumentStore, signer SessionSigner, env Env) *CheckoutService {
	return &CheckoutService{
		pool:     pool,
		newStore: newStore,
		docs:     docs,
		signer:   signer,
		env:      env.withDefaults(),
	}
}

// Eligibility refreshes prescription statuses and evaluates the order.
// Verification decisions fetched from the document store are persisted on
// the prescription rows, so this read may write.
func (s *CheckoutService) Eligibility(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, domain.Eligibility, error) {
	order, err := s.refreshDocuments(ctx, guestID, orderID)
	if err != nil {
		return domain.Order{}, domain.Eligibility{}, err
	}
	return order, domain.ComputeEligibility(order), nil
}

// PartialCheckout moves the currently payable items into a new order so
// they can be paid for while the rest wait on their prescriptions. The
// source order keeps the remainder and is deleted if nothing remains.
func (s *CheckoutService) PartialCheckout(ctx context.Context, guestID string, orderID uuid.UUID) (SplitResult, error) {
	peek, err := s.peekOrder(ctx, guestID, orderID)
	if err != nil {
		return SplitResult{}, err
	}
	if !domain.IsMutable(peek.Status) {
		return SplitResult{}, fmt.Errorf("cannot split a %s order: %w", peek.Status, domain.ErrUnsupportedOperation)
	}
	statuses, err := s.documentStatuses(ctx, peek)
	if err != nil {
		return SplitResult{}, err
	}

	result, err := inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (SplitResult, error) {
		order, err := lockOrder(ctx, store, guestID, orderID)
		if err != nil {
			return SplitResult{}, err
		}
		if err := requireNoPendingPayment(ctx, store, order.ID); err != nil {
			return SplitResult{}, err
		}
		order, err = applyDocumentStatuses(ctx, store, order, statuses)
		if err != nil {
			return SplitResult{}, err
		}

		plan, err := domain.PlanSplit(order)
		if err != nil {
			return SplitResult{}, err
		}

		// The source leaves the cart status before the new order is created
		// so the one-cart-per-guest index never sees two carts.
		if plan.SourceStatus != order.Status {
			if !domain.CanTransition(order.Status, plan.SourceStatus) {
				return SplitResult{}, fmt.Errorf("%s -> %s: %w", order.Status, plan.SourceStatus, domain.ErrUnsupportedOperation)
			}
			if _, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: order.ID, Status: plan.SourceStatus}); err != nil {
				return SplitResult{}, fmt.Errorf("update source status: %w", err)
			}
		}

		created, err := store.CreateOrder(ctx, database.CreateOrderParams{
			GuestID:       order.GuestID,
			UserID:        textFromPtr(order.UserID),
			Status:        plan.TargetStatus,
			ParentOrderID: pgUUID(order.ID),
		})
		if err != nil {
			return SplitResult{}, fmt.Errorf("create split order: %w", err)
		}

		moved, err := store.MoveOrderItems(ctx, database.MoveOrderItemsParams{
			ToOrderID:   created.ID,
			Ids:         plan.Moved,
			FromOrderID: order.ID,
		})
		if err != nil {
			return SplitResult{}, fmt.Errorf("move items: %w", err)
		}
		if int(moved) != len(plan.Moved) {
			return SplitResult{}, fmt.Errorf("moved %d of %d items: %w", moved, len(plan.Moved), domain.ErrConflictRetry)
		}

		if plan.SourceEmptied() {
			if err := store.DeleteOrder(ctx, order.ID); err != nil {
				return SplitResult{}, fmt.Errorf("delete emptied order: %w", err)
			}
		}

		res := SplitResult{
			NewOrderID:    created.ID,
			SourceOrderID: order.ID,
			SourceDeleted: plan.SourceEmptied(),
			MovedItemIDs:  plan.Moved,
			MovedTotal:    plan.MovedTotal,
		}
		if err := outbox.Insert(ctx, store, outbox.EventOrderSplit, order.ID.String(), res); err != nil {
			return SplitResult{}, err
		}
		return res, nil
	})
	if err != nil {
		return SplitResult{}, err
	}

	s.env.Metrics.PartialCheckout()
	s.env.Notifier.Notify(guestID, outbox.EventOrderSplit, result)
	s.env.Logger.Info("order split",
		zap.String("source_order_id", result.SourceOrderID.String()),
		zap.String("new_order_id", result.NewOrderID.String()),
		zap.Int("moved_items", len(result.MovedItemIDs)),
		zap.Int64("moved_total", result.MovedTotal),
		zap.Bool("source_deleted", result.SourceDeleted),
	)
	return result, nil
}

// SubmitCheckout records the customer's details, attaches any uploaded
// prescription and opens a payment transaction for the payable items.
// When nothing is payable yet the order waits in pending_prescription and
// the result carries no transaction reference.
func (s *CheckoutService) SubmitCheckout(ctx context.Context, req SubmitCheckoutRequest) (domain.CheckoutResult, error) {
	if err := validateStruct(req.Customer); err != nil {
		return domain.CheckoutResult{}, err
	}

	order, err := s.refreshDocuments(ctx, req.GuestID, req.OrderID)
	if err != nil {
		return domain.CheckoutResult{}, err
	}
	if err := checkSubmittable(order, req.Customer); err != nil {
		s.env.Metrics.CheckoutSubmitted("rejected")
		return domain.CheckoutResult{}, err
	}

	attachments, err := s.attachDocuments(ctx, order, req)
	if err != nil {
		s.env.Metrics.CheckoutSubmitted("rejected")
		return domain.CheckoutResult{}, err
	}

	result, err := inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (domain.CheckoutResult, error) {
		order, err := lockOrder(ctx, store, req.GuestID, req.OrderID)
		if err != nil {
			return domain.CheckoutResult{}, err
		}
		if !domain.IsSubmittable(order.Status) {
			return domain.CheckoutResult{}, fmt.Errorf("order is %s: %w", order.Status, domain.ErrUnsupportedOperation)
		}
		if err := requireNoPendingPayment(ctx, store, order.ID); err != nil {
			return domain.CheckoutResult{}, err
		}

		for itemID, att := range attachments {
			if _, ok := order.FindItem(itemID); !ok {
				return domain.CheckoutResult{}, fmt.Errorf("item %s moved: %w", itemID, domain.ErrConflictRetry)
			}
			if _, err := store.CreatePrescription(ctx, database.CreatePrescriptionParams{
				OrderItemID: itemID,
				Status:      att.Status,
				FileRef:     req.DocumentRef,
				ExternalID:  text(att.PrescriptionID),
			}); err != nil {
				return domain.CheckoutResult{}, fmt.Errorf("record prescription: %w", err)
			}
		}
		if len(attachments) > 0 {
			if order, err = reloadOrder(ctx, store, req.GuestID, order.ID); err != nil {
				return domain.CheckoutResult{}, err
			}
		}

		elig := domain.ComputeEligibility(order)
		payable, pending := elig.PayableIDs(), elig.PendingIDs()
		next := domain.StatusAfterSubmit(len(payable), len(pending))
		if !domain.CanTransition(order.Status, next) {
			return domain.CheckoutResult{}, fmt.Errorf("%s -> %s: %w", order.Status, next, domain.ErrUnsupportedOperation)
		}

		c := req.Customer
		if _, err := store.UpdateOrderCheckout(ctx, database.UpdateOrderCheckoutParams{
			ID:             order.ID,
			Status:         next,
			DeliveryMethod: text(c.DeliveryMethod),
			Address:        text(c.Address),
			CustomerName:   text(c.Name),
			CustomerEmail:  text(c.Email),
			CustomerPhone:  text(c.Phone),
		}); err != nil {
			return domain.CheckoutResult{}, fmt.Errorf("update order checkout: %w", err)
		}

		res := domain.CheckoutResult{PayerContact: c.Contact(), OrderStatus: next}
		if len(payable) > 0 {
			txn, err := s.openTransaction(ctx, store, req.GuestID, c.Contact(), []paymentShare{{
				OrderID: order.ID,
				ItemIDs: payable,
				Amount:  elig.PayableTotal,
			}})
			if err != nil {
				return domain.CheckoutResult{}, err
			}
			txn.OrderStatus = next
			res = txn
		}

		if err := outbox.Insert(ctx, store, outbox.EventCheckoutSubmitted, order.ID.String(), checkoutEvent{
			TransactionReference: res.TransactionReference,
			GuestID:              req.GuestID,
			OrderID:              order.ID,
			Status:               next,
			PayableTotal:         res.PayableTotal,
			PayableItemIDs:       payable,
			PendingItemIDs:       pending,
		}); err != nil {
			return domain.CheckoutResult{}, err
		}
		return res, nil
	})
	if err != nil {
		s.env.Metrics.CheckoutSubmitted("error")
		return domain.CheckoutResult{}, err
	}

	outcome := "awaiting_prescription"
	if result.TransactionReference != "" {
		outcome = "payment_requested"
	}
	s.env.Metrics.CheckoutSubmitted(outcome)
	s.env.Notifier.Notify(req.GuestID, outbox.EventCheckoutSubmitted, map[string]any{
		"order_id":              req.OrderID,
		"status":                result.OrderStatus,
		"transaction_reference": result.TransactionReference,
	})
	s.env.Logger.Info("checkout submitted",
		zap.String("order_id", req.OrderID.String()),
		zap.String("status", result.OrderStatus),
		zap.String("transaction_reference", result.TransactionReference),
		zap.Int64("payable_total", result.PayableTotal),
	)
	return result, nil
}

// checkSubmittable enforces the fulfillment rules that must hold before any
// payment is requested.
func checkSubmittable(order domain.Order, c domain.CustomerInfo) error {
	if !domain.IsSubmittable(order.Status) {
		return fmt.Errorf("order is %s: %w", order.Status, domain.ErrUnsupportedOperation)
	}
	if order.ItemCount() == 0 {
		return fmt.Errorf("order has no items: %w", domain.ErrNoEligibleItems)
	}

	verr := &domain.ValidationError{}
	compatible := false
	for _, it := range order.Items() {
		if it.IsPaid() {
			continue
		}
		if domain.ValidFulfillment(it.ServiceType, c.DeliveryMethod) {
			compatible = true
		}
		if it.FulfillmentMethod == nil {
			verr.Add("items."+it.ID.String()+".fulfillment_method", "is required")
			continue
		}
		if domain.IsOnSite(*it.FulfillmentMethod) && it.Provider.Address == nil {
			verr.Add("items."+it.ID.String()+".fulfillment_method", "provider has no address for on-site fulfillment")
		}
	}
	if !compatible {
		verr.Add("delivery_method", "does not apply to any item in the order")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// attachDocuments hands the uploaded file to the document store for every
// item that still lacks a usable prescription.
func (s *CheckoutService) attachDocuments(ctx context.Context, order domain.Order, req SubmitCheckoutRequest) (map[uuid.UUID]domain.Attachment, error) {
	needs := domain.ComputeEligibility(order).NeedsDocument()
	if len(needs) == 0 {
		return nil, nil
	}
	if req.DocumentRef == "" {
		return nil, fmt.Errorf("%d item(s) need a prescription: %w", len(needs), domain.ErrDocumentRequired)
	}

	out := make(map[uuid.UUID]domain.Attachment, len(needs))
	for _, id := range needs {
		it, _ := order.FindItem(id)
		att, err := s.docs.Attach(ctx, domain.AttachRequest{
			GuestID:   req.GuestID,
			ItemID:    id,
			ServiceID: it.ServiceID,
			FileRef:   req.DocumentRef,
			Contact:   req.Customer.Contact(),
		})
		if err != nil {
			return nil, fmt.Errorf("attach prescription: %w", err)
		}
		if att.Status == "" {
			att.Status = enum.PrescriptionStatusPending
		}
		out[id] = att
	}
	return out, nil
}

// ResumeCheckout opens a fresh transaction for an order whose payment never
// completed. The items are those of the order's latest payment reference,
// not a recomputed eligibility, so a verification that lapsed in between
// does not change what the guest was quoted. Orders split from the same
// cart that are also waiting on payment are carried in the same transaction.
func (s *CheckoutService) ResumeCheckout(ctx context.Context, guestID string, orderID uuid.UUID, contact string) (domain.CheckoutResult, error) {
	result, err := inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (domain.CheckoutResult, error) {
		rows, err := store.ListRelatedOrdersForUpdate(ctx, database.ListRelatedOrdersForUpdateParams{ID: orderID, GuestID: guestID})
		if err != nil {
			return domain.CheckoutResult{}, fmt.Errorf("lock related orders: %w", err)
		}
		orders, err := loadOrders(ctx, store, rows)
		if err != nil {
			return domain.CheckoutResult{}, err
		}

		var target *domain.Order
		for i := range orders {
			if orders[i].ID == orderID {
				target = &orders[i]
			}
		}
		if target == nil {
			return domain.CheckoutResult{}, fmt.Errorf("order: %w", domain.ErrNotFound)
		}

		var shares []paymentShare
		var previousTxn string
		for _, o := range orders {
			share, txnRef, err := resumableShare(ctx, store, o)
			if err != nil {
				return domain.CheckoutResult{}, err
			}
			if share == nil {
				if o.ID == orderID {
					return domain.CheckoutResult{}, fmt.Errorf("order has no unpaid checkout: %w", domain.ErrUnsupportedOperation)
				}
				continue
			}
			if o.ID == orderID {
				previousTxn = txnRef
			}
			shares = append(shares, *share)
		}

		if contact == "" {
			prev, err := store.GetCheckoutTransaction(ctx, previousTxn)
			if err != nil {
				return domain.CheckoutResult{}, notFound(err, "checkout transaction")
			}
			contact = prev.PayerContact
		}

		ids := make([]uuid.UUID, len(shares))
		for i, sh := range shares {
			ids[i] = sh.OrderID
		}
		if _, err := store.SupersedePaymentReferences(ctx, ids); err != nil {
			return domain.CheckoutResult{}, fmt.Errorf("supersede payment references: %w", err)
		}

		res, err := s.openTransaction(ctx, store, guestID, contact, shares)
		if err != nil {
			return domain.CheckoutResult{}, err
		}
		res.OrderStatus = target.Status
		return res, nil
	})
	if err != nil {
		return domain.CheckoutResult{}, err
	}

	s.env.Notifier.Notify(guestID, outbox.EventPaymentRequested, map[string]any{
		"order_id":              orderID,
		"transaction_reference": result.TransactionReference,
	})
	s.env.Logger.Info("checkout resumed",
		zap.String("order_id", orderID.String()),
		zap.String("transaction_reference", result.TransactionReference),
		zap.Int("references", len(result.PaymentReferences)),
	)
	return result, nil
}

// resumableShare returns what is still owed on the order's latest payment
// reference, or nil when there is nothing to resume.
func resumableShare(ctx context.Context, store CheckoutStore, o domain.Order) (*paymentShare, string, error) {
	if domain.IsTerminal(o.Status) {
		return nil, "", nil
	}
	ref, err := store.GetLatestPaymentReference(ctx, o.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("latest payment reference: %w", err)
	}
	if ref.Status == enum.PaymentReferenceStatusPaid {
		return nil, "", nil
	}

	share := paymentShare{OrderID: o.ID}
	for _, id := range ref.ItemIds {
		it, ok := o.FindItem(id)
		if !ok || it.IsPaid() {
			continue
		}
		share.ItemIDs = append(share.ItemIDs, id)
		share.Amount += it.Total()
	}
	if len(share.ItemIDs) == 0 {
		return nil, "", nil
	}
	return &share, ref.TransactionReference, nil
}

// GetCheckoutSession resolves a signed checkout session id.
func (s *CheckoutService) GetCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error) {
	sess, err := s.signer.Verify(sessionID)
	if err != nil {
		s.env.Logger.Info("rejected checkout session", zap.Error(err))
		return CheckoutSession{}, fmt.Errorf("checkout session: %w", domain.ErrNotFound)
	}

	return inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (CheckoutSession, error) {
		txn, err := store.GetCheckoutTransaction(ctx, sess.TransactionReference)
		if err != nil {
			return CheckoutSession{}, notFound(err, "checkout transaction")
		}
		if txn.GuestID != sess.GuestID {
			return CheckoutSession{}, fmt.Errorf("checkout transaction: %w", domain.ErrNotFound)
		}

		rows, err := store.ListOrdersByIDs(ctx, sess.OrderIDs)
		if err != nil {
			return CheckoutSession{}, fmt.Errorf("list orders: %w", err)
		}
		owned := rows[:0]
		for _, r := range rows {
			if r.GuestID == sess.GuestID {
				owned = append(owned, r)
			}
		}
		orders, err := loadOrders(ctx, store, owned)
		if err != nil {
			return CheckoutSession{}, err
		}
		return CheckoutSession{
			TransactionReference: txn.Reference,
			Status:               txn.Status,
			Orders:               orders,
		}, nil
	})
}

// paymentShare is one order's part of a transaction.
type paymentShare struct {
	OrderID uuid.UUID
	ItemIDs []uuid.UUID
	Amount  int64
}

// openTransaction creates a checkout transaction with one payment reference
// per share and signs its session id.
func (s *CheckoutService) openTransaction(ctx context.Context, store CheckoutStore, guestID, contact string, shares []paymentShare) (domain.CheckoutResult, error) {
	txnRef := "txn_" + uuid.NewString()
	orderIDs := make([]uuid.UUID, len(shares))
	var total int64
	for i, sh := range shares {
		orderIDs[i] = sh.OrderID
		total += sh.Amount
	}

	sessionID, err := s.signer.Sign(txnRef, guestID, orderIDs)
	if err != nil {
		return domain.CheckoutResult{}, fmt.Errorf("sign checkout session: %w", err)
	}

	if _, err := store.CreateCheckoutTransaction(ctx, database.CreateCheckoutTransactionParams{
		Reference:    txnRef,
		GuestID:      guestID,
		SessionID:    sessionID,
		PayableTotal: total,
		PayerContact: contact,
	}); err != nil {
		return domain.CheckoutResult{}, fmt.Errorf("create checkout transaction: %w", err)
	}

	res := domain.CheckoutResult{
		TransactionReference: txnRef,
		CheckoutSessionID:    sessionID,
		PayableTotal:         total,
		PayerContact:         contact,
	}
	for _, sh := range shares {
		ref, err := store.CreatePaymentReference(ctx, database.CreatePaymentReferenceParams{
			Reference:            "pay_" + uuid.NewString(),
			TransactionReference: txnRef,
			OrderID:              sh.OrderID,
			Amount:               sh.Amount,
			ItemIds:              sh.ItemIDs,
		})
		if err != nil {
			return domain.CheckoutResult{}, fmt.Errorf("create payment reference: %w", err)
		}
		res.PaymentReferences = append(res.PaymentReferences, toPaymentReference(ref))
	}

	if err := outbox.Insert(ctx, store, outbox.EventPaymentRequested, txnRef, paymentRequestedEvent{
		TransactionReference: txnRef,
		GuestID:              guestID,
		PayableTotal:         total,
		PayerContact:         contact,
		References:           res.PaymentReferences,
	}); err != nil {
		return domain.CheckoutResult{}, err
	}
	return res, nil
}

func toPaymentReference(r database.PaymentReference) domain.PaymentReference {
	return domain.PaymentReference{
		Reference: r.Reference,
		OrderID:   r.OrderID,
		Amount:    r.Amount,
		ItemIDs:   r.ItemIds,
		Status:    r.Status,
	}
}

// --- document refresh ---

func (s *CheckoutService) peekOrder(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error) {
	return inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (domain.Order, error) {
		return reloadOrder(ctx, store, guestID, orderID)
	})
}

// documentStatuses asks the document store about every service in the order
// that needs a prescription. It runs outside any transaction.
func (s *CheckoutService) documentStatuses(ctx context.Context, order domain.Order) (map[string]domain.DocumentStatus, error) {
	ids := order.PrescriptionServiceIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	statuses, err := s.docs.Statuses(ctx, order.GuestID, ids)
	if err != nil {
		return nil, fmt.Errorf("document statuses: %w", err)
	}
	return statuses, nil
}

// refreshDocuments applies the document store's current decisions to the
// order and returns the refreshed aggregate.
func (s *CheckoutService) refreshDocuments(ctx context.Context, guestID string, orderID uuid.UUID) (domain.Order, error) {
	peek, err := s.peekOrder(ctx, guestID, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	statuses, err := s.documentStatuses(ctx, peek)
	if err != nil {
		return domain.Order{}, err
	}
	if len(statuses) == 0 {
		return peek, nil
	}
	return inTx(ctx, s.env, s.pool, s.newStore, func(store CheckoutStore) (domain.Order, error) {
		order, err := lockOrder(ctx, store, guestID, orderID)
		if err != nil {
			return domain.Order{}, err
		}
		return applyDocumentStatuses(ctx, store, order, statuses)
	})
}

// applyDocumentStatuses settles documents still under review. Documents
// already verified or rejected keep their decision.
func applyDocumentStatuses(ctx context.Context, store CheckoutStore, order domain.Order, statuses map[string]domain.DocumentStatus) (domain.Order, error) {
	changed := false
	for _, serviceID := range order.PrescriptionServiceIDs() {
		st, ok := statuses[serviceID]
		if !ok {
			continue
		}
		if st.Status != enum.PrescriptionStatusVerified && st.Status != enum.PrescriptionStatusRejected {
			continue
		}
		n, err := store.RefreshPrescriptionStatus(ctx, database.RefreshPrescriptionStatusParams{
			OrderID:      order.ID,
			ServiceID:    serviceID,
			Status:       st.Status,
			RejectReason: textFromPtr(st.RejectReason),
		})
		if err != nil {
			return domain.Order{}, fmt.Errorf("refresh prescription status: %w", err)
		}
		changed = changed || n > 0
	}
	if !changed {
		return order, nil
	}
	return reloadOrder(ctx, store, order.GuestID, order.ID)
}

// --- locking helpers ---

func lockOrder(ctx context.Context, store CheckoutStore, guestID string, orderID uuid.UUID) (domain.Order, error) {
	row, err := store.GetOrderForUpdate(ctx, database.GetOrderForUpdateParams{ID: orderID, GuestID: guestID})
	if err != nil {
		return domain.Order{}, notFound(err, "order")
	}
	return loadOrder(ctx, store, row)
}

func requireNoPendingPayment(ctx context.Context, store CheckoutStore, orderID uuid.UUID) error {
	n, err := store.CountPendingPaymentReferences(ctx, orderID)
	if err != nil {
		return fmt.Errorf("count pending payments: %w", err)
	}
	if n > 0 {
		return fmt.Errorf("payment in progress: %w", domain.ErrUnsupportedOperation)
	}
	return nil
}

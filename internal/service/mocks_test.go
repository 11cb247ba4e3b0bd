package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/carehub-id/api/internal/auth"
	"github.com/carehub-id/api/internal/database"
	"github.com/carehub-id/api/internal/domain"
	"github.com/carehub-id/api/internal/enum"
	"github.com/carehub-id/api/internal/metrics"
	"github.com/carehub-id/api/internal/retry"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/prometheus/client_golang/prometheus"
)

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type mockTx struct {
	commits   int
	rollbacks int
	commitErr error
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}
func (m *mockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	return nil
}
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

// mockTxBeginner implements TxBeginner.
type mockTxBeginner struct {
	tx  pgx.Tx
	err error
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return m.tx, m.err
}

// memStore is an in-memory OrderStore and CheckoutStore. It mirrors the SQL
// closely enough for the service rules: the one-cart index, the unique slot
// index and the cascades. It has no rollback; tests that fail mid-operation
// only assert on the returned error.
type memStore struct {
	mu sync.Mutex

	orders        map[uuid.UUID]*database.Order
	items         []*database.OrderItem
	prescriptions []*database.Prescription
	bookings      []database.SlotBooking
	txns          map[string]*database.CheckoutTransaction
	refs          []*database.PaymentReference
	outbox        []database.InsertOutboxEventParams
	lockTimeouts  []string

	position int64
	clock    time.Time

	// Hooks let a test inject failures.
	createOrderErr    error
	getOrderForUpdate func(arg database.GetOrderForUpdateParams) error
}

func newMemStore() *memStore {
	return &memStore{
		orders: make(map[uuid.UUID]*database.Order),
		txns:   make(map[string]*database.CheckoutTransaction),
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) SetLockTimeout(_ context.Context, timeout string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockTimeouts = append(s.lockTimeouts, timeout)
	return nil
}

func (s *memStore) cart(guestID string) (database.Order, error) {
	for _, o := range s.orders {
		if o.GuestID == guestID && o.Status == enum.OrderStatusCart {
			return *o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (s *memStore) GetCart(_ context.Context, guestID string) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart(guestID)
}

func (s *memStore) GetCartForUpdate(ctx context.Context, guestID string) (database.Order, error) {
	return s.GetCart(ctx, guestID)
}

func (s *memStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createOrderErr != nil {
		return database.Order{}, s.createOrderErr
	}
	if arg.Status == enum.OrderStatusCart {
		if _, err := s.cart(arg.GuestID); err == nil {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_one_cart_per_guest"}
		}
	}
	now := s.tick()
	o := &database.Order{
		ID:            uuid.New(),
		GuestID:       arg.GuestID,
		UserID:        arg.UserID,
		Status:        arg.Status,
		ParentOrderID: arg.ParentOrderID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.orders[o.ID] = o
	return *o, nil
}

func (s *memStore) GetOrder(_ context.Context, arg database.GetOrderParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[arg.ID]
	if !ok || o.GuestID != arg.GuestID {
		return database.Order{}, pgx.ErrNoRows
	}
	return *o, nil
}

func (s *memStore) GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error) {
	if s.getOrderForUpdate != nil {
		if err := s.getOrderForUpdate(arg); err != nil {
			return database.Order{}, err
		}
	}
	return s.GetOrder(ctx, database.GetOrderParams{ID: arg.ID, GuestID: arg.GuestID})
}

func sortByID(orders []database.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID.String() < orders[j].ID.String() })
}

func (s *memStore) LockOrders(_ context.Context, ids []uuid.UUID) ([]database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Order
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			out = append(out, *o)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *memStore) ListRelatedOrdersForUpdate(_ context.Context, arg database.ListRelatedOrdersForUpdateParams) ([]database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.orders[arg.ID]
	if !ok || target.GuestID != arg.GuestID {
		return nil, nil
	}
	var out []database.Order
	for _, o := range s.orders {
		if o.GuestID != arg.GuestID {
			continue
		}
		related := o.ID == target.ID ||
			(o.ParentOrderID.Valid && uuid.UUID(o.ParentOrderID.Bytes) == target.ID) ||
			(target.ParentOrderID.Valid && o.ID == uuid.UUID(target.ParentOrderID.Bytes)) ||
			(target.ParentOrderID.Valid && o.ParentOrderID.Valid && o.ParentOrderID.Bytes == target.ParentOrderID.Bytes)
		if related {
			out = append(out, *o)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *memStore) ListOrdersByGuest(_ context.Context, arg database.ListOrdersByGuestParams) ([]database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.Order
	for _, o := range s.orders {
		if o.GuestID == arg.GuestID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *memStore) ListOrdersByIDs(ctx context.Context, ids []uuid.UUID) ([]database.Order, error) {
	return s.LockOrders(ctx, ids)
}

func (s *memStore) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	if arg.Status == enum.OrderStatusCart && o.Status != enum.OrderStatusCart {
		if _, err := s.cart(o.GuestID); err == nil {
			return database.Order{}, &pgconn.PgError{Code: "23505", ConstraintName: "orders_one_cart_per_guest"}
		}
	}
	o.Status = arg.Status
	o.UpdatedAt = s.tick()
	return *o, nil
}

func (s *memStore) UpdateOrderCheckout(_ context.Context, arg database.UpdateOrderCheckoutParams) (database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	o.DeliveryMethod = arg.DeliveryMethod
	o.Address = arg.Address
	o.CustomerName = arg.CustomerName
	o.CustomerEmail = arg.CustomerEmail
	o.CustomerPhone = arg.CustomerPhone
	o.UpdatedAt = s.tick()
	return *o, nil
}

func (s *memStore) DeleteOrder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, id)
	for _, o := range s.orders {
		if o.ParentOrderID.Valid && uuid.UUID(o.ParentOrderID.Bytes) == id {
			o.ParentOrderID = pgtype.UUID{}
		}
	}
	kept := s.items[:0]
	for _, it := range s.items {
		if it.OrderID == id {
			s.cascadeItem(it.ID)
			continue
		}
		kept = append(kept, it)
	}
	s.items = kept
	refs := s.refs[:0]
	for _, r := range s.refs {
		if r.OrderID != id {
			refs = append(refs, r)
		}
	}
	s.refs = refs
	return nil
}

func (s *memStore) cascadeItem(itemID uuid.UUID) {
	ps := s.prescriptions[:0]
	for _, p := range s.prescriptions {
		if p.OrderItemID != itemID {
			ps = append(ps, p)
		}
	}
	s.prescriptions = ps
	bs := s.bookings[:0]
	for _, b := range s.bookings {
		if b.OrderItemID != itemID {
			bs = append(bs, b)
		}
	}
	s.bookings = bs
}

func (s *memStore) item(id uuid.UUID) *database.OrderItem {
	for _, it := range s.items {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (s *memStore) GetItemOrderID(_ context.Context, arg database.GetItemOrderIDParams) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.item(arg.ID)
	if it == nil {
		return uuid.Nil, pgx.ErrNoRows
	}
	if o, ok := s.orders[it.OrderID]; !ok || o.GuestID != arg.GuestID {
		return uuid.Nil, pgx.ErrNoRows
	}
	return it.OrderID, nil
}

func (s *memStore) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position++
	it := &database.OrderItem{
		ID:                   uuid.New(),
		OrderID:              arg.OrderID,
		Position:             s.position,
		ServiceID:            arg.ServiceID,
		ServiceName:          arg.ServiceName,
		ServiceType:          arg.ServiceType,
		ProviderID:           arg.ProviderID,
		ProviderName:         arg.ProviderName,
		ProviderAddress:      arg.ProviderAddress,
		Quantity:             arg.Quantity,
		UnitPrice:            arg.UnitPrice,
		PrescriptionRequired: arg.PrescriptionRequired,
		CreatedAt:            s.tick(),
	}
	s.items = append(s.items, it)
	return *it, nil
}

func (s *memStore) ListOrderItemsByOrders(_ context.Context, ids []uuid.UUID) ([]database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []database.OrderItem
	for _, it := range s.items {
		if want[it.OrderID] {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *memStore) DeleteOrderItem(_ context.Context, arg database.DeleteOrderItemParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items {
		if it.ID == arg.ID && it.OrderID == arg.OrderID {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.cascadeItem(arg.ID)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memStore) UpdateOrderItemQuantity(_ context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.item(arg.ID)
	if it == nil {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	it.Quantity = arg.Quantity
	return *it, nil
}

func (s *memStore) UpdateOrderItemFulfillment(_ context.Context, arg database.UpdateOrderItemFulfillmentParams) (database.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := s.item(arg.ID)
	if it == nil {
		return database.OrderItem{}, pgx.ErrNoRows
	}
	it.FulfillmentMethod = arg.FulfillmentMethod
	it.TimeSlotStart = arg.TimeSlotStart
	return *it, nil
}

func (s *memStore) MoveOrderItems(_ context.Context, arg database.MoveOrderItemsParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range arg.Ids {
		if it := s.item(id); it != nil && it.OrderID == arg.FromOrderID {
			it.OrderID = arg.ToOrderID
			n++
		}
	}
	return n, nil
}

func (s *memStore) MarkOrderItemsPaid(_ context.Context, ids []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	var n int64
	for _, id := range ids {
		if it := s.item(id); it != nil && !it.PaidAt.Valid {
			it.PaidAt = pgtype.Timestamptz{Time: now, Valid: true}
			n++
		}
	}
	return n, nil
}

func (s *memStore) CreateSlotBooking(_ context.Context, arg database.CreateSlotBookingParams) (database.SlotBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ProviderID == arg.ProviderID && b.ServiceID == arg.ServiceID && b.SlotStart.Equal(arg.SlotStart) {
			return database.SlotBooking{}, &pgconn.PgError{Code: "23505", ConstraintName: "slot_bookings_slot_key"}
		}
	}
	b := database.SlotBooking{
		ID:          uuid.New(),
		OrderItemID: arg.OrderItemID,
		ProviderID:  arg.ProviderID,
		ServiceID:   arg.ServiceID,
		SlotStart:   arg.SlotStart,
		CreatedAt:   s.tick(),
	}
	s.bookings = append(s.bookings, b)
	return b, nil
}

func (s *memStore) DeleteSlotBookingByItem(_ context.Context, itemID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bs := s.bookings[:0]
	for _, b := range s.bookings {
		if b.OrderItemID != itemID {
			bs = append(bs, b)
		}
	}
	s.bookings = bs
	return nil
}

func (s *memStore) ListBookedSlots(_ context.Context, arg database.ListBookedSlotsParams) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Time
	for _, b := range s.bookings {
		if b.ProviderID == arg.ProviderID && b.ServiceID == arg.ServiceID &&
			!b.SlotStart.Before(arg.From) && b.SlotStart.Before(arg.To) &&
			b.OrderItemID != arg.ExcludeItemID {
			out = append(out, b.SlotStart)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

func (s *memStore) CreatePrescription(_ context.Context, arg database.CreatePrescriptionParams) (database.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &database.Prescription{
		ID:          uuid.New(),
		OrderItemID: arg.OrderItemID,
		Status:      arg.Status,
		FileRef:     arg.FileRef,
		ExternalID:  arg.ExternalID,
		UploadedAt:  s.tick(),
	}
	s.prescriptions = append(s.prescriptions, p)
	return *p, nil
}

func (s *memStore) ListPrescriptionsByOrders(_ context.Context, ids []uuid.UUID) ([]database.Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []database.Prescription
	for _, p := range s.prescriptions {
		if it := s.item(p.OrderItemID); it != nil && want[it.OrderID] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memStore) RefreshPrescriptionStatus(_ context.Context, arg database.RefreshPrescriptionStatusParams) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.prescriptions {
		it := s.item(p.OrderItemID)
		if it == nil || it.OrderID != arg.OrderID || it.ServiceID != arg.ServiceID || p.Status != enum.PrescriptionStatusPending {
			continue
		}
		p.Status = arg.Status
		p.RejectReason = arg.RejectReason
		n++
	}
	return n, nil
}

func (s *memStore) CreateCheckoutTransaction(_ context.Context, arg database.CreateCheckoutTransactionParams) (database.CheckoutTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &database.CheckoutTransaction{
		Reference:    arg.Reference,
		GuestID:      arg.GuestID,
		SessionID:    arg.SessionID,
		PayableTotal: arg.PayableTotal,
		PayerContact: arg.PayerContact,
		Status:       enum.TransactionStatusPending,
		CreatedAt:    s.tick(),
	}
	s.txns[t.Reference] = t
	return *t, nil
}

func (s *memStore) GetCheckoutTransaction(_ context.Context, reference string) (database.CheckoutTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[reference]
	if !ok {
		return database.CheckoutTransaction{}, pgx.ErrNoRows
	}
	return *t, nil
}

func (s *memStore) GetCheckoutTransactionForUpdate(ctx context.Context, reference string) (database.CheckoutTransaction, error) {
	return s.GetCheckoutTransaction(ctx, reference)
}

func (s *memStore) CompleteCheckoutTransaction(_ context.Context, arg database.CompleteCheckoutTransactionParams) (database.CheckoutTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[arg.Reference]
	if !ok || t.Status != enum.TransactionStatusPending {
		return database.CheckoutTransaction{}, pgx.ErrNoRows
	}
	t.Status = arg.Status
	t.Result = arg.Result
	t.ReconciledAt = pgtype.Timestamptz{Time: s.tick(), Valid: true}
	return *t, nil
}

func (s *memStore) CreatePaymentReference(_ context.Context, arg database.CreatePaymentReferenceParams) (database.PaymentReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := &database.PaymentReference{
		Reference:            arg.Reference,
		TransactionReference: arg.TransactionReference,
		OrderID:              arg.OrderID,
		Amount:               arg.Amount,
		ItemIds:              arg.ItemIds,
		Status:               enum.PaymentReferenceStatusPending,
		CreatedAt:            s.tick(),
	}
	s.refs = append(s.refs, r)
	return *r, nil
}

func (s *memStore) ListPaymentReferencesByTransaction(_ context.Context, txnRef string) ([]database.PaymentReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []database.PaymentReference
	for _, r := range s.refs {
		if r.TransactionReference == txnRef {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID.String() < out[j].OrderID.String() })
	return out, nil
}

func (s *memStore) GetLatestPaymentReference(_ context.Context, orderID uuid.UUID) (database.PaymentReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *database.PaymentReference
	for _, r := range s.refs {
		if r.OrderID == orderID && (latest == nil || !r.CreatedAt.Before(latest.CreatedAt)) {
			latest = r
		}
	}
	if latest == nil {
		return database.PaymentReference{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (s *memStore) CountPendingPaymentReferences(_ context.Context, orderID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.refs {
		if r.OrderID == orderID && r.Status == enum.PaymentReferenceStatusPending {
			n++
		}
	}
	return n, nil
}

func (s *memStore) setRefStatus(match func(*database.PaymentReference) bool, status string) int64 {
	var n int64
	for _, r := range s.refs {
		if match(r) {
			r.Status = status
			n++
		}
	}
	return n
}

func (s *memStore) MarkPaymentReferencesPaid(_ context.Context, txnRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRefStatus(func(r *database.PaymentReference) bool {
		return r.TransactionReference == txnRef && r.Status != enum.PaymentReferenceStatusPaid
	}, enum.PaymentReferenceStatusPaid), nil
}

func (s *memStore) FailPaymentReferences(_ context.Context, txnRef string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setRefStatus(func(r *database.PaymentReference) bool {
		return r.TransactionReference == txnRef && r.Status == enum.PaymentReferenceStatusPending
	}, enum.PaymentReferenceStatusFailed), nil
}

func (s *memStore) SupersedePaymentReferences(_ context.Context, orderIDs []uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	return s.setRefStatus(func(r *database.PaymentReference) bool {
		return want[r.OrderID] && r.Status == enum.PaymentReferenceStatusPending
	}, enum.PaymentReferenceStatusFailed), nil
}

func (s *memStore) InsertOutboxEvent(_ context.Context, arg database.InsertOutboxEventParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, arg)
	return nil
}

func (s *memStore) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.outbox))
	for i, e := range s.outbox {
		out[i] = e.Topic
	}
	return out
}

// setPrescription forces the status of every document on the item, adding a
// pending one first if none exists.
func (s *memStore) setPrescription(itemID uuid.UUID, status string) {
	s.mu.Lock()
	found := false
	for _, p := range s.prescriptions {
		if p.OrderItemID == itemID {
			p.Status = status
			found = true
		}
	}
	s.mu.Unlock()
	if !found {
		_, _ = s.CreatePrescription(context.Background(), database.CreatePrescriptionParams{
			OrderItemID: itemID, Status: status, FileRef: "seed.pdf",
		})
	}
}

// --- Collaborator fakes ---

type fakeCatalog struct {
	offers map[string][]domain.Offer
	err    error
}

func (c *fakeCatalog) Lookup(_ context.Context, serviceID string) ([]domain.Offer, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.offers[serviceID], nil
}

type fakeDocs struct {
	mu       sync.Mutex
	statuses map[string]domain.DocumentStatus
	attached []domain.AttachRequest
	err      error
}

func (d *fakeDocs) Attach(_ context.Context, req domain.AttachRequest) (domain.Attachment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return domain.Attachment{}, d.err
	}
	d.attached = append(d.attached, req)
	return domain.Attachment{PrescriptionID: "doc-" + req.ServiceID, Status: enum.PrescriptionStatusPending}, nil
}

func (d *fakeDocs) Statuses(_ context.Context, _ string, serviceIDs []string) (map[string]domain.DocumentStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]domain.DocumentStatus)
	for _, id := range serviceIDs {
		if st, ok := d.statuses[id]; ok {
			out[id] = st
		}
	}
	return out, nil
}

type fakeSchedule struct {
	slots []domain.Slot
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeSchedule) Slots(_ context.Context, q domain.SlotQuery) ([]domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Slot
	for _, s := range f.slots {
		if s.Start.Year() == q.Date.Year() && s.Start.YearDay() == q.Date.YearDay() {
			out = append(out, s)
		}
	}
	return out, nil
}

type notification struct {
	guestID string
	event   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(guestID, eventType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{guestID: guestID, event: eventType})
}

// --- Test harness ---

const (
	guest     = "guest-1"
	pharmacyA = "pharmacy-a"
	pharmacyB = "pharmacy-b"
	labC      = "lab-c"
)

var (
	slotDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slot9   = slotDay.Add(9 * time.Hour)
	slot10  = slotDay.Add(10 * time.Hour)
)

func strPtr(s string) *string { return &s }

func testCatalog() *fakeCatalog {
	return &fakeCatalog{offers: map[string][]domain.Offer{
		"paracetamol": {
			{ServiceID: "paracetamol", ServiceName: "Paracetamol 500mg", ServiceType: enum.ServiceTypeMedication, ProviderID: pharmacyA, ProviderName: "Apotek A", ProviderAddress: strPtr("Jl. A 1"), Price: 1500},
			{ServiceID: "paracetamol", ServiceName: "Paracetamol 500mg", ServiceType: enum.ServiceTypeMedication, ProviderID: pharmacyB, ProviderName: "Apotek B", Price: 1700},
		},
		"amoxicillin": {
			{ServiceID: "amoxicillin", ServiceName: "Amoxicillin 500mg", ServiceType: enum.ServiceTypeMedication, PrescriptionRequired: true, ProviderID: pharmacyA, ProviderName: "Apotek A", ProviderAddress: strPtr("Jl. A 1"), Price: 4000},
		},
		"blood-panel": {
			{ServiceID: "blood-panel", ServiceName: "Blood panel", ServiceType: enum.ServiceTypeDiagnostic, ProviderID: labC, ProviderName: "Lab C", ProviderAddress: strPtr("Jl. C 3"), Price: 250000},
		},
	}}
}

type harness struct {
	store    *memStore
	tx       *mockTx
	catalog  *fakeCatalog
	docs     *fakeDocs
	schedule *fakeSchedule
	notifier *recordingNotifier
	metrics  *metrics.Metrics
	slots    *SlotResolver
	orders   *OrderService
	checkout *CheckoutService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newMemStore(),
		tx:       &mockTx{},
		catalog:  testCatalog(),
		docs:     &fakeDocs{statuses: map[string]domain.DocumentStatus{}},
		schedule: &fakeSchedule{slots: []domain.Slot{{Start: slot9, Availability: enum.SlotAvailable}, {Start: slot10, Availability: enum.SlotLimited}}},
		notifier: &recordingNotifier{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	env := Env{
		Metrics:     h.metrics,
		Notifier:    h.notifier,
		LockTimeout: 2 * time.Second,
		Retry:       retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
	pool := &mockTxBeginner{tx: h.tx}
	h.slots = NewSlotResolver(h.schedule, h.store, env)
	h.orders = NewOrderService(pool, func(database.DBTX) OrderStore { return h.store }, h.catalog, h.slots, env)
	h.checkout = NewCheckoutService(pool, func(database.DBTX) CheckoutStore { return h.store }, h.docs, auth.NewSessionSigner("test-secret"), env)
	return h
}

// add puts an item in the guest's cart and returns its id.
func (h *harness) add(t *testing.T, serviceID, providerID string, qty int32) uuid.UUID {
	t.Helper()
	before := map[uuid.UUID]bool{}
	if cart, err := h.orders.GetCart(context.Background(), guest); err == nil {
		for _, it := range cart.Items() {
			before[it.ID] = true
		}
	}
	order, err := h.orders.AddItem(context.Background(), AddItemRequest{
		GuestID: guest, ServiceID: serviceID, ProviderID: providerID, Quantity: qty,
	})
	if err != nil {
		t.Fatalf("AddItem(%s): %v", serviceID, err)
	}
	for _, it := range order.Items() {
		if !before[it.ID] {
			return it.ID
		}
	}
	t.Fatalf("AddItem(%s): no new item", serviceID)
	return uuid.Nil
}

// fulfil sets a fulfillment method without a slot.
func (h *harness) fulfil(t *testing.T, itemID uuid.UUID, method string) {
	t.Helper()
	if _, err := h.orders.SetFulfillmentDetail(context.Background(), guest, itemID, method, nil); err != nil {
		t.Fatalf("SetFulfillmentDetail: %v", err)
	}
}

func (h *harness) cart(t *testing.T) domain.Order {
	t.Helper()
	cart, err := h.orders.GetCart(context.Background(), guest)
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	return cart
}

func pickupCustomer() domain.CustomerInfo {
	return domain.CustomerInfo{
		Name:           "Siti",
		Email:          "siti@example.com",
		DeliveryMethod: enum.DeliveryMethodPickup,
	}
}

package orderstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tableside-pos/api/internal/enum"
	"github.com/tableside-pos/api/internal/logger"
	"github.com/tableside-pos/api/internal/metrics"
	"github.com/tableside-pos/api/internal/model"
	"github.com/tableside-pos/api/internal/realtime"
)

// Errors returned by the order store.
var (
	ErrNoBranch           = errors.New("no branch selected")
	ErrEmptyItems         = errors.New("items are required")
	ErrInvalidTableNumber = errors.New("table number must be a positive integer")
	ErrInvalidQuantity    = errors.New("quantity must be > 0")
	ErrInvalidPrice       = errors.New("item price must be >= 0")
	ErrTotalMismatch      = errors.New("total amount does not match items")
	ErrInvalidStatus      = errors.New("invalid status")
	ErrOrderNotFound      = errors.New("order not found")
	ErrSubscriptionClosed = errors.New("change subscription closed")
)

// HeadlessOrderError reports an order header that was saved while its items
// were not. The header is left in place; OrderID identifies it.
type HeadlessOrderError struct {
	OrderID uuid.UUID
	Err     error
}

func (e *HeadlessOrderError) Error() string {
	return fmt.Sprintf("order %s saved without items: %v", e.OrderID, e.Err)
}

func (e *HeadlessOrderError) Unwrap() error { return e.Err }

// Backend is the persistence surface the store needs.
// Satisfied by *postgres.Queries. Lookups that match no row return pgx.ErrNoRows.
type Backend interface {
	ListOrders(ctx context.Context, branchID uuid.UUID) ([]model.Order, error)
	GetOrder(ctx context.Context, branchID, orderID uuid.UUID) (model.Order, error)
	InsertOrder(ctx context.Context, header model.NewOrder) (model.Order, error)
	InsertOrderItems(ctx context.Context, items []model.NewOrderItem) error
	UpdateOrderStatus(ctx context.Context, branchID, orderID uuid.UUID, status enum.OrderStatus, updatedAt time.Time) error
}

// Options tunes a Store. The zero value is usable.
type Options struct {
	Policy  RefreshPolicy
	Logger  *logger.Logger
	Metrics *metrics.OrderMetrics
	// Now defaults to time.Now.
	Now func() time.Time
	// OnRefresh runs after every change to the in-memory list.
	OnRefresh func(branchID uuid.UUID, orders []model.Order)
}

// CreateOrderRequest is a cart translated into an order.
type CreateOrderRequest struct {
	TableNumber int32
	Items       []model.NewOrderItem
	TotalAmount decimal.Decimal
	Notes       string
}

// Store holds every order of one branch, newest first. A Store with no
// branch holds nothing and never calls the backend.
type Store struct {
	backend  Backend
	branchID uuid.UUID
	policy   RefreshPolicy
	log      *logger.Logger
	metrics  *metrics.OrderMetrics
	now      func() time.Time
	onChange func(uuid.UUID, []model.Order)

	mu        sync.RWMutex
	orders    []model.Order
	inflight  int
	lastStamp time.Time
}

// New creates a Store scoped to branchID. Pass uuid.Nil for a session
// without a branch.
func New(backend Backend, branchID uuid.UUID, opts Options) *Store {
	if opts.Policy == nil {
		opts.Policy = FullRefetch{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend:  backend,
		branchID: branchID,
		policy:   opts.Policy,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		now:      opts.Now,
		onChange: opts.OnRefresh,
	}
}

// BranchID returns the branch the store is scoped to.
func (s *Store) BranchID() uuid.UUID {
	return s.branchID
}

// Orders returns a snapshot of the current list.
func (s *Store) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, len(s.orders))
	for i, o := range s.orders {
		out[i] = o.Clone()
	}
	return out
}

// Order returns the order with the given id from the current list.
func (s *Store) Order(id uuid.UUID) (model.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return model.Order{}, false
}

// Loading reports whether a refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Refresh reloads every order of the branch. On failure the error is logged
// and returned, and the previous list is kept.
func (s *Store) Refresh(ctx context.Context) error {
	return s.refresh(ctx, "explicit")
}

func (s *Store) refresh(ctx context.Context, trigger string) error {
	if s.branchID == uuid.Nil {
		return nil
	}

	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	start := time.Now()
	orders, err := s.backend.ListOrders(ctx, s.branchID)
	s.metrics.ObserveRefresh(trigger, time.Since(start), err)

	if err != nil {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.log.Error(s.logContext(ctx), "error fetching orders", err)
		return fmt.Errorf("list orders: %w", err)
	}

	// Responses are applied in arrival order; a slower earlier refresh can
	// overwrite a newer one.
	orders = s.scoped(orders)
	s.mu.Lock()
	s.inflight--
	s.orders = orders
	s.mu.Unlock()

	s.notify()
	return nil
}

// CreateOrder validates the request, then inserts the header (always New)
// followed by the items. Validation failures never reach the backend. The
// returned order has no items; they show up in the refreshed list.
func (s *Store) CreateOrder(ctx context.Context, req CreateOrderRequest) (model.Order, error) {
	if s.branchID == uuid.Nil {
		return model.Order{}, ErrNoBranch
	}
	if len(req.Items) == 0 {
		return model.Order{}, ErrEmptyItems
	}
	if req.TableNumber <= 0 {
		return model.Order{}, ErrInvalidTableNumber
	}

	sum := decimal.Zero
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if item.ItemPrice.IsNegative() {
			return model.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidPrice)
		}
		sum = sum.Add(item.ItemPrice.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	if !sum.Equal(req.TotalAmount) {
		return model.Order{}, fmt.Errorf("%w: got %s, items sum to %s",
			ErrTotalMismatch, req.TotalAmount.StringFixed(2), sum.StringFixed(2))
	}

	ctx = s.logContext(ctx)

	header, err := s.backend.InsertOrder(ctx, model.NewOrder{
		BranchID:    s.branchID,
		TableNumber: req.TableNumber,
		Status:      enum.OrderStatusNew,
		TotalAmount: req.TotalAmount,
		Notes:       req.Notes,
	})
	if err != nil {
		s.metrics.IncCreated(err)
		s.log.Error(ctx, "error creating order", err)
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}

	items := make([]model.NewOrderItem, len(req.Items))
	for i, item := range req.Items {
		item.OrderID = header.ID
		items[i] = item
	}

	if err := s.backend.InsertOrderItems(ctx, items); err != nil {
		s.metrics.IncCreated(err)
		s.log.Error(s.log.WithField(ctx, "order_id", header.ID.String()), "order header saved without items", err)
		return model.Order{}, &HeadlessOrderError{OrderID: header.ID, Err: err}
	}
	s.metrics.IncCreated(nil)

	_ = s.refresh(ctx, "create")

	header.Items = nil
	return header, nil
}

// UpdateStatus writes status for the order and refreshes. Transitions are
// not checked here; callers decide which moves to offer. The list is not
// touched until the refresh comes back.
func (s *Store) UpdateStatus(ctx context.Context, orderID uuid.UUID, status enum.OrderStatus) error {
	if s.branchID == uuid.Nil {
		return ErrNoBranch
	}
	if !status.Valid() {
		return ErrInvalidStatus
	}

	ctx = s.log.WithField(s.logContext(ctx), "order_id", orderID.String())

	err := s.backend.UpdateOrderStatus(ctx, s.branchID, orderID, status, s.stamp(orderID))
	s.metrics.IncStatusWrite(string(status), err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		s.log.Error(ctx, "error updating order status", err)
		return fmt.Errorf("update order status: %w", err)
	}

	_ = s.refresh(ctx, "status")
	return nil
}

// Watch subscribes to the branch's change stream and applies the refresh
// policy to every notification until ctx is done or the stream ends.
func (s *Store) Watch(ctx context.Context, source realtime.Source) error {
	if s.branchID == uuid.Nil {
		return nil
	}

	sub, err := source.Subscribe(ctx, s.branchID)
	if err != nil {
		return fmt.Errorf("subscribe to order changes: %w", err)
	}
	defer sub.Close()
	return s.consume(ctx, sub)
}

func (s *Store) consume(ctx context.Context, sub realtime.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-sub.C():
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrSubscriptionClosed
			}
			s.HandleChange(ctx, change)
		}
	}
}

// HandleChange applies one notification. Changes for another branch are
// dropped.
func (s *Store) HandleChange(ctx context.Context, change realtime.Change) {
	if s.branchID == uuid.Nil || change.BranchID != s.branchID {
		return
	}
	s.metrics.IncNotification(change.Op)
	s.policy.Apply(ctx, s, change)
}

// stamp returns an updated_at strictly after both the previous stamp and the
// order's last known updated_at.
func (s *Store) stamp(orderID uuid.UUID) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.lastStamp) {
		t = s.lastStamp.Add(time.Microsecond)
	}
	for _, o := range s.orders {
		if o.ID == orderID && !t.After(o.UpdatedAt) {
			t = o.UpdatedAt.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
		}
	}
	s.lastStamp = t
	return t
}

// upsert replaces or inserts a single order, keeping newest-first order.
func (s *Store) upsert(order model.Order) {
	if order.BranchID != s.branchID {
		return
	}
	s.mu.Lock()
	replaced := false
	for i, o := range s.orders {
		if o.ID == order.ID {
			s.orders[i] = order
			replaced = true
			break
		}
	}
	if !replaced {
		s.orders = append(s.orders, order)
	}
	sortNewestFirst(s.orders)
	s.mu.Unlock()

	s.notify()
}

func (s *Store) remove(orderID uuid.UUID) {
	s.mu.Lock()
	for i, o := range s.orders {
		if o.ID == orderID {
			s.orders = append(s.orders[:i:i], s.orders[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.notify()
}

func (s *Store) notify() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.branchID, s.Orders())
}

// scoped drops rows of other branches and sorts newest first.
func (s *Store) scoped(orders []model.Order) []model.Order {
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		if o.BranchID == s.branchID {
			out = append(out, o)
		}
	}
	sortNewestFirst(out)
	return out
}

func (s *Store) logContext(ctx context.Context) context.Context {
	return s.log.WithBranchID(ctx, s.branchID.String())
}

func sortNewestFirst(orders []model.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

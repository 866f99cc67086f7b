package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

const DefaultOperationTimeout = 5 * time.Second

type Option func(*SaleService)

func WithLogger(logger *zap.Logger) Option {
	return func(s *SaleService) {
		s.logger = logger
	}
}

// WithOperationTimeout bounds every inventory and recorder call.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *SaleService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *SaleService) {
		s.now = now
	}
}

// SaleService runs the sale in progress at one register terminal. Stock is
// reserved when a line is added, released when it is removed and never
// touched again at checkout.
type SaleService struct {
	inventory port.InventoryStore
	recorder  port.SaleRecorder
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time

	mu     sync.Mutex
	cart   domain.Cart
	state  domain.SaleState
	closed bool

	// pending is reused by checkout retries until the cart changes, so a
	// sale whose commit was not acknowledged is not recorded twice.
	pending *domain.SaleHeader
}

func NewSaleService(inventory port.InventoryStore, recorder port.SaleRecorder, opts ...Option) *SaleService {
	s := &SaleService{
		inventory: inventory,
		recorder:  recorder,
		logger:    zap.NewNop(),
		timeout:   DefaultOperationTimeout,
		now:       time.Now,
		state:     domain.SaleStateOpen,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem reserves quantity units of the product and appends a line for them.
func (s *SaleService) AddItem(ctx context.Context, productID string, quantity int) (domain.CartSnapshot, error) {
	const op = "add item"

	if quantity <= 0 {
		return domain.CartSnapshot{}, cartError(op, domain.ErrInvalidQuantity, productID, quantity, -1, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.cart.Snapshot(s.state), cartError(op, ErrTerminalClosed, productID, quantity, -1, nil)
	}
	if s.state == domain.SaleStateCommitting {
		return s.cart.Snapshot(s.state), cartError(op, domain.ErrCheckoutInProgress, productID, quantity, -1, nil)
	}

	product, err := lookupProduct(ctx, s.inventory, s.timeout, productID)
	if err != nil {
		return s.cart.Snapshot(s.state), withOp(op, quantity, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	ok, err := s.inventory.DecrementStock(opCtx, productID, quantity)
	cancel()
	if err != nil {
		return s.cart.Snapshot(s.state), storeError(op, err, productID, quantity, -1)
	}
	if !ok {
		return s.cart.Snapshot(s.state), cartError(op, domain.ErrInsufficientStock, productID, quantity, -1, nil)
	}

	if s.state == domain.SaleStateCommitted {
		s.state = domain.SaleStateOpen
	}
	s.pending = nil
	s.cart.Append(domain.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.UnitPrice,
		Quantity:  quantity,
	})

	s.logger.Info("stock reserved",
		zap.String("product_id", productID),
		zap.Int("quantity", quantity),
		zap.String("cart_total", s.cart.Total().StringFixed(2)),
	)

	return s.cart.Snapshot(s.state), nil
}

// RemoveItem drops the line at index and releases its reservation. The line
// is removed before the release, so a failed release is reported but never
// resurrects the line and a repeated call cannot release twice.
func (s *SaleService) RemoveItem(ctx context.Context, index int) (domain.CartSnapshot, error) {
	const op = "remove item"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.cart.Snapshot(s.state), cartError(op, ErrTerminalClosed, "", 0, index, nil)
	}
	if s.state == domain.SaleStateCommitting {
		return s.cart.Snapshot(s.state), cartError(op, domain.ErrCheckoutInProgress, "", 0, index, nil)
	}

	line, ok := s.cart.Remove(index)
	if !ok {
		return s.cart.Snapshot(s.state), cartError(op, domain.ErrLineNotFound, "", 0, index, nil)
	}
	s.pending = nil

	if err := s.release(ctx, line); err != nil {
		return s.cart.Snapshot(s.state), storeError(op, err, line.ProductID, line.Quantity, index)
	}

	s.logger.Info("stock released",
		zap.String("product_id", line.ProductID),
		zap.Int("quantity", line.Quantity),
		zap.String("cart_total", s.cart.Total().StringFixed(2)),
	)

	return s.cart.Snapshot(s.state), nil
}

// Checkout persists the cart as a sale. On failure the cart is left exactly
// as it was and the sale returns to open.
func (s *SaleService) Checkout(ctx context.Context) (domain.Sale, error) {
	const op = "checkout"

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.Sale{}, cartError(op, ErrTerminalClosed, "", 0, -1, nil)
	}
	if s.state == domain.SaleStateCommitting {
		s.mu.Unlock()
		return domain.Sale{}, cartError(op, domain.ErrCheckoutInProgress, "", 0, -1, nil)
	}
	if s.cart.Len() == 0 {
		s.mu.Unlock()
		return domain.Sale{}, cartError(op, domain.ErrEmptyCart, "", 0, -1, nil)
	}
	if s.pending == nil {
		s.pending = &domain.SaleHeader{
			ID:        uuid.NewString(),
			CreatedAt: s.now().UTC(),
			Total:     s.cart.Total(),
		}
	}
	s.state = domain.SaleStateCommitting
	sale := domain.Sale{
		SaleHeader: *s.pending,
		Lines:      s.cart.Lines(),
	}
	s.mu.Unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	saleID, err := s.recorder.PersistSale(opCtx, sale.SaleHeader, sale.Lines)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = domain.SaleStateOpen
		s.logger.Warn("checkout failed, cart kept open",
			zap.String("sale_id", sale.ID),
			zap.Int("lines", len(sale.Lines)),
			zap.String("total", sale.Total.StringFixed(2)),
			zap.Error(err),
		)
		if s.closed {
			// the terminal was closed while committing; nobody can retry
			s.abandonLocked(ctx, op)
		}
		return domain.Sale{}, storeError(op, err, "", 0, -1)
	}

	if saleID != "" {
		sale.ID = saleID
	}
	s.pending = nil
	s.cart.Clear()
	s.state = domain.SaleStateCommitted

	s.logger.Info("sale committed",
		zap.String("sale_id", sale.ID),
		zap.Int("lines", len(sale.Lines)),
		zap.String("total", sale.Total.StringFixed(2)),
	)

	return sale, nil
}

// Abandon releases every reservation held by the cart and starts a new,
// empty sale. Lines whose release fails are still dropped; the failures are
// joined into the returned error.
func (s *SaleService) Abandon(ctx context.Context) (domain.CartSnapshot, error) {
	const op = "abandon"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return s.cart.Snapshot(s.state), cartError(op, ErrTerminalClosed, "", 0, -1, nil)
	}
	if s.state == domain.SaleStateCommitting {
		return s.cart.Snapshot(s.state), cartError(op, domain.ErrCheckoutInProgress, "", 0, -1, nil)
	}

	err := s.abandonLocked(ctx, op)
	return s.cart.Snapshot(s.state), err
}

// shutdown abandons the sale and makes every later operation fail with
// ErrTerminalClosed. A checkout in flight is left to finish; if it fails its
// lines are released then.
func (s *SaleService) shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.state == domain.SaleStateCommitting {
		return nil
	}
	return s.abandonLocked(ctx, "close")
}

func (s *SaleService) abandonLocked(ctx context.Context, op string) error {
	lines := s.cart.Lines()
	s.cart.Clear()
	s.pending = nil
	s.state = domain.SaleStateOpen

	var errs []error
	for i, line := range lines {
		if err := s.release(ctx, line); err != nil {
			errs = append(errs, storeError(op, err, line.ProductID, line.Quantity, i))
		}
	}

	if len(lines) > 0 {
		s.logger.Info("sale abandoned", zap.Int("lines", len(lines)), zap.Int("release_failures", len(errs)))
	}
	return errors.Join(errs...)
}

func (s *SaleService) CurrentCart() domain.CartSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot(s.state)
}

func (s *SaleService) State() domain.SaleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LookupProduct resolves a scanned identifier without reserving anything.
func (s *SaleService) LookupProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := lookupProduct(ctx, s.inventory, s.timeout, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *SaleService) release(ctx context.Context, line domain.LineItem) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.inventory.IncrementStock(opCtx, line.ProductID, line.Quantity); err != nil {
		s.logger.Error("CRITICAL failed to restore reserved stock",
			zap.String("product_id", line.ProductID),
			zap.Int("quantity", line.Quantity),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func lookupProduct(ctx context.Context, inventory port.InventoryStore, timeout time.Duration, productID string) (*domain.Product, error) {
	const op = "lookup product"

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	product, err := inventory.FindProduct(ctx, productID)
	if err != nil {
		return nil, storeError(op, err, productID, 0, -1)
	}
	if product == nil {
		return nil, cartError(op, domain.ErrProductNotFound, productID, 0, -1, nil)
	}
	return product, nil
}

func cartError(op string, kind error, productID string, quantity, index int, cause error) *domain.CartError {
	return &domain.CartError{
		Op:        op,
		Kind:      kind,
		ProductID: productID,
		Quantity:  quantity,
		Index:     index,
		Err:       cause,
	}
}

// storeError classifies a failure reported by the inventory store or the
// sale recorder.
func storeError(op string, err error, productID string, quantity, index int) *domain.CartError {
	kind := domain.ErrPersistence
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = domain.ErrTimeout
	case errors.Is(err, domain.ErrProductNotFound):
		kind = domain.ErrProductNotFound
	}
	if err == kind {
		err = nil
	}
	return cartError(op, kind, productID, quantity, index, err)
}

// withOp re-labels a lookup error as part of a larger operation.
func withOp(op string, quantity int, err error) error {
	var ce *domain.CartError
	if errors.As(err, &ce) {
		relabeled := *ce
		relabeled.Op = op
		relabeled.Quantity = quantity
		return &relabeled
	}
	return err
}

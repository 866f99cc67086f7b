package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/port"
)

var (
	ErrTerminalNotFound = errors.New("terminal not found")
	ErrTerminalClosed   = errors.New("terminal closed")
)

const defaultSalesLimit = 50

// Terminals keeps one SaleService per register terminal. Terminals share the
// inventory store, so contention between them is resolved by the store's
// conditional decrement.
type Terminals struct {
	inventory port.InventoryStore
	recorder  port.SaleRecorder
	logger    *zap.Logger
	opts      []Option
	timeout   time.Duration

	mu       sync.RWMutex
	sessions map[string]*SaleService
}

func NewTerminals(inventory port.InventoryStore, recorder port.SaleRecorder, logger *zap.Logger, opts ...Option) *Terminals {
	if logger == nil {
		logger = zap.NewNop()
	}
	// resolve the shared options once for registry-level calls
	defaults := NewSaleService(inventory, recorder, opts...)

	return &Terminals{
		inventory: inventory,
		recorder:  recorder,
		logger:    logger,
		opts:      opts,
		timeout:   defaults.timeout,
		sessions:  make(map[string]*SaleService),
	}
}

// Open returns the session for terminalID, creating it if needed. An empty
// terminalID gets a generated one.
func (t *Terminals) Open(terminalID string) (string, *SaleService) {
	if terminalID == "" {
		terminalID = uuid.NewString()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[terminalID]; ok {
		return terminalID, s
	}

	opts := append([]Option{}, t.opts...)
	opts = append(opts, WithLogger(t.logger.With(zap.String("terminal_id", terminalID))))
	s := NewSaleService(t.inventory, t.recorder, opts...)
	t.sessions[terminalID] = s

	t.logger.Info("terminal opened", zap.String("terminal_id", terminalID))
	return terminalID, s
}

func (t *Terminals) Get(terminalID string) (*SaleService, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[terminalID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTerminalNotFound, terminalID)
	}
	return s, nil
}

// Close abandons the terminal's open sale and forgets the terminal. Sessions
// fetched before the close refuse any further work.
func (t *Terminals) Close(ctx context.Context, terminalID string) error {
	t.mu.Lock()
	s, ok := t.sessions[terminalID]
	if ok {
		delete(t.sessions, terminalID)
	}
	t.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrTerminalNotFound, terminalID)
	}

	err := s.shutdown(ctx)
	t.logger.Info("terminal closed", zap.String("terminal_id", terminalID), zap.Error(err))
	return err
}

func (t *Terminals) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Shutdown closes every terminal, releasing all outstanding reservations.
func (t *Terminals) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range t.IDs() {
		if err := t.Close(ctx, id); err != nil && !errors.Is(err, ErrTerminalNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t *Terminals) LookupProduct(ctx context.Context, productID string) (domain.Product, error) {
	product, err := lookupProduct(ctx, t.inventory, t.timeout, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

// RecentSales returns up to limit sales, newest first.
func (t *Terminals) RecentSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = defaultSalesLimit
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	sales, err := t.recorder.ListSales(ctx, limit)
	if err != nil {
		return nil, storeError("list sales", err, "", 0, -1)
	}
	return sales, nil
}

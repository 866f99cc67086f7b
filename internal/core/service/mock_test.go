package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-register/internal/core/domain"
)

// Mock InventoryStore
type mockInventory struct {
	mu         sync.Mutex
	products   map[string]domain.Product
	findErr    error
	decErr     error
	incErr     error
	block      bool
	decrements int
	increments int
}

func newMockInventory(products ...domain.Product) *mockInventory {
	m := &mockInventory{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func product(id, price string, stock int) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      "Product " + id,
		UnitPrice: decimal.RequireFromString(price),
		Stock:     stock,
	}
}

func (m *mockInventory) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *mockInventory) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decErr != nil {
		return false, m.decErr
	}
	p, ok := m.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	m.products[productID] = p
	m.decrements++
	return true, nil
}

func (m *mockInventory) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.incErr != nil {
		return m.incErr
	}
	p, ok := m.products[productID]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Stock += quantity
	m.products[productID] = p
	m.increments++
	return nil
}

func (m *mockInventory) stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}

func (m *mockInventory) mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.decrements + m.increments
}

// Mock SaleRecorder
type mockRecorder struct {
	mu      sync.Mutex
	sales   []domain.Sale
	err     error
	entered chan struct{}
	release chan struct{}

	// lostAcks stores the sale but reports a timeout, this many times
	lostAcks int
	// ids holds the sale ID of every call, failed ones included
	ids []string
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{}
}

func (m *mockRecorder) PersistSale(ctx context.Context, header domain.SaleHeader, lines []domain.LineItem) (string, error) {
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.ids = append(m.ids, header.ID)
	if m.err != nil {
		return "", m.err
	}
	for _, s := range m.sales {
		if s.ID == header.ID {
			return header.ID, nil
		}
	}
	m.sales = append(m.sales, domain.Sale{SaleHeader: header, Lines: lines})
	if m.lostAcks > 0 {
		m.lostAcks--
		return "", context.DeadlineExceeded
	}
	return header.ID, nil
}

func (m *mockRecorder) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([]domain.Sale, 0, len(m.sales))
	for i := len(m.sales) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.sales[i])
	}
	return out, nil
}

func (m *mockRecorder) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sales {
		if s.ID == saleID {
			sale := s
			return &sale, nil
		}
	}
	return nil, nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sales)
}

func (m *mockRecorder) attemptedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ids...)
}

func (m *mockRecorder) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

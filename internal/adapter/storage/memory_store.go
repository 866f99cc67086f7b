package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/pos-register/internal/core/domain"
)

// MemoryStore is a process-local inventory and sale history guarded by one
// mutex. Useful for demos and tests; nothing survives a restart.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]domain.Product
	sales    []domain.Sale
}

func NewMemoryStore(products ...domain.Product) *MemoryStore {
	m := &MemoryStore{products: make(map[string]domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MemoryStore) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (m *MemoryStore) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok || p.Stock < quantity {
		return false, nil
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return true, nil
}

func (m *MemoryStore) IncrementStock(ctx context.Context, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	p.Stock += quantity
	p.UpdatedAt = time.Now().UTC()
	m.products[productID] = p
	return nil
}

func (m *MemoryStore) SaveProduct(ctx context.Context, p domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := m.products[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.products[p.ID] = p
	return nil
}

func (m *MemoryStore) PersistSale(ctx context.Context, header domain.SaleHeader, lines []domain.LineItem) (string, error) {
	sale := domain.Sale{SaleHeader: header, Lines: append([]domain.LineItem(nil), lines...)}
	if !sale.LinesTotal().Equal(header.Total) {
		return "", fmt.Errorf("%w: header %s, lines %s", ErrTotalMismatch, header.Total, sale.LinesTotal())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sales {
		if s.ID == header.ID {
			return header.ID, nil
		}
	}
	m.sales = append(m.sales, sale)
	return header.ID, nil
}

func (m *MemoryStore) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Sale, 0, max(0, min(limit, len(m.sales))))
	for i := len(m.sales) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.sales[i])
	}
	return out, nil
}

func (m *MemoryStore) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
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

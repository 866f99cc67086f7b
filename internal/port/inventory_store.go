package port

import (
	"context"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type InventoryStore interface {
	// FindProduct returns nil, nil when no product has the identifier
	FindProduct(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock atomically decreases stock only if stock >= quantity, returns false otherwise
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock restores stock, returns domain.ErrProductNotFound for unknown identifiers
	IncrementStock(ctx context.Context, productID string, quantity int) error
}

type ProductCatalog interface {
	// SaveProduct inserts the product or overwrites name, price and stock of an existing one
	SaveProduct(ctx context.Context, product domain.Product) error
}

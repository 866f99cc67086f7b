package port

import (
	"context"

	"github.com/rl1809/pos-register/internal/core/domain"
)

type SaleRecorder interface {
	// PersistSale writes the header and every line in one transaction and returns the sale ID
	PersistSale(ctx context.Context, header domain.SaleHeader, lines []domain.LineItem) (string, error)

	// ListSales returns the most recent sales first
	ListSales(ctx context.Context, limit int) ([]domain.Sale, error)

	// GetSale returns nil, nil when the sale does not exist
	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
}

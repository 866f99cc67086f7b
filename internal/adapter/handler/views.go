package handler

import (
	"time"

	"github.com/rl1809/pos-register/internal/core/domain"
)

// Views are shared by the HTTP API and the JSON-encoded gRPC service.
// Money is rendered with two decimals.

type LineView struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}

type CartView struct {
	TerminalID string     `json:"terminal_id"`
	State      string     `json:"state"`
	Lines      []LineView `json:"lines"`
	Total      string     `json:"total"`
}

type SaleView struct {
	SaleID    string     `json:"sale_id"`
	CreatedAt time.Time  `json:"created_at"`
	Lines     []LineView `json:"lines"`
	Total     string     `json:"total"`
}

type ProductView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Stock     int    `json:"stock"`
}

func lineViews(lines []domain.LineItem) []LineView {
	views := make([]LineView, len(lines))
	for i, l := range lines {
		views[i] = LineView{
			Index:     i,
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			Subtotal:  l.Subtotal().StringFixed(2),
		}
	}
	return views
}

func toCartView(terminalID string, snap domain.CartSnapshot) *CartView {
	return &CartView{
		TerminalID: terminalID,
		State:      string(snap.State),
		Lines:      lineViews(snap.Lines),
		Total:      snap.DisplayTotal(),
	}
}

func toSaleView(sale domain.Sale) *SaleView {
	return &SaleView{
		SaleID:    sale.ID,
		CreatedAt: sale.CreatedAt,
		Lines:     lineViews(sale.Lines),
		Total:     sale.Total.StringFixed(2),
	}
}

func toProductView(p domain.Product) *ProductView {
	return &ProductView{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice.StringFixed(2),
		Stock:     p.Stock,
	}
}

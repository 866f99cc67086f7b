package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type SaleState string

const (
	SaleStateOpen       SaleState = "open"
	SaleStateCommitting SaleState = "committing"
	SaleStateCommitted  SaleState = "committed"
)

type SaleHeader struct {
	ID        string
	CreatedAt time.Time
	Total     decimal.Decimal
}

// Sale is a finalized, immutable sale record. It doubles as the receipt
// returned by checkout.
type Sale struct {
	SaleHeader
	Lines []LineItem
}

// LinesTotal sums the subtotals of the sale's lines.
func (s Sale) LinesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

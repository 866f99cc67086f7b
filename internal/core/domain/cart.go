package domain

import "github.com/shopspring/decimal"

// LineItem is one product/quantity entry of a cart. Name and UnitPrice are
// snapshotted when the line is added.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds the line items of the sale in progress, in insertion order.
// The zero value is an empty cart.
type Cart struct {
	lines []LineItem
}

func (c *Cart) Append(line LineItem) {
	c.lines = append(c.lines, line)
}

// Remove deletes the line at index and returns it. ok is false when index is
// out of range.
func (c *Cart) Remove(index int) (line LineItem, ok bool) {
	if index < 0 || index >= len(c.lines) {
		return LineItem{}, false
	}
	line = c.lines[index]
	c.lines = append(c.lines[:index:index], c.lines[index+1:]...)
	return line, true
}

// Total is recomputed from the current lines on every call.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range c.lines {
		total = total.Add(line.Subtotal())
	}
	return total
}

// Reserved returns the quantity of productID held across all lines.
func (c *Cart) Reserved(productID string) int {
	n := 0
	for _, line := range c.lines {
		if line.ProductID == productID {
			n += line.Quantity
		}
	}
	return n
}

func (c *Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	copy(out, c.lines)
	return out
}

func (c *Cart) Len() int {
	return len(c.lines)
}

func (c *Cart) Clear() {
	c.lines = nil
}

func (c *Cart) Snapshot(state SaleState) CartSnapshot {
	return CartSnapshot{
		Lines: c.Lines(),
		Total: c.Total(),
		State: state,
	}
}

// CartSnapshot is a read-only view of a cart for display.
type CartSnapshot struct {
	Lines []LineItem
	Total decimal.Decimal
	State SaleState
}

// DisplayTotal renders the total with two decimal places.
func (s CartSnapshot) DisplayTotal() string {
	return s.Total.StringFixed(2)
}

package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrLineNotFound       = errors.New("line not found")
	ErrEmptyCart          = errors.New("empty cart")
	ErrPersistence        = errors.New("persistence failure")
	ErrTimeout            = errors.New("timeout")
	ErrCheckoutInProgress = errors.New("checkout in progress")
)

// CartError is returned by every register operation. Kind is one of the
// sentinel errors above; Err is the underlying cause, if any.
type CartError struct {
	Op        string
	Kind      error
	ProductID string
	Quantity  int
	Index     int
	Err       error
}

func (e *CartError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())

	var details []string
	if e.ProductID != "" {
		details = append(details, "product "+strconv.Quote(e.ProductID))
	}
	if e.Quantity != 0 {
		details = append(details, fmt.Sprintf("quantity %d", e.Quantity))
	}
	if e.Index >= 0 {
		details = append(details, fmt.Sprintf("line %d", e.Index))
	}
	if len(details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(details, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *CartError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ParseQuantity converts free-text quantity input into a positive integer.
func ParseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &CartError{Op: "parse quantity", Kind: ErrInvalidQuantity, Index: -1, Err: err}
	}
	if n <= 0 {
		return 0, &CartError{Op: "parse quantity", Kind: ErrInvalidQuantity, Quantity: n, Index: -1}
	}
	return n, nil
}

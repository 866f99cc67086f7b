package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/core/service"
)

type errorClass struct {
	kind   error
	name   string
	status int
	code   codes.Code
}

var errorClasses = []errorClass{
	{domain.ErrInvalidQuantity, "InvalidQuantity", http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrProductNotFound, "ProductNotFound", http.StatusNotFound, codes.NotFound},
	{domain.ErrInsufficientStock, "InsufficientStock", http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrLineNotFound, "LineNotFound", http.StatusNotFound, codes.NotFound},
	{domain.ErrEmptyCart, "EmptyCart", http.StatusUnprocessableEntity, codes.FailedPrecondition},
	{domain.ErrCheckoutInProgress, "CheckoutInProgress", http.StatusConflict, codes.Aborted},
	{domain.ErrTimeout, "Timeout", http.StatusGatewayTimeout, codes.DeadlineExceeded},
	{domain.ErrPersistence, "PersistenceFailure", http.StatusServiceUnavailable, codes.Unavailable},
	{service.ErrTerminalNotFound, "TerminalNotFound", http.StatusNotFound, codes.NotFound},
	{service.ErrTerminalClosed, "TerminalClosed", http.StatusGone, codes.FailedPrecondition},
}

func classify(err error) errorClass {
	for _, c := range errorClasses {
		if errors.Is(err, c.kind) {
			return c
		}
	}
	return errorClass{name: "Internal", status: http.StatusInternalServerError, code: codes.Internal}
}

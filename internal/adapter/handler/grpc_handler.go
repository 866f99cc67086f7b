package handler

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/pos-register/internal/core/service"
)

type GRPCHandler struct {
	terminals *service.Terminals
	logger    *zap.Logger
}

var _ RegisterServer = (*GRPCHandler)(nil)

func NewGRPCHandler(terminals *service.Terminals, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{terminals: terminals, logger: logger}
}

func (h *GRPCHandler) OpenTerminal(ctx context.Context, req *OpenTerminalRequest) (*CartView, error) {
	id, svc := h.terminals.Open(req.TerminalID)
	return toCartView(id, svc.CurrentCart()), nil
}

func (h *GRPCHandler) AddItem(ctx context.Context, req *AddItemRequest) (*CartView, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	svc, err := h.terminals.Get(req.TerminalID)
	if err != nil {
		return nil, h.toStatus(err)
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = int(*req.Quantity)
	}

	snap, err := svc.AddItem(ctx, req.ProductID, quantity)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toCartView(req.TerminalID, snap), nil
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *RemoveItemRequest) (*CartView, error) {
	svc, err := h.terminals.Get(req.TerminalID)
	if err != nil {
		return nil, h.toStatus(err)
	}

	snap, err := svc.RemoveItem(ctx, int(req.Index))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toCartView(req.TerminalID, snap), nil
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *TerminalRequest) (*SaleView, error) {
	svc, err := h.terminals.Get(req.TerminalID)
	if err != nil {
		return nil, h.toStatus(err)
	}

	sale, err := svc.Checkout(ctx)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toSaleView(sale), nil
}

func (h *GRPCHandler) CurrentCart(ctx context.Context, req *TerminalRequest) (*CartView, error) {
	svc, err := h.terminals.Get(req.TerminalID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toCartView(req.TerminalID, svc.CurrentCart()), nil
}

func (h *GRPCHandler) CloseTerminal(ctx context.Context, req *TerminalRequest) (*CartView, error) {
	svc, err := h.terminals.Get(req.TerminalID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	if err := h.terminals.Close(ctx, req.TerminalID); err != nil {
		return nil, h.toStatus(err)
	}
	return toCartView(req.TerminalID, svc.CurrentCart()), nil
}

func (h *GRPCHandler) LookupProduct(ctx context.Context, req *LookupProductRequest) (*ProductView, error) {
	p, err := h.terminals.LookupProduct(ctx, req.ProductID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toProductView(p), nil
}

func (h *GRPCHandler) RecentSales(ctx context.Context, req *RecentSalesRequest) (*RecentSalesResponse, error) {
	if req.Limit < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	sales, err := h.terminals.RecentSales(ctx, int(req.Limit))
	if err != nil {
		return nil, h.toStatus(err)
	}

	resp := &RecentSalesResponse{Sales: make([]*SaleView, len(sales))}
	for i, s := range sales {
		resp.Sales[i] = toSaleView(s)
	}
	return resp, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	class := classify(err)
	if class.code == codes.Internal || class.code == codes.Unavailable {
		h.logger.Error("rpc failed", zap.String("kind", class.name), zap.Error(err))
	}
	return status.Error(class.code, err.Error())
}

package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/rl1809/pos-register/internal/core/domain"
	"github.com/rl1809/pos-register/internal/core/service"
)

type HTTPHandler struct {
	terminals *service.Terminals
	logger    *zap.Logger
}

type OpenTerminalHTTPRequest struct {
	TerminalID string `json:"terminal_id"`
}

type AddItemHTTPRequest struct {
	ProductID string `json:"product_id"`
	// Quantity defaults to 1 when omitted.
	Quantity *json.Number `json:"quantity"`
}

type ErrorHTTPResponse struct {
	Success   bool   `json:"success"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Index     *int   `json:"index,omitempty"`
}

func NewHTTPHandler(terminals *service.Terminals, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{terminals: terminals, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("POST /api/terminals", h.OpenTerminal)
	mux.HandleFunc("DELETE /api/terminals/{terminal}", h.CloseTerminal)
	mux.HandleFunc("GET /api/terminals/{terminal}/cart", h.CurrentCart)
	mux.HandleFunc("POST /api/terminals/{terminal}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/terminals/{terminal}/items/{index}", h.RemoveItem)
	mux.HandleFunc("POST /api/terminals/{terminal}/checkout", h.Checkout)
	mux.HandleFunc("GET /api/products/{product}", h.LookupProduct)
	mux.HandleFunc("GET /api/sales", h.RecentSales)
}

func (h *HTTPHandler) OpenTerminal(w http.ResponseWriter, r *http.Request) {
	var req OpenTerminalHTTPRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	id, svc := h.terminals.Open(req.TerminalID)
	writeJSON(w, http.StatusCreated, toCartView(id, svc.CurrentCart()))
}

func (h *HTTPHandler) CloseTerminal(w http.ResponseWriter, r *http.Request) {
	if err := h.terminals.Close(r.Context(), r.PathValue("terminal")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) CurrentCart(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("terminal")
	svc, err := h.terminals.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(id, svc.CurrentCart()))
}

func (h *HTTPHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("terminal")
	svc, err := h.terminals.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req AddItemHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProductID == "" {
		writeMessage(w, http.StatusBadRequest, "missing required fields")
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity, err = domain.ParseQuantity(req.Quantity.String())
		if err != nil {
			h.writeError(w, err)
			return
		}
	}

	snap, err := svc.AddItem(r.Context(), req.ProductID, quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(id, snap))
}

func (h *HTTPHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("terminal")
	svc, err := h.terminals.Get(id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid line index")
		return
	}

	snap, err := svc.RemoveItem(r.Context(), index)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartView(id, snap))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	svc, err := h.terminals.Get(r.PathValue("terminal"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	sale, err := svc.Checkout(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleView(sale))
}

func (h *HTTPHandler) LookupProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.terminals.LookupProduct(r.Context(), r.PathValue("product"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductView(p))
}

func (h *HTTPHandler) RecentSales(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	sales, err := h.terminals.RecentSales(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}

	views := make([]*SaleView, len(sales))
	for i, s := range sales {
		views[i] = toSaleView(s)
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	class := classify(err)
	resp := ErrorHTTPResponse{
		Success: false,
		Kind:    class.name,
		Message: err.Error(),
	}

	var ce *domain.CartError
	if errors.As(err, &ce) {
		resp.ProductID = ce.ProductID
		resp.Quantity = ce.Quantity
		if ce.Index >= 0 {
			index := ce.Index
			resp.Index = &index
		}
	}

	if class.status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("kind", class.name), zap.Error(err))
	}
	writeJSON(w, class.status, resp)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorHTTPResponse{
		Success: false,
		Kind:    "BadRequest",
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

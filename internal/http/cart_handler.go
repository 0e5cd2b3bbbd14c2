package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/dataapi"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sessions resolves the per-shopper state kept by the storefront.
type Sessions interface {
	Cart(ctx context.Context, sessionID string) *service.CartStore
	OpenCheckout(ctx context.Context, sessionID string) (*service.CheckoutSession, error)
	Checkout(sessionID string) (*service.CheckoutSession, bool)
}

type ProductCatalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.CartCandidate, error)
}

type CartHandler struct {
	sessions    Sessions
	catalog     ProductCatalog
	timeout     time.Duration
	maxBodySize int64
	logger      *zap.Logger
}

func NewCartHandler(sessions Sessions, catalog ProductCatalog, timeout time.Duration, maxBodySize int64, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions:    sessions,
		catalog:     catalog,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartResponse struct {
	SessionID  string            `json:"session_id"`
	Lines      []domain.CartLine `json:"lines"`
	ItemCount  int               `json:"item_count"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	Open       bool              `json:"open"`
}

func cartResponse(cart *service.CartStore) CartResponse {
	return CartResponse{
		SessionID:  cart.SessionID(),
		Lines:      cart.Lines(),
		ItemCount:  cart.TotalItemCount(),
		TotalPrice: cart.TotalPrice(),
		Open:       cart.IsOpen(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	candidate, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		h.handleCatalogError(w, err)
		return
	}

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	cart.AddItem(ctx, *candidate)
	respondJSON(w, http.StatusCreated, cartResponse(cart))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	cart.SetQuantity(ctx, productID, *req.Quantity)
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	cart.RemoveItem(ctx, chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	cart.Clear(ctx)
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

type SetOpenRequestDTO struct {
	Open bool `json:"open"`
}

// SetOpen toggles the cart drawer flag.
func (h *CartHandler) SetOpen(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req SetOpenRequestDTO
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	cart := h.sessions.Cart(ctx, getSessionID(r.Context()))
	cart.SetOpen(req.Open)
	respondJSON(w, http.StatusOK, cartResponse(cart))
}

func (h *CartHandler) handleCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dataapi.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", "product not found")
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "catalogue temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "catalogue lookup timed out")
	default:
		h.logger.Error("product lookup failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "catalogue_error", "product lookup failed")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/service"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions    Sessions
	timeout     time.Duration
	maxBodySize int64
	logger      *zap.Logger
}

func NewCheckoutHandler(sessions Sessions, timeout time.Duration, maxBodySize int64, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:    sessions,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
}

// UpdateCheckoutRequestDTO carries the form fields to change; absent fields are kept.
type UpdateCheckoutRequestDTO struct {
	PaymentMethodID *string                 `json:"payment_method_id"`
	Installments    *int                    `json:"installments"`
	Customer        *domain.Customer        `json:"customer"`
	Address         *domain.DeliveryAddress `json:"address"`
	Card            *domain.CardInput       `json:"card"`
}

type CheckoutResponse struct {
	State                   domain.CheckoutState   `json:"state"`
	IdempotencyKey          string                 `json:"idempotency_key"`
	PaymentMethods          []domain.PaymentMethod `json:"payment_methods"`
	SelectedPaymentMethodID string                 `json:"selected_payment_method_id,omitempty"`
	Installments            int                    `json:"installments"`
	Customer                domain.Customer        `json:"customer"`
	Address                 domain.DeliveryAddress `json:"address"`
	Totals                  domain.OrderTotals     `json:"totals"`
	CanSubmit               bool                   `json:"can_submit"`
	LastError               string                 `json:"last_error,omitempty"`
	Order                   *OrderResponse         `json:"order,omitempty"`
}

type OrderResponse struct {
	OrderID          string             `json:"order_id"`
	IdempotencyKey   string             `json:"idempotency_key"`
	Status           domain.OrderStatus `json:"status"`
	GrandTotal       decimal.Decimal    `json:"grand_total"`
	PaymentKind      domain.PaymentKind `json:"payment_kind"`
	InstallmentCount int                `json:"installment_count"`
	CreatedAt        time.Time          `json:"created_at"`
}

func orderResponse(order *domain.Order) *OrderResponse {
	if order == nil {
		return nil
	}
	return &OrderResponse{
		OrderID:          order.ID,
		IdempotencyKey:   order.IdempotencyKey,
		Status:           order.Status,
		GrandTotal:       order.Totals.GrandTotal,
		PaymentKind:      order.PaymentKind,
		InstallmentCount: order.InstallmentCount,
		CreatedAt:        order.CreatedAt,
	}
}

func checkoutResponse(checkout *service.CheckoutSession) CheckoutResponse {
	snap := checkout.Snapshot()
	resp := CheckoutResponse{
		State:                   snap.State,
		IdempotencyKey:          snap.IdempotencyKey,
		PaymentMethods:          snap.PaymentMethods,
		SelectedPaymentMethodID: snap.SelectedMethodID,
		Installments:            snap.Installments,
		Customer:                snap.Customer,
		Address:                 snap.Address,
		Totals:                  snap.Totals,
		CanSubmit:               snap.CanSubmit,
		Order:                   orderResponse(snap.Order),
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	return resp
}

// Open starts (or resumes) the session's checkout.
func (h *CheckoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checkout, err := h.sessions.OpenCheckout(ctx, getSessionID(r.Context()))
	if err != nil {
		h.handleCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(checkout))
}

func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.sessions.Checkout(getSessionID(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "checkout_not_open", "no checkout open for this session")
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(checkout))
}

func (h *CheckoutHandler) Update(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.sessions.Checkout(getSessionID(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "checkout_not_open", "no checkout open for this session")
		return
	}

	var req UpdateCheckoutRequestDTO
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := checkout.Update(service.CheckoutUpdate{
		PaymentMethodID: req.PaymentMethodID,
		Installments:    req.Installments,
		Customer:        req.Customer,
		Address:         req.Address,
		Card:            req.Card,
	})
	if err != nil {
		h.handleCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, checkoutResponse(checkout))
}

func (h *CheckoutHandler) Totals(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.sessions.Checkout(getSessionID(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "checkout_not_open", "no checkout open for this session")
		return
	}
	respondJSON(w, http.StatusOK, checkout.Totals())
}

func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	checkout, ok := h.sessions.Checkout(getSessionID(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "checkout_not_open", "no checkout open for this session")
		return
	}

	order, err := checkout.Submit(r.Context())
	if err != nil {
		h.handleCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderResponse(order))
}

func (h *CheckoutHandler) handleCheckoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSubmissionInProgress):
		respondError(w, http.StatusConflict, "submission_in_progress", err.Error())
	case errors.Is(err, service.ErrCheckoutNotEditable):
		respondError(w, http.StatusConflict, "checkout_not_editable", err.Error())
	case errors.Is(err, service.ErrNotSubmittable):
		respondError(w, http.StatusUnprocessableEntity, "not_submittable", err.Error())
	case errors.Is(err, service.ErrUnknownPaymentMethod),
		errors.Is(err, service.ErrInstallmentsNotOffered),
		errors.Is(err, service.ErrNoPaymentMethod):
		respondError(w, http.StatusBadRequest, "invalid_selection", err.Error())
	case errors.Is(err, service.ErrSubmissionTimeout):
		respondErrorDetails(w, http.StatusGatewayTimeout, "submission_timeout", err.Error(), "retriable")
	case errors.Is(err, service.ErrSubmissionFailed):
		respondErrorDetails(w, http.StatusBadGateway, "submission_failed", err.Error(), "retriable")
	case errors.Is(err, service.ErrPaymentMethodsUnavailable):
		respondError(w, http.StatusServiceUnavailable, "payment_methods_unavailable", "payment methods unavailable")
	default:
		h.logger.Error("checkout request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_storefront/internal/address"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type AddressLookup interface {
	Lookup(ctx context.Context, cep string) (*domain.DeliveryAddress, error)
}

type AddressHandler struct {
	lookup  AddressLookup
	timeout time.Duration
	logger  *zap.Logger
}

func NewAddressHandler(lookup AddressLookup, timeout time.Duration, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{
		lookup:  lookup,
		timeout: timeout,
		logger:  logger,
	}
}

// Lookup answers GET /address/{cep} with the address fields known for the CEP.
func (h *AddressHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	addr, err := h.lookup.Lookup(ctx, chi.URLParam(r, "cep"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, addr)
	case errors.Is(err, address.ErrInvalidPostalCode):
		respondError(w, http.StatusBadRequest, "invalid_postal_code", "cep must have 8 digits")
	case errors.Is(err, address.ErrAddressNotFound):
		respondError(w, http.StatusNotFound, "address_not_found", "no address for this cep")
	case errors.Is(err, circuitbreaker.ErrOpenState), errors.Is(err, circuitbreaker.ErrTooManyRequests):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "address lookup temporarily unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "address lookup timed out")
	default:
		h.logger.Error("address lookup failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "address_lookup_error", "address lookup failed")
	}
}

package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

// PaymentMethodCache holds the active payment-method catalogue shared by all sessions.
type PaymentMethodCache interface {
	Get(ctx context.Context) ([]domain.PaymentMethod, error)
	Set(ctx context.Context, methods []domain.PaymentMethod) error
	Delete(ctx context.Context) error
}

var ErrCacheMiss = errors.New("cache miss")

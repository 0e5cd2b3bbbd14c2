package repository

import (
	"context"
	"errors"

	"github.com/fjod/go_storefront/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository is the durable key-value storage behind a cart: one entry per
// session holding the whole line collection. Save always overwrites in full.
type CartRepository interface {
	Load(ctx context.Context, sessionID string) ([]domain.CartLine, error)
	Save(ctx context.Context, sessionID string, lines []domain.CartLine) error
	Delete(ctx context.Context, sessionID string) error
}

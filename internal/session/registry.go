// Package session is the application context of the storefront: it owns the
// cart and checkout of every active shopper session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/fjod/go_storefront/internal/service"
	"go.uber.org/zap"
)

type shopper struct {
	cart     *service.CartStore
	checkout *service.CheckoutSession
	lastSeen time.Time
}

type Registry struct {
	mu       sync.Mutex
	shoppers map[string]*shopper
	repo     repository.CartRepository
	checkout *service.CheckoutService
	logger   *zap.Logger
	now      func() time.Time
}

func NewRegistry(repo repository.CartRepository, checkout *service.CheckoutService, logger *zap.Logger) *Registry {
	return &Registry{
		shoppers: make(map[string]*shopper),
		repo:     repo,
		checkout: checkout,
		logger:   logger,
		now:      time.Now,
	}
}

// Cart returns the session's cart, rehydrating it from storage on first use.
func (r *Registry) Cart(ctx context.Context, sessionID string) *service.CartStore {
	return r.get(ctx, sessionID).cart
}

func (r *Registry) get(ctx context.Context, sessionID string) *shopper {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shoppers[sessionID]
	if !ok {
		s = &shopper{cart: service.NewCartStore(ctx, sessionID, r.repo, r.logger)}
		r.shoppers[sessionID] = s
	}
	s.lastSeen = r.now()
	return s
}

// OpenCheckout returns the session's checkout. A checkout still being edited or
// submitted is kept along with its idempotency key; otherwise a new one is opened.
func (r *Registry) OpenCheckout(ctx context.Context, sessionID string) (*service.CheckoutSession, error) {
	s := r.get(ctx, sessionID)

	r.mu.Lock()
	current := s.checkout
	r.mu.Unlock()
	if current != nil && current.State() != domain.CheckoutStateSubmitted {
		return current, nil
	}

	opened, err := r.checkout.Open(ctx, s.cart)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s.checkout != current && s.checkout != nil {
		return s.checkout, nil
	}
	s.checkout = opened
	return opened, nil
}

// Checkout returns the session's open checkout, if any.
func (r *Registry) Checkout(sessionID string) (*service.CheckoutSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shoppers[sessionID]
	if !ok || s.checkout == nil {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.checkout, true
}

// Evict forgets the in-memory cart and checkout of sessionID after orderID was
// placed by some storefront instance, so the next request rehydrates from
// storage. Stored carts are never touched: the instance that placed the order
// already rewrote it. A session that placed orderID itself, or has a submission
// in flight, is kept. Reports whether anything was dropped.
func (r *Registry) Evict(sessionID, orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.shoppers[sessionID]
	if !ok {
		return false
	}
	if s.checkout != nil {
		switch s.checkout.State() {
		case domain.CheckoutStateSubmitting:
			return false
		case domain.CheckoutStateSubmitted:
			if s.checkout.PlacedOrderID() == orderID {
				return false
			}
		}
	}
	delete(r.shoppers, sessionID)
	return true
}

// Sweep forgets sessions idle for longer than idle. Stored carts are kept.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	removed := 0
	for id, s := range r.shoppers {
		if s.lastSeen.Before(cutoff) {
			if s.checkout != nil && s.checkout.State() == domain.CheckoutStateSubmitting {
				continue
			}
			delete(r.shoppers, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.Sweep(idle); n > 0 {
				r.logger.Debug("idle sessions swept", zap.Int("count", n))
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shoppers)
}

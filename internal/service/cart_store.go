package service

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"github.com/fjod/go_storefront/internal/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartStore is the authoritative cart of one shopper session. Every mutation
// updates memory first and then rewrites the whole collection to storage.
// Storage failures never reach the caller.
type CartStore struct {
	mu        sync.Mutex
	sessionID string
	lines     []domain.CartLine
	open      bool
	repo      repository.CartRepository
	logger    *zap.Logger
}

// NewCartStore rehydrates the session's cart from storage. An absent entry
// yields an empty cart; an unreadable one yields an empty cart and a warning.
func NewCartStore(ctx context.Context, sessionID string, repo repository.CartRepository, logger *zap.Logger) *CartStore {
	s := &CartStore{
		sessionID: sessionID,
		repo:      repo,
		logger:    logger.With(zap.String("session_id", sessionID)),
	}
	s.load(ctx)
	return s
}

func (s *CartStore) load(ctx context.Context) {
	lines, err := s.repo.Load(ctx, s.sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("cart storage unavailable, starting with an empty cart", zap.Error(err))
		return
	}
	s.lines = lines
}

func (s *CartStore) SessionID() string {
	return s.sessionID
}

// AddItem merges candidate into the cart. An existing line grows by one up to
// its captured stock; otherwise a new line with quantity 1 is appended.
// A candidate with no stock is not added. The cart is marked open.
func (s *CartStore) AddItem(ctx context.Context, candidate domain.CartCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.open = true
	if i := s.indexOf(candidate.ProductID); i >= 0 {
		line := &s.lines[i]
		line.Quantity = min(line.Quantity+1, line.AvailableStock)
	} else if candidate.AvailableStock > 0 {
		s.lines = append(s.lines, domain.CartLine{
			ProductID:      candidate.ProductID,
			Name:           candidate.Name,
			UnitPrice:      candidate.UnitPrice,
			Quantity:       1,
			ImageRef:       candidate.ImageRef,
			AvailableStock: candidate.AvailableStock,
		})
	} else {
		return
	}
	s.persist(ctx)
}

// RemoveItem drops the line for productID. Unknown ids are ignored.
func (s *CartStore) RemoveItem(ctx context.Context, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(productID)
	s.persist(ctx)
}

// SetQuantity sets the line's quantity, clamped to its captured stock.
// A quantity of zero or less removes the line.
func (s *CartStore) SetQuantity(ctx context.Context, productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		s.removeLocked(productID)
	} else if i := s.indexOf(productID); i >= 0 {
		s.lines[i].Quantity = min(quantity, s.lines[i].AvailableStock)
	}
	s.persist(ctx)
}

func (s *CartStore) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	s.persist(ctx)
}

// RemoveOrdered takes the quantities of ordered out of the cart. Lines that
// reach zero are dropped; lines or quantities added after the order stay.
func (s *CartStore) RemoveOrdered(ctx context.Context, ordered []domain.CartLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range ordered {
		i := s.indexOf(o.ProductID)
		if i < 0 {
			continue
		}
		if s.lines[i].Quantity <= o.Quantity {
			s.removeLocked(o.ProductID)
			continue
		}
		s.lines[i].Quantity -= o.Quantity
	}
	s.persist(ctx)
}

func (s *CartStore) TotalItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, l := range s.lines {
		count += l.Quantity
	}
	return count
}

func (s *CartStore) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return pricing.Subtotal(s.lines)
}

// Lines returns a copy of the cart lines in insertion order.
func (s *CartStore) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CartLine, len(s.lines))
	copy(out, s.lines)
	return out
}

func (s *CartStore) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}

func (s *CartStore) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *CartStore) SetOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = open
}

func (s *CartStore) indexOf(productID string) int {
	for i := range s.lines {
		if s.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *CartStore) removeLocked(productID string) {
	if i := s.indexOf(productID); i >= 0 {
		s.lines = append(s.lines[:i], s.lines[i+1:]...)
	}
}

// persist must be called with mu held so writes land in mutation order.
func (s *CartStore) persist(ctx context.Context) {
	if err := s.repo.Save(ctx, s.sessionID, s.lines); err != nil {
		s.logger.Warn("failed to persist cart", zap.Int("lines", len(s.lines)), zap.Error(err))
	}
}

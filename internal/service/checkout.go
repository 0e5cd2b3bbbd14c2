package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultSubmitTimeout bounds one create-order call.
const DefaultSubmitTimeout = 10 * time.Second

type PaymentMethodSource interface {
	ListActivePaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error)
}

// OrderGateway creates orders in the external data API. Creating twice with the
// same idempotency key must return the first order.
type OrderGateway interface {
	CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error)
}

type CheckoutService struct {
	source        PaymentMethodSource
	cache         cache.PaymentMethodCache
	orders        OrderGateway
	submitTimeout time.Duration
	logger        *zap.Logger
	sfg           singleflight.Group // Prevents cache stampede
}

func NewCheckoutService(
	source PaymentMethodSource,
	methodCache cache.PaymentMethodCache,
	orders OrderGateway,
	submitTimeout time.Duration,
	logger *zap.Logger,
) *CheckoutService {
	if submitTimeout <= 0 {
		submitTimeout = DefaultSubmitTimeout
	}
	return &CheckoutService{
		source:        source,
		cache:         methodCache,
		orders:        orders,
		submitTimeout: submitTimeout,
		logger:        logger,
	}
}

// PaymentMethods returns the active payment methods, from cache when possible.
func (s *CheckoutService) PaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	v, err, _ := s.sfg.Do("payment-methods", func() (interface{}, error) {
		methods, err := s.cache.Get(ctx)
		if err == nil {
			return methods, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("payment methods cache get failed", zap.Error(err))
		}

		methods, err = s.source.ListActivePaymentMethods(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPaymentMethodsUnavailable, err)
		}

		go func() {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if errSet := s.cache.Set(setCtx, methods); errSet != nil {
				s.logger.Warn("payment methods cache set failed", zap.Error(errSet))
			}
		}()

		return methods, nil
	})

	if err != nil {
		return nil, err
	}

	return v.([]domain.PaymentMethod), nil
}

// Open starts a checkout over cart in state Editing with a fresh idempotency key.
func (s *CheckoutService) Open(ctx context.Context, cart *CartStore) (*CheckoutSession, error) {
	methods, err := s.PaymentMethods(ctx)
	if err != nil {
		return nil, err
	}

	session := &CheckoutSession{
		cart:           cart,
		orders:         s.orders,
		timeout:        s.submitTimeout,
		methods:        methods,
		state:          domain.CheckoutStateEditing,
		idempotencyKey: uuid.NewString(),
		installments:   1,
	}
	session.logger = s.logger.With(
		zap.String("session_id", cart.SessionID()),
		zap.String("idempotency_key", session.idempotencyKey))
	session.logger.Debug("checkout opened", zap.Int("payment_methods", len(methods)))
	return session, nil
}

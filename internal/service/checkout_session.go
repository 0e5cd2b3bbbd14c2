package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/pricing"
	"go.uber.org/zap"
)

// CheckoutSession is the checkout form of one shopper. It moves
// Editing -> Submitting -> Submitted, or back to Editing when submission fails.
type CheckoutSession struct {
	mu             sync.Mutex
	cart           *CartStore
	orders         OrderGateway
	timeout        time.Duration
	logger         *zap.Logger
	methods        []domain.PaymentMethod
	state          domain.CheckoutState
	idempotencyKey string
	selected       *domain.PaymentMethod
	installments   int
	customer       domain.Customer
	address        domain.DeliveryAddress
	card           domain.CardInput
	order          *domain.Order
	lastErr        error
}

// CheckoutSnapshot is a consistent view of the session for rendering.
type CheckoutSnapshot struct {
	State            domain.CheckoutState
	IdempotencyKey   string
	PaymentMethods   []domain.PaymentMethod
	SelectedMethodID string
	Installments     int
	Customer         domain.Customer
	Address          domain.DeliveryAddress
	Totals           domain.OrderTotals
	CanSubmit        bool
	Order            *domain.Order
	LastError        error
}

func (c *CheckoutSession) Snapshot() CheckoutSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := CheckoutSnapshot{
		State:          c.state,
		IdempotencyKey: c.idempotencyKey,
		PaymentMethods: c.methods,
		Installments:   c.installments,
		Customer:       c.customer,
		Address:        c.address,
		Totals:         pricing.ForCart(c.cart.Lines(), c.selected),
		CanSubmit:      c.validateLocked() == nil,
		Order:          c.order,
		LastError:      c.lastErr,
	}
	if c.selected != nil {
		snap.SelectedMethodID = c.selected.ID
	}
	return snap
}

func (c *CheckoutSession) State() domain.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// PlacedOrderID is the id of the order this session submitted, or "".
func (c *CheckoutSession) PlacedOrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.order == nil {
		return ""
	}
	return c.order.ID
}

func (c *CheckoutSession) IdempotencyKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idempotencyKey
}

func (c *CheckoutSession) PaymentMethods() []domain.PaymentMethod {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PaymentMethod, len(c.methods))
	copy(out, c.methods)
	return out
}

// CheckoutUpdate names the form fields to change; nil fields are kept.
type CheckoutUpdate struct {
	PaymentMethodID *string
	Installments    *int
	Customer        *domain.Customer
	Address         *domain.DeliveryAddress
	Card            *domain.CardInput
}

// Update checks every field of u before applying any of them, so a rejected
// update leaves the session unchanged. Selecting a method resets the
// installment count to 1 unless u also carries one.
func (c *CheckoutSession) Update(u CheckoutUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.CheckoutStateEditing {
		return ErrCheckoutNotEditable
	}

	selected, installments := c.selected, c.installments
	if u.PaymentMethodID != nil {
		selected = nil
		for i := range c.methods {
			if c.methods[i].ID == *u.PaymentMethodID {
				selected = &c.methods[i]
				break
			}
		}
		if selected == nil {
			return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, *u.PaymentMethodID)
		}
		installments = 1
	}
	if u.Installments != nil {
		if selected == nil {
			return ErrNoPaymentMethod
		}
		if !selected.OffersInstallmentCount(*u.Installments) {
			return fmt.Errorf("%w: %d", ErrInstallmentsNotOffered, *u.Installments)
		}
		installments = *u.Installments
	}

	c.selected, c.installments = selected, installments
	if u.Customer != nil {
		c.customer = *u.Customer
	}
	if u.Address != nil {
		c.address = *u.Address
	}
	if u.Card != nil {
		c.card = *u.Card
	}
	return nil
}

func (c *CheckoutSession) SelectPaymentMethod(id string) error {
	return c.Update(CheckoutUpdate{PaymentMethodID: &id})
}

func (c *CheckoutSession) SelectInstallments(n int) error {
	return c.Update(CheckoutUpdate{Installments: &n})
}

func (c *CheckoutSession) SetCustomer(customer domain.Customer) error {
	return c.Update(CheckoutUpdate{Customer: &customer})
}

func (c *CheckoutSession) SetAddress(address domain.DeliveryAddress) error {
	return c.Update(CheckoutUpdate{Address: &address})
}

func (c *CheckoutSession) SetCard(card domain.CardInput) error {
	return c.Update(CheckoutUpdate{Card: &card})
}

// Totals prices the current cart with the selected method.
func (c *CheckoutSession) Totals() domain.OrderTotals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.ForCart(c.cart.Lines(), c.selected)
}

// Validate returns nil when the session can be submitted, or an error wrapping
// ErrNotSubmittable and the first unmet precondition.
func (c *CheckoutSession) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validateLocked()
}

func (c *CheckoutSession) CanSubmit() bool {
	return c.Validate() == nil
}

func (c *CheckoutSession) validateLocked() error {
	var cause error
	switch {
	case c.state != domain.CheckoutStateEditing:
		cause = ErrCheckoutNotEditable
	case c.cart.IsEmpty():
		cause = ErrEmptyCart
	case c.selected == nil:
		cause = ErrNoPaymentMethod
	}
	if cause == nil {
		cause = c.customer.Validate()
	}
	if cause == nil {
		cause = c.address.Validate()
	}
	if cause == nil && c.selected.Kind.IsCard() {
		if err := c.card.Validate(); err != nil {
			cause = fmt.Errorf("%w: %w", ErrCardDataRequired, err)
		}
	}
	if cause != nil {
		return fmt.Errorf("%w: %w", ErrNotSubmittable, cause)
	}
	return nil
}

// Submit hands the order to the data API. While a call is in flight further
// calls fail with ErrSubmissionInProgress. On failure the session returns to
// Editing with the cart untouched, and a retry reuses the same idempotency key.
// On success the lines of the placed order are taken out of the cart and the
// session is terminal; submitting again returns the same order. The placed
// order is whatever the data API holds for the key, which after an ambiguous
// failure may predate later cart edits.
func (c *CheckoutSession) Submit(ctx context.Context) (*domain.Order, error) {
	c.mu.Lock()
	switch c.state {
	case domain.CheckoutStateSubmitting:
		c.mu.Unlock()
		return nil, ErrSubmissionInProgress
	case domain.CheckoutStateSubmitted:
		order := c.order
		c.mu.Unlock()
		return order, nil
	}
	if err := c.validateLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}

	order := c.buildOrderLocked()
	c.transitionLocked(domain.CheckoutStateSubmitting)
	c.lastErr = nil
	c.mu.Unlock()

	// An in-flight submission is bounded by the timeout only; a caller going away does not abort it.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	start := time.Now()
	created, err := c.orders.CreateOrder(callCtx, order)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.transitionLocked(domain.CheckoutStateEditing)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			c.lastErr = fmt.Errorf("%w after %s: %w", ErrSubmissionTimeout, c.timeout, err)
		} else {
			c.lastErr = fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
		}
		c.logger.Warn("order submission failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return nil, c.lastErr
	}

	c.order = created
	c.transitionLocked(domain.CheckoutStateSubmitted)
	ordered := created.Lines
	if len(ordered) == 0 {
		ordered = order.Lines
	}
	if !created.Totals.GrandTotal.Equal(order.Totals.GrandTotal) {
		c.logger.Warn("placed order differs from the current cart",
			zap.String("order_id", created.ID),
			zap.String("placed_total", created.Totals.GrandTotal.String()),
			zap.String("cart_total", order.Totals.GrandTotal.String()))
	}
	c.cart.RemoveOrdered(context.WithoutCancel(ctx), ordered)
	c.cart.SetOpen(false)
	c.logger.Info("order submitted",
		zap.String("order_id", created.ID),
		zap.String("grand_total", created.Totals.GrandTotal.String()),
		zap.Duration("elapsed", time.Since(start)))
	return created, nil
}

func (c *CheckoutSession) buildOrderLocked() *domain.Order {
	lines := c.cart.Lines()
	installments := 1
	if c.selected.OffersInstallments() {
		installments = c.installments
	}
	order := &domain.Order{
		IdempotencyKey:   c.idempotencyKey,
		SessionID:        c.cart.SessionID(),
		Lines:            lines,
		Totals:           pricing.ForCart(lines, c.selected),
		PaymentMethodID:  c.selected.ID,
		PaymentKind:      c.selected.Kind,
		InstallmentCount: installments,
		Customer:         c.customer,
		Address:          c.address,
		Status:           domain.OrderStatusPending,
	}
	if c.selected.Kind.IsCard() {
		order.CardLastFour = c.card.LastFour()
	}
	return order
}

func (c *CheckoutSession) transitionLocked(to domain.CheckoutState) {
	if !domain.CanTransitionTo(c.state, to) {
		c.logger.Error("illegal checkout transition",
			zap.String("from", c.state.String()),
			zap.String("to", to.String()))
		return
	}
	c.state = to
}

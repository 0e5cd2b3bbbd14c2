package dataapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	EventTypeOrderPlaced = "order-placed"

	uniqueViolation = "23505"
)

// OrderPlacedEvent is the outbox payload written alongside every new order.
type OrderPlacedEvent struct {
	OrderID        string            `json:"order_id"`
	IdempotencyKey string            `json:"idempotency_key"`
	SessionID      string            `json:"session_id"`
	Items          []domain.CartLine `json:"items"`
	GrandTotal     decimal.Decimal   `json:"valor_total"`
	PaymentKind    string            `json:"forma_pagamento"`
	PlacedAt       time.Time         `json:"placed_at"`
}

// CreateOrder persists the order and its order-placed outbox event in one
// transaction. When an order with the same idempotency key already exists the
// stored order is returned and nothing new is written.
func (c *Client) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	return circuitbreaker.Execute(c.breaker, func() (*domain.Order, error) {
		created, err := c.insertOrder(ctx, order)
		if errors.Is(err, errDuplicateOrder) {
			c.logger.Info("order already exists for idempotency key",
				zap.String("idempotency_key", order.IdempotencyKey))
			return c.getOrderByIdempotencyKey(ctx, order.IdempotencyKey)
		}
		return created, err
	})
}

var errDuplicateOrder = errors.New("duplicate idempotency key")

func (c *Client) insertOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	stored := *order
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.Status == "" {
		stored.Status = domain.OrderStatusPending
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	itemsJSON, err := json.Marshal(stored.Lines)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order items: %w", err)
	}
	customerJSON, err := json.Marshal(stored.Customer)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal customer: %w", err)
	}
	addressJSON, err := json.Marshal(stored.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal delivery address: %w", err)
	}
	payload, err := json.Marshal(OrderPlacedEvent{
		OrderID:        stored.ID,
		IdempotencyKey: stored.IdempotencyKey,
		SessionID:      stored.SessionID,
		Items:          stored.Lines,
		GrandTotal:     stored.Totals.GrandTotal,
		PaymentKind:    string(stored.PaymentKind),
		PlacedAt:       stored.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outbox payload: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO vendas (id, idempotency_key, session_id, items, valor_subtotal, valor_impostos_frete,
	          valor_ajuste, valor_total, forma_pagamento_id, parcelas, cartao_final, dados_cliente, dados_entrega,
	          status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)`

	_, err = tx.ExecContext(ctx, query,
		stored.ID,
		stored.IdempotencyKey,
		stored.SessionID,
		itemsJSON,
		stored.Totals.Subtotal,
		stored.Totals.ShippingFee,
		stored.Totals.AdjustmentAmount,
		stored.Totals.GrandTotal,
		stored.PaymentMethodID,
		stored.InstallmentCount,
		stored.CardLastFour,
		customerJSON,
		addressJSON,
		string(stored.Status),
		stored.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, errDuplicateOrder
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	outbox := `INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
	           VALUES ($1, $2, $3, NOW())`
	if _, err := tx.ExecContext(ctx, outbox, stored.ID, EventTypeOrderPlaced, payload); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit order: %w", err)
	}

	return &stored, nil
}

// GetOrderByIdempotencyKey returns ErrOrderNotFound when no order carries key.
func (c *Client) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	return circuitbreaker.Execute(c.breaker, func() (*domain.Order, error) {
		return c.getOrderByIdempotencyKey(ctx, key)
	})
}

func (c *Client) getOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := `SELECT v.id, v.idempotency_key, v.session_id, v.items, v.valor_subtotal, v.valor_impostos_frete,
	          v.valor_ajuste, v.valor_total, v.forma_pagamento_id, f.tipo, v.parcelas, v.cartao_final,
	          v.dados_cliente, v.dados_entrega, v.status, v.created_at
	          FROM vendas v JOIN formas_pagamento f ON f.id = v.forma_pagamento_id
	          WHERE v.idempotency_key = $1`

	var (
		order                             domain.Order
		kind, status                      string
		itemsJSON, customerJSON, addrJSON []byte
	)
	err := c.db.QueryRowContext(ctx, query, key).Scan(
		&order.ID,
		&order.IdempotencyKey,
		&order.SessionID,
		&itemsJSON,
		&order.Totals.Subtotal,
		&order.Totals.ShippingFee,
		&order.Totals.AdjustmentAmount,
		&order.Totals.GrandTotal,
		&order.PaymentMethodID,
		&kind,
		&order.InstallmentCount,
		&order.CardLastFour,
		&customerJSON,
		&addrJSON,
		&status,
		&order.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}

	order.PaymentKind = domain.PaymentKind(kind)
	order.Status = domain.OrderStatus(status)
	if err := json.Unmarshal(itemsJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order items: %w", err)
	}
	if err := json.Unmarshal(customerJSON, &order.Customer); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	if err := json.Unmarshal(addrJSON, &order.Address); err != nil {
		return nil, fmt.Errorf("unmarshal delivery address: %w", err)
	}

	return &order, nil
}

package dataapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// GetProduct loads the catalogue snapshot a shopper adds to the cart.
func (c *Client) GetProduct(ctx context.Context, productID string) (*domain.CartCandidate, error) {
	return circuitbreaker.Execute(c.breaker, func() (*domain.CartCandidate, error) {
		return c.getProduct(ctx, productID)
	})
}

func (c *Client) getProduct(ctx context.Context, productID string) (*domain.CartCandidate, error) {
	query := `SELECT id, descricao_abreviada, preco_ultima_venda, quantidade_estoque, imagens
	          FROM produtos WHERE id = $1`

	var (
		candidate domain.CartCandidate
		price     decimal.Decimal
		images    []string
	)
	err := c.db.QueryRowContext(ctx, query, productID).Scan(
		&candidate.ProductID,
		&candidate.Name,
		&price,
		&candidate.AvailableStock,
		pq.Array(&images),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}

	candidate.UnitPrice = price
	if len(images) > 0 {
		candidate.ImageRef = images[0]
	}
	return &candidate, nil
}

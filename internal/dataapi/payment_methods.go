package dataapi

import (
	"context"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ListActivePaymentMethods returns every active payment method. Rows whose
// kind or details cannot be decoded are skipped and logged.
func (c *Client) ListActivePaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	return circuitbreaker.Execute(c.breaker, func() ([]domain.PaymentMethod, error) {
		return c.listActivePaymentMethods(ctx)
	})
}

func (c *Client) listActivePaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	query := `SELECT id, tipo, detalhes, prazos_parcelas, descontos_acrescimos
	          FROM formas_pagamento WHERE ativo = true ORDER BY tipo, id`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	methods := make([]domain.PaymentMethod, 0)
	for rows.Next() {
		var (
			id, tipo     string
			detailsJSON  []byte
			installments pq.Int64Array
			adjustment   decimal.Decimal
		)
		if err := rows.Scan(&id, &tipo, &detailsJSON, &installments, &adjustment); err != nil {
			return nil, fmt.Errorf("scan payment method row: %w", err)
		}

		kind, err := domain.ParsePaymentKind(tipo)
		if err != nil {
			c.logger.Warn("skipping payment method", zap.String("id", id), zap.Error(err))
			continue
		}
		details, err := domain.DecodePaymentDetails(kind, detailsJSON)
		if err != nil {
			c.logger.Warn("skipping payment method", zap.String("id", id), zap.Error(err))
			continue
		}

		options := make([]int, 0, len(installments))
		for _, n := range installments {
			options = append(options, int(n))
		}

		methods = append(methods, domain.PaymentMethod{
			ID:                 id,
			Kind:               kind,
			Details:            details,
			InstallmentOptions: options,
			AdjustmentPercent:  adjustment,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return methods, nil
}

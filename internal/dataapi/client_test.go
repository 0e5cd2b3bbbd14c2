package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/pkg/circuitbreaker"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockClient(t *testing.T) (*Client, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewClientFromDB(db, zaptest.NewLogger(t)), mock
}

func productColumns() []string {
	return []string{"id", "descricao_abreviada", "preco_ultima_venda", "quantidade_estoque", "imagens"}
}

func TestGetProduct_Success(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM produtos WHERE id = $1`)).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("P1", "Caneca", "19.90", int64(4), "{caneca-1.png,caneca-2.png}"))

	candidate, err := client.GetProduct(context.Background(), "P1")
	require.NoError(t, err)

	assert.Equal(t, "P1", candidate.ProductID)
	assert.Equal(t, "Caneca", candidate.Name)
	assert.True(t, decimal.RequireFromString("19.90").Equal(candidate.UnitPrice))
	assert.Equal(t, 4, candidate.AvailableStock)
	assert.Equal(t, "caneca-1.png", candidate.ImageRef)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_NoImages(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM produtos WHERE id = $1`)).
		WithArgs("P2").
		WillReturnRows(sqlmock.NewRows(productColumns()).
			AddRow("P2", "Camiseta", "49.00", int64(0), "{}"))

	candidate, err := client.GetProduct(context.Background(), "P2")
	require.NoError(t, err)
	assert.Empty(t, candidate.ImageRef)
	assert.Equal(t, 0, candidate.AvailableStock)
}

func TestGetProduct_NotFoundDoesNotTripBreaker(t *testing.T) {
	client, mock := newMockClient(t)

	for i := 0; i < 7; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM produtos WHERE id = $1`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(productColumns()))
	}

	for i := 0; i < 7; i++ {
		_, err := client.GetProduct(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, "closed", client.breaker.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_BreakerOpensOnDatabaseErrors(t *testing.T) {
	client, mock := newMockClient(t)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery(regexp.QuoteMeta(`FROM produtos WHERE id = $1`)).
			WillReturnError(errors.New("connection refused"))
	}

	for i := 0; i < 5; i++ {
		_, err := client.GetProduct(context.Background(), "P1")
		require.Error(t, err)
	}

	_, err := client.GetProduct(context.Background(), "P1")
	assert.ErrorIs(t, err, circuitbreaker.ErrOpenState)
	assert.Equal(t, "open", client.breaker.State())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActivePaymentMethods(t *testing.T) {
	client, mock := newMockClient(t)

	rows := sqlmock.NewRows([]string{"id", "tipo", "detalhes", "prazos_parcelas", "descontos_acrescimos"}).
		AddRow("boleto-1", "boleto", []byte(`{"banco_emissor":"Banco X","dias_vencimento":"3","taxa_emissao":"2.50"}`), "{}", "0").
		AddRow("cc-1", "cartao_credito", []byte(`{"bandeira":"Visa","taxa_processamento":"2.5"}`), "{1,3,6}", "-5").
		AddRow("cheque-1", "cheque", []byte(`{}`), "{}", "0").
		AddRow("pix-1", "pix", []byte(`{"chave_pix":"loja@exemplo.com","banco":"Banco Y"}`), "{}", "-10")

	mock.ExpectQuery(regexp.QuoteMeta(`FROM formas_pagamento WHERE ativo = true`)).
		WillReturnRows(rows)

	methods, err := client.ListActivePaymentMethods(context.Background())
	require.NoError(t, err)
	require.Len(t, methods, 3)

	assert.Equal(t, domain.PaymentKindBoleto, methods[0].Kind)
	boleto, ok := methods[0].Details.(domain.BoletoDetails)
	require.True(t, ok)
	assert.Equal(t, 3, boleto.DueDays)

	assert.Equal(t, "cc-1", methods[1].ID)
	assert.Equal(t, []int{1, 3, 6}, methods[1].InstallmentOptions)
	assert.True(t, decimal.NewFromInt(-5).Equal(methods[1].AdjustmentPercent))
	card, ok := methods[1].Details.(domain.CardDetails)
	require.True(t, ok)
	assert.Equal(t, "Visa", card.Brand)

	pix, ok := methods[2].Details.(domain.PixDetails)
	require.True(t, ok)
	assert.Equal(t, "loja@exemplo.com", pix.Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func newTestOrder() *domain.Order {
	return &domain.Order{
		IdempotencyKey: "key-123",
		SessionID:      "session-1",
		Lines: []domain.CartLine{
			{ProductID: "P1", Name: "Caneca", UnitPrice: decimal.RequireFromString("19.90"), Quantity: 2, AvailableStock: 4},
		},
		Totals: domain.OrderTotals{
			Subtotal:         decimal.RequireFromString("39.80"),
			ShippingFee:      decimal.RequireFromString("15.90"),
			AdjustmentAmount: decimal.Zero,
			GrandTotal:       decimal.RequireFromString("55.70"),
		},
		PaymentMethodID:  "pix-1",
		PaymentKind:      domain.PaymentKindPix,
		InstallmentCount: 1,
		Customer:         domain.Customer{Name: "Ana", Email: "ana@exemplo.com", Phone: "11999999999", CPF: "12345678900"},
		Address: domain.DeliveryAddress{
			PostalCode: "01000-000", Street: "Rua A", Number: "10",
			Neighborhood: "Centro", City: "São Paulo", State: "SP",
		},
	}
}

func TestCreateOrder_WritesOrderAndOutboxInOneTransaction(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO vendas`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_events`)).
		WithArgs(sqlmock.AnyArg(), EventTypeOrderPlaced, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	order, err := client.CreateOrder(context.Background(), newTestOrder())
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.False(t, order.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_OutboxFailureRollsBack(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO vendas`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO outbox_events`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := client.CreateOrder(context.Background(), newTestOrder())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert outbox event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrder_DuplicateKeyReturnsExistingOrder(t *testing.T) {
	client, mock := newMockClient(t)
	input := newTestOrder()
	placedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	itemsJSON, err := json.Marshal(input.Lines)
	require.NoError(t, err)
	customerJSON, err := json.Marshal(input.Customer)
	require.NoError(t, err)
	addressJSON, err := json.Marshal(input.Address)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO vendas`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE v.idempotency_key = $1`)).
		WithArgs("key-123").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "idempotency_key", "session_id", "items", "valor_subtotal", "valor_impostos_frete",
			"valor_ajuste", "valor_total", "forma_pagamento_id", "tipo", "parcelas", "cartao_final",
			"dados_cliente", "dados_entrega", "status", "created_at",
		}).AddRow(
			"order-existing", "key-123", "session-1", itemsJSON, "39.80", "15.90",
			"0", "55.70", "pix-1", "pix", int64(1), "",
			customerJSON, addressJSON, "pendente", placedAt,
		))

	order, err := client.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "order-existing", order.ID)
	assert.Equal(t, domain.PaymentKindPix, order.PaymentKind)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "Ana", order.Customer.Name)
	assert.Equal(t, "SP", order.Address.State)
	require.Len(t, order.Lines, 1)
	assert.Equal(t, 2, order.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("55.70").Equal(order.Totals.GrandTotal))
	assert.Equal(t, placedAt, order.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderByIdempotencyKey_NotFound(t *testing.T) {
	client, mock := newMockClient(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE v.idempotency_key = $1`)).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := client.GetOrderByIdempotencyKey(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOutboxEvents(t *testing.T) {
	client, mock := newMockClient(t)
	createdAt := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM outbox_events WHERE processed_at IS NULL`)).
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "aggregate_id", "event_type", "payload", "created_at"}).
			AddRow(int64(7), "order-1", EventTypeOrderPlaced, []byte(`{"order_id":"order-1"}`), createdAt))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE outbox_events SET processed_at = NOW()`)).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	events, err := client.GetUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 7, events[0].ID)
	assert.Equal(t, "order-1", events[0].AggregateID)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(events[0].Payload))

	require.NoError(t, client.MarkEventAsProcessed(context.Background(), events[0].ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

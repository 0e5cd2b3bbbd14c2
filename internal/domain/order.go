package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderTotals is derived from a cart snapshot and the selected payment method; never persisted by the cart.
type OrderTotals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	AdjustmentAmount decimal.Decimal `json:"adjustment_amount"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	Installments     []Installment   `json:"installments,omitempty"`
}

type Installment struct {
	Count          int             `json:"count"`
	PerInstallment decimal.Decimal `json:"per_installment"`
}

// Installment returns the option for n installments, if offered.
func (t OrderTotals) Installment(n int) (Installment, bool) {
	for _, inst := range t.Installments {
		if inst.Count == n {
			return inst, true
		}
	}
	return Installment{}, false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pendente"
	OrderStatusConfirmed OrderStatus = "confirmada"
	OrderStatusShipped   OrderStatus = "enviada"
	OrderStatusDelivered OrderStatus = "entregue"
	OrderStatusCancelled OrderStatus = "cancelada"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

var ErrMissingField = errors.New("missing required field")

type Customer struct {
	Name  string `json:"nome"`
	Email string `json:"email"`
	Phone string `json:"telefone"`
	CPF   string `json:"cpf"`
}

func (c Customer) Validate() error {
	return requireFields(map[string]string{
		"nome":     c.Name,
		"email":    c.Email,
		"telefone": c.Phone,
		"cpf":      c.CPF,
	})
}

// DeliveryAddress is the shipping address; Complement is the only optional field.
type DeliveryAddress struct {
	PostalCode   string `json:"cep"`
	Street       string `json:"rua"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento,omitempty"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
}

func (a DeliveryAddress) Validate() error {
	return requireFields(map[string]string{
		"cep":    a.PostalCode,
		"rua":    a.Street,
		"numero": a.Number,
		"bairro": a.Neighborhood,
		"cidade": a.City,
		"estado": a.State,
	})
}

// CardInput is what the shopper types for card payments. Only the last four
// digits ever leave the checkout session.
type CardInput struct {
	Number     string `json:"numero_cartao"`
	HolderName string `json:"nome_cartao"`
	Expiry     string `json:"validade_cartao"`
	CVV        string `json:"cvv_cartao"`
}

func (c CardInput) Validate() error {
	return requireFields(map[string]string{
		"numero_cartao":   c.Number,
		"nome_cartao":     c.HolderName,
		"validade_cartao": c.Expiry,
		"cvv_cartao":      c.CVV,
	})
}

func (c CardInput) LastFour() string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, c.Number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

// Order is the snapshot handed to the data API on checkout submission.
type Order struct {
	ID               string
	IdempotencyKey   string
	SessionID        string
	Lines            []CartLine
	Totals           OrderTotals
	PaymentMethodID  string
	PaymentKind      PaymentKind
	InstallmentCount int
	CardLastFour     string
	Customer         Customer
	Address          DeliveryAddress
	Status           OrderStatus
	CreatedAt        time.Time
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}

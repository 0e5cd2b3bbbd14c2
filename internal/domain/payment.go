package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindCreditCard PaymentKind = "cartao_credito"
	PaymentKindDebitCard  PaymentKind = "cartao_debito"
	PaymentKindPix        PaymentKind = "pix"
	PaymentKindBoleto     PaymentKind = "boleto"
)

var ErrUnknownPaymentKind = errors.New("unknown payment kind")

func ParsePaymentKind(s string) (PaymentKind, error) {
	switch k := PaymentKind(s); k {
	case PaymentKindCreditCard, PaymentKindDebitCard, PaymentKindPix, PaymentKindBoleto:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPaymentKind, s)
	}
}

func (k PaymentKind) IsCard() bool {
	return k == PaymentKindCreditCard || k == PaymentKindDebitCard
}

// Label is the storefront display name of the kind.
func (k PaymentKind) Label() string {
	switch k {
	case PaymentKindCreditCard:
		return "Cartão de Crédito"
	case PaymentKindDebitCard:
		return "Cartão de Débito"
	case PaymentKindPix:
		return "PIX"
	case PaymentKindBoleto:
		return "Boleto"
	default:
		return string(k)
	}
}

// PaymentDetails is the per-kind configuration of a payment method.
// Exactly one variant exists per kind: CardDetails, PixDetails, BoletoDetails.
type PaymentDetails interface {
	paymentDetails()
}

type CardDetails struct {
	Brand                string          `json:"bandeira"`
	ProcessingFeePercent decimal.Decimal `json:"taxa_processamento"`
}

type PixDetails struct {
	Key  string `json:"chave_pix"`
	Bank string `json:"banco"`
}

type BoletoDetails struct {
	IssuingBank string          `json:"banco_emissor"`
	DueDays     int             `json:"dias_vencimento"`
	IssueFee    decimal.Decimal `json:"taxa_emissao"`
}

func (CardDetails) paymentDetails()   {}
func (PixDetails) paymentDetails()    {}
func (BoletoDetails) paymentDetails() {}

// DecodePaymentDetails decodes the raw details blob into the variant selected by kind.
// Numeric fields are accepted either as JSON numbers or as numeric strings, the
// way the back office form stores them; blank values decode to zero.
func DecodePaymentDetails(kind PaymentKind, raw []byte) (PaymentDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = []byte("{}")
	}

	var fields struct {
		Brand         string          `json:"bandeira"`
		ProcessingFee json.RawMessage `json:"taxa_processamento"`
		PixKey        string          `json:"chave_pix"`
		Bank          string          `json:"banco"`
		IssuingBank   string          `json:"banco_emissor"`
		DueDays       json.RawMessage `json:"dias_vencimento"`
		IssueFee      json.RawMessage `json:"taxa_emissao"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", kind, err)
	}

	switch kind {
	case PaymentKindCreditCard, PaymentKindDebitCard:
		fee, err := lenientDecimal(fields.ProcessingFee)
		if err != nil {
			return nil, fmt.Errorf("decode %s details: taxa_processamento: %w", kind, err)
		}
		return CardDetails{Brand: fields.Brand, ProcessingFeePercent: fee}, nil
	case PaymentKindPix:
		return PixDetails{Key: fields.PixKey, Bank: fields.Bank}, nil
	case PaymentKindBoleto:
		days, err := lenientDecimal(fields.DueDays)
		if err != nil {
			return nil, fmt.Errorf("decode %s details: dias_vencimento: %w", kind, err)
		}
		fee, err := lenientDecimal(fields.IssueFee)
		if err != nil {
			return nil, fmt.Errorf("decode %s details: taxa_emissao: %w", kind, err)
		}
		return BoletoDetails{IssuingBank: fields.IssuingBank, DueDays: int(days.IntPart()), IssueFee: fee}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentKind, kind)
	}
}

func lenientDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	s := strings.TrimSpace(string(raw))
	s = strings.Trim(s, `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// PaymentMethod is a read-only snapshot of an active payment method.
// AdjustmentPercent is signed: positive is a surcharge, negative a discount.
type PaymentMethod struct {
	ID                 string
	Kind               PaymentKind
	Details            PaymentDetails
	InstallmentOptions []int
	AdjustmentPercent  decimal.Decimal
}

// OffersInstallments reports whether installment selection applies to this method.
func (m PaymentMethod) OffersInstallments() bool {
	return m.Kind == PaymentKindCreditCard && len(m.InstallmentOptions) > 0
}

func (m PaymentMethod) OffersInstallmentCount(n int) bool {
	if !m.OffersInstallments() {
		return false
	}
	for _, opt := range m.InstallmentOptions {
		if opt == n {
			return true
		}
	}
	return false
}

type paymentMethodJSON struct {
	ID                 string          `json:"id"`
	Kind               PaymentKind     `json:"tipo"`
	Details            json.RawMessage `json:"detalhes"`
	InstallmentOptions []int           `json:"prazos_parcelas"`
	AdjustmentPercent  decimal.Decimal `json:"descontos_acrescimos"`
}

func (m PaymentMethod) MarshalJSON() ([]byte, error) {
	details, err := json.Marshal(m.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paymentMethodJSON{
		ID:                 m.ID,
		Kind:               m.Kind,
		Details:            details,
		InstallmentOptions: m.InstallmentOptions,
		AdjustmentPercent:  m.AdjustmentPercent,
	})
}

func (m *PaymentMethod) UnmarshalJSON(data []byte) error {
	var raw paymentMethodJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParsePaymentKind(string(raw.Kind))
	if err != nil {
		return err
	}
	details, err := DecodePaymentDetails(kind, raw.Details)
	if err != nil {
		return err
	}
	*m = PaymentMethod{
		ID:                 raw.ID,
		Kind:               kind,
		Details:            details,
		InstallmentOptions: raw.InstallmentOptions,
		AdjustmentPercent:  raw.AdjustmentPercent,
	}
	return nil
}

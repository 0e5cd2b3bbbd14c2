// Package pricing derives order totals from a cart snapshot and a payment method.
// Every function here is pure.
package pricing

import (
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// ShippingFee is the flat rate charged on every order, whatever the cart holds.
var ShippingFee = decimal.RequireFromString("15.90")

var hundred = decimal.NewFromInt(100)

// Subtotal is the sum of unit price times quantity over lines.
func Subtotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Calculate computes totals for a subtotal and an optional payment method.
//
// The adjustment is subtracted from the total as stored: a method carrying
// -5 (a 5% discount) yields adjustment -5% of subtotal and therefore a grand
// total that is higher than subtotal plus shipping. The sign is pinned by
// TestCalculate_DiscountSignIsPreserved.
func Calculate(subtotal decimal.Decimal, method *domain.PaymentMethod) domain.OrderTotals {
	adjustment := decimal.Zero
	if method != nil {
		adjustment = subtotal.Mul(method.AdjustmentPercent).Div(hundred)
	}

	grand := subtotal.Add(ShippingFee).Sub(adjustment)

	totals := domain.OrderTotals{
		Subtotal:         subtotal,
		ShippingFee:      ShippingFee,
		AdjustmentAmount: adjustment,
		GrandTotal:       grand,
	}

	if method != nil && method.OffersInstallments() {
		totals.Installments = make([]domain.Installment, 0, len(method.InstallmentOptions))
		for _, n := range method.InstallmentOptions {
			if n <= 0 {
				continue
			}
			totals.Installments = append(totals.Installments, domain.Installment{
				Count:          n,
				PerInstallment: grand.Div(decimal.NewFromInt(int64(n))),
			})
		}
	}

	return totals
}

// ForCart is Calculate over the subtotal of lines.
func ForCart(lines []domain.CartLine, method *domain.PaymentMethod) domain.OrderTotals {
	return Calculate(Subtotal(lines), method)
}

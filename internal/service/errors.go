package service

import "errors"

var (
	ErrUnknownPaymentMethod      = errors.New("payment method is not offered")
	ErrInstallmentsNotOffered    = errors.New("installment count is not offered for this payment method")
	ErrCheckoutNotEditable       = errors.New("checkout is not editable")
	ErrNotSubmittable            = errors.New("checkout is not ready to submit")
	ErrEmptyCart                 = errors.New("cart is empty, nothing to checkout")
	ErrNoPaymentMethod           = errors.New("no payment method selected")
	ErrCardDataRequired          = errors.New("card data is required for card payments")
	ErrSubmissionInProgress      = errors.New("order submission already in progress")
	ErrSubmissionFailed          = errors.New("order submission failed")
	ErrSubmissionTimeout         = errors.New("order submission timed out")
	ErrPaymentMethodsUnavailable = errors.New("payment methods unavailable")
)

// IsRetriable reports whether err came from a submission that may be retried
// with the same idempotency key.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrSubmissionTimeout) || errors.Is(err, ErrSubmissionFailed)
}

package domain

type CheckoutState string

const (
	CheckoutStateEditing    CheckoutState = "EDITING"
	CheckoutStateSubmitting CheckoutState = "SUBMITTING"
	CheckoutStateSubmitted  CheckoutState = "SUBMITTED"
)

func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateSubmitted
}

// CanTransitionTo reports whether the checkout state machine allows from -> to.
// A failed submission goes back to Editing.
func CanTransitionTo(from, to CheckoutState) bool {
	switch from {
	case CheckoutStateEditing:
		return to == CheckoutStateSubmitting
	case CheckoutStateSubmitting:
		return to == CheckoutStateEditing || to == CheckoutStateSubmitted
	default:
		return false
	}
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}

package commission

import "errors"

var (
	// ErrForbidden is returned when the caller is not the bound creator or
	// customer (or a valid guest) for the transaction.
	ErrForbidden = errors.New("caller is not a party to this transaction")

	// ErrAmountMismatch is returned when a payment attempt does not match the
	// transaction's total exactly. It is fatal, never silently corrected.
	ErrAmountMismatch = errors.New("payment amount does not match transaction total")

	// ErrDeliveryRequired is returned when a revision is requested before any
	// delivery exists.
	ErrDeliveryRequired = errors.New("no delivery exists to revise")

	// ErrQuoteMismatch is returned when the quote does not belong to the
	// caller's transaction.
	ErrQuoteMismatch = errors.New("quote does not belong to this transaction")

	// ErrEmptyQuote is returned when a quote has no line items.
	ErrEmptyQuote = errors.New("quote must have at least one line item")

	// ErrCustomerIdentity is returned when a new inquiry populates neither or
	// both of the member and guest identity forms.
	ErrCustomerIdentity = errors.New("exactly one of member id or guest email/name must be given")

	// ErrPaymentFailed wraps gateway failures; the transaction stays in
	// payment_pending and the operation is safely retryable.
	ErrPaymentFailed = errors.New("payment failed")
)

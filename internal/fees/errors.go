package fees

import (
	"errors"
	"fmt"
)

// Reason identifies why a payment was rejected.
type Reason string

const (
	ReasonNotConfigured       Reason = "not_configured"
	ReasonInvalidTxHash       Reason = "invalid_transaction_hash"
	ReasonTransactionNotFound Reason = "transaction_not_found"
	ReasonTransactionFailed   Reason = "transaction_failed"
	ReasonEventNotFound       Reason = "event_not_found"
	ReasonInvalidEvent        Reason = "invalid_event"
	ReasonActionMismatch      Reason = "action_mismatch"
	ReasonInvalidAmount       Reason = "invalid_amount"
	ReasonTokenMismatch       Reason = "token_mismatch"
	// ReasonChainUnavailable covers transport errors and timeouts. The
	// payment may be valid; the client can retry the same hash later.
	ReasonChainUnavailable Reason = "chain_unavailable"
)

// PaymentError is returned for every verification failure.
type PaymentError struct {
	Reason  Reason
	Message string
	Cause   error
}

func (e *PaymentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Reason, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Cause
}

func newPaymentError(reason Reason, message string, cause error) *PaymentError {
	return &PaymentError{Reason: reason, Message: message, Cause: cause}
}

// ReasonOf extracts the rejection reason, or "" if err carries none.
func ReasonOf(err error) Reason {
	var pe *PaymentError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ""
}

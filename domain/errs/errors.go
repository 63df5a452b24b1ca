package errs

import "fmt"

// ValidationError reports a request rejected before any mutation: bad amounts,
// wrong states acting parties are not allowed to reach, self-bids and the like.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewValidation creates a ValidationError with a formatted reason
func NewValidation(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientFundsError reports a rejected operation with the amounts involved
type InsufficientFundsError struct {
	Required  int64
	Available int64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: need %d, have %d available", e.Required, e.Available)
}

// NewInsufficientFunds creates an InsufficientFundsError
func NewInsufficientFunds(required, available int64) *InsufficientFundsError {
	return &InsufficientFundsError{Required: required, Available: available}
}

// ConflictError reports an operation that lost a race against another state
// change. Safe for the caller to retry with fresh state.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return e.Reason
}

// NewConflict creates a ConflictError with a formatted reason
func NewConflict(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// IntegrityError reports a ledger mutation whose paired write failed. It must
// surface for manual reconciliation and is never silently swallowed.
type IntegrityError struct {
	Reason string
	Err    error
}

func (e *IntegrityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger integrity violation: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("ledger integrity violation: %s", e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// NewIntegrity creates an IntegrityError wrapping the underlying failure
func NewIntegrity(err error, format string, args ...any) *IntegrityError {
	return &IntegrityError{Reason: fmt.Sprintf(format, args...), Err: err}
}

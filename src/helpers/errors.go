package helpers

import (
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type TradeSimError struct {
	Message string
	Cause   error
}

func (e *TradeSimError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *TradeSimError) Unwrap() error {
	return e.Cause
}

// Distinct error types. The first three are business-rule rejections that
// surface to the caller as {Success:false, ErrorMessage}; the rest are
// internal and surface as a generic failure.
type ValidationError struct{ TradeSimError }
type InsufficientFundsError struct{ TradeSimError }
type InsufficientSharesError struct{ TradeSimError }
type NotFoundError struct{ TradeSimError }
type DataSourceError struct{ TradeSimError }
type DatabaseError struct{ TradeSimError }

// -----------------------------------------------------------------------------

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{TradeSimError{Message: fmt.Sprintf(format, args...)}}
}

func NewInsufficientFunds(required, available float64) error {
	return &InsufficientFundsError{TradeSimError{
		Message: fmt.Sprintf("insufficient funds: need $%.2f, have $%.2f", required, available),
	}}
}

func NewInsufficientShares(requested, held int64) error {
	return &InsufficientSharesError{TradeSimError{
		Message: fmt.Sprintf("insufficient shares: requested %d, holding %d", requested, held),
	}}
}

func NewNotFound(format string, args ...interface{}) error {
	return &NotFoundError{TradeSimError{Message: fmt.Sprintf(format, args...)}}
}

func NewDatabaseError(msg string, cause error) error {
	return &DatabaseError{TradeSimError{Message: msg, Cause: cause}}
}

// -----------------------------------------------------------------------------

// IsBusinessError reports whether err is a rejection the caller should see
// verbatim, as opposed to an internal failure.
func IsBusinessError(err error) bool {
	var ve *ValidationError
	var fe *InsufficientFundsError
	var se *InsufficientSharesError
	var ne *NotFoundError
	return errors.As(err, &ve) || errors.As(err, &fe) || errors.As(err, &se) || errors.As(err, &ne)
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff attempts to execute the operation up to maxRetries times with exponential backoff.
func RetryWithBackoff(operation string, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		fmt.Printf("Warning: Attempt %d/%d failed for %s: %v. Retrying in %v\n", attempt+1, maxRetries, operation, lastErr, delay)
		time.Sleep(delay)
	}

	return lastErr
}

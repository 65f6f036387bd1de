package order

import (
	"errors"
	"fmt"

	"github.com/maxshopweb/checkout/internal/domain"
)

var (
	ErrPaymentMethodRequired = errors.New("payment method required before submitting the order")
	ErrOrderNotFound         = errors.New("order not found")
	ErrDuplicateOrder        = errors.New("order already exists for this submission")
)

// RetryableError marks an unclassified submission failure. The order must not
// be assumed created; cart and session are left intact so the buyer can retry.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("order submission failed: %v", e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// Classify sorts a submission failure into the three buckets callers act on:
// auth expiry and validation pass through untouched, everything else becomes
// retryable.
func Classify(err error) error {
	var authErr *domain.AuthExpiredError
	if errors.As(err, &authErr) {
		return err
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return err
	}
	if errors.Is(err, ErrDuplicateOrder) {
		return err
	}
	return &RetryableError{Err: err}
}

package shipping

import (
	"context"
	"errors"

	"github.com/maxshopweb/checkout/internal/domain"
)

var ErrCacheMiss = errors.New("quote not found in cache")

// QuoteCache mirrors firm quotes across process restarts, keyed by postal
// code. A miss is never an error for the quoter, just a reason to request.
type QuoteCache interface {
	Get(ctx context.Context, postalCode string) (*domain.ShippingQuote, error)
	Set(ctx context.Context, quote *domain.ShippingQuote) error
	Delete(ctx context.Context, postalCode string) error
}

package checkout

import (
	"context"
	"errors"

	"github.com/maxshopweb/checkout/internal/domain"
)

var ErrSessionNotFound = errors.New("checkout session not found")

// SessionStore persists the allow-listed subset of the checkout session so a
// buyer resumes mid-flow after a reload. Consumers define this interface,
// not the Redis implementation.
type SessionStore interface {
	Get(ctx context.Context, ownerID string) (*domain.CheckoutSession, error)
	Save(ctx context.Context, session *domain.CheckoutSession) error
	Delete(ctx context.Context, ownerID string) error
}

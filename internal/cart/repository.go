package cart

import (
	"context"
	"errors"

	"github.com/maxshopweb/checkout/internal/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// Repository persists the cart-lines snapshot, one document per owner.
// Consumers define this interface, not the MongoDB implementation.
type Repository interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, error)
	UpsertCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, ownerID string) error
}

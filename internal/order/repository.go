package order

import (
	"context"

	"github.com/maxshopweb/checkout/internal/domain"
)

// Creator persists an accepted order. The default implementation is the
// postgres repository; tests substitute a mock.
type Creator interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	Creator
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByOwner(ctx context.Context, ownerID string) ([]*domain.Order, error)
	RunMigrations(cred *Credentials) error
	Close() error
}

package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/maxshopweb/checkout/internal/domain"
)

const orderCurrency = "ARS"

// Sessions is the slice of the checkout state machine the coordinator drives.
// Implemented by *checkout.Service.
type Sessions interface {
	Load(ctx context.Context, ownerID string) (*domain.CheckoutSession, error)
	BeginSubmission(ownerID string) error
	EndSubmission(ownerID string)
	Reset(ctx context.Context, ownerID string) error
}

// Carts is the slice of the cart engine the coordinator needs: one read for
// payload assembly, one clear after acceptance.
type Carts interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, domain.CartSummary, error)
	ClearCart(ctx context.Context, ownerID string) error
}

// Coordinator owns the single submit operation at the end of the checkout
// flow. The busy flag held between BeginSubmission and the session reset is
// what keeps the empty-cart guard from bouncing the buyer while the cart is
// already cleared.
type Coordinator struct {
	sessions  Sessions
	carts     Carts
	creator   Creator
	publisher EventPublisher
}

func NewCoordinator(sessions Sessions, carts Carts, creator Creator, publisher EventPublisher) *Coordinator {
	return &Coordinator{
		sessions:  sessions,
		carts:     carts,
		creator:   creator,
		publisher: publisher,
	}
}

// Submit assembles the payload and fires the one order-creation call. On any
// failure the cart and session are left intact and the busy flag is cleared;
// on success the cart is cleared and the session reset.
func (c *Coordinator) Submit(ctx context.Context, ownerID, customerID string) (*domain.Order, error) {
	if err := c.sessions.BeginSubmission(ownerID); err != nil {
		return nil, err
	}

	o, err := c.submit(ctx, ownerID, customerID)
	if err != nil {
		c.sessions.EndSubmission(ownerID)
		return nil, err
	}

	// Acceptance window: the cart empties and the session resets while the
	// busy flag still suppresses the guard's empty-cart check. Reset drops
	// the flag last.
	if err := c.carts.ClearCart(ctx, ownerID); err != nil {
		log.WithError(err).WithField("owner_id", ownerID).Error("failed to clear cart after order creation")
	}
	if err := c.sessions.Reset(ctx, ownerID); err != nil {
		log.WithError(err).WithField("owner_id", ownerID).Error("failed to reset session after order creation")
		c.sessions.EndSubmission(ownerID)
	}

	return o, nil
}

func (c *Coordinator) submit(ctx context.Context, ownerID, customerID string) (*domain.Order, error) {
	sess, err := c.sessions.Load(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	cart, summary, err := c.carts.GetCart(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	payload, err := BuildPayload(sess, cart, customerID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		CustomerID:     payload.CustomerID,
		PaymentMethod:  payload.PaymentMethod,
		Items:          payload.Items,
		ShippingCost:   payload.ShippingCost,
		TotalAmount:    summary.Subtotal - summary.Discounts + payload.ShippingCost,
		Currency:       orderCurrency,
		DocumentType:   payload.DocumentType,
		DocumentNumber: payload.DocumentNumber,
		Observation:    payload.Observation,
		AddressID:      payload.AddressID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := c.creator.CreateOrder(ctx, o); err != nil {
		return nil, Classify(err)
	}

	if c.publisher != nil {
		if pubErr := c.publisher.PublishOrderCreated(ctx, o); pubErr != nil {
			log.WithError(pubErr).WithField("order_id", o.ID).Warn("order created but event not published")
		}
	}

	log.WithFields(log.Fields{
		"order_id": o.ID,
		"owner_id": ownerID,
		"total":    o.TotalAmount,
	}).Info("Order created")

	return o, nil
}

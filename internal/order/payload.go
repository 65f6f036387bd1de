package order

import (
	"fmt"
	"strings"

	"github.com/maxshopweb/checkout/internal/domain"
)

// BuildPayload assembles the final submission shape from the cart and the
// captured session state. It performs the last line of defense validation;
// anything it rejects the state machine should already have blocked upstream.
func BuildPayload(sess *domain.CheckoutSession, c *domain.Cart, customerID string) (*domain.OrderPayload, error) {
	if sess.PaymentMethod == "" {
		return nil, ErrPaymentMethodRequired
	}
	if c.IsEmpty() {
		return nil, domain.NewValidationError("cart", "cart is empty")
	}
	if sess.PersonalData == nil {
		return nil, domain.NewValidationError("personal_data", "personal data required")
	}

	payload := &domain.OrderPayload{
		CustomerID:     customerID,
		PaymentMethod:  sess.PaymentMethod,
		DocumentType:   sess.PersonalData.DocumentType,
		DocumentNumber: sess.PersonalData.DocumentNumber,
		ShippingCost:   sess.ResolvedShippingCost(),
	}

	for _, l := range c.Lines {
		payload.Items = append(payload.Items, domain.OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
		})
	}

	// A saved address id is used exclusively; the free-text observation is
	// composed from the loose fields only when no saved address is selected.
	if sess.SelectedAddressID != "" {
		payload.AddressID = sess.SelectedAddressID
	} else if sess.DeliveryType == domain.DeliveryTypeShip && sess.ShippingData != nil {
		payload.Observation = composeObservation(sess.ShippingData)
	}

	return payload, nil
}

func composeObservation(sd *domain.ShippingData) string {
	parts := []string{fmt.Sprintf("%s %s", sd.Street, sd.Number)}
	if sd.Floor != "" {
		parts = append(parts, "Piso "+sd.Floor)
	}
	if sd.Apartment != "" {
		parts = append(parts, "Depto "+sd.Apartment)
	}
	parts = append(parts, sd.City, sd.Province, "CP "+sd.PostalCode)
	return strings.Join(parts, ", ")
}

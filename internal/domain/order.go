package domain

import "time"

type OrderItem struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
}

// OrderPayload is the final submission shape. Observation and AddressID are
// mutually exclusive: a saved address id is used exclusively when selected,
// otherwise the free-text observation composed from the shipping fields.
type OrderPayload struct {
	CustomerID     string      `json:"customer_id,omitempty"`
	PaymentMethod  string      `json:"payment_method"`
	Items          []OrderItem `json:"items"`
	ShippingCost   float64     `json:"shipping_cost"`
	DocumentType   string      `json:"document_type"`
	DocumentNumber string      `json:"document_number"`
	Observation    string      `json:"observation,omitempty"`
	AddressID      string      `json:"address_id,omitempty"`
}

// Order is the persisted record of an accepted submission.
type Order struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"owner_id"`
	CustomerID     string      `json:"customer_id,omitempty"`
	PaymentMethod  string      `json:"payment_method"`
	Items          []OrderItem `json:"items"`
	ShippingCost   float64     `json:"shipping_cost"`
	TotalAmount    float64     `json:"total_amount"`
	Currency       string      `json:"currency"`
	DocumentType   string      `json:"document_type"`
	DocumentNumber string      `json:"document_number"`
	Observation    string      `json:"observation,omitempty"`
	AddressID      string      `json:"address_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

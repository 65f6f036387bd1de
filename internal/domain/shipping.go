package domain

import "time"

// ShippingQuote holds a firm carrier price for one destination postal code.
// It is valid only while that postal code remains the current one; any
// postal code change invalidates it.
type ShippingQuote struct {
	PostalCode string    `json:"postal_code"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
	QuotedAt   time.Time `json:"quoted_at"`
}

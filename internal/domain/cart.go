package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	OwnerID   string     `bson:"owner_id" json:"owner_id"`
	Lines     []CartLine `bson:"lines" json:"lines"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartLine is the single normalized line-item shape used by the cart, the
// checkout snapshot and the order payload alike.
type CartLine struct {
	ProductID int64   `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name" json:"name"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unit_price" json:"unit_price"`
	Discount  float64 `bson:"discount" json:"discount"`
	Subtotal  float64 `bson:"subtotal" json:"subtotal"`
	Product   Product `bson:"product" json:"product"`
}

// CartSummary is derived state. It is recomputed in full from the lines on
// every mutation and never mutated independently.
type CartSummary struct {
	Subtotal  float64 `json:"subtotal"`
	Discounts float64 `json:"discounts"`
	Shipping  float64 `json:"shipping"`
	Total     float64 `json:"total"`
	ItemCount int     `json:"item_count"`
}

// TotalUnits is the sum of quantities across all lines, used to derive the
// volume and weight estimates of a shipping quote request.
func (c *Cart) TotalUnits() int {
	units := 0
	for _, l := range c.Lines {
		units += l.Quantity
	}
	return units
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Lines) == 0
}

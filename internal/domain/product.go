package domain

// Product is the pricing snapshot embedded in every cart line. Lines are
// re-priced from this snapshot on rehydration, so a stale persisted line
// can never outlive a catalog price change.
type Product struct {
	ID           int64   `bson:"id" json:"id"`
	Name         string  `bson:"name" json:"name"`
	ListPrice    float64 `bson:"list_price" json:"list_price"`
	SpecialPrice float64 `bson:"special_price" json:"special_price"`
}

// EffectivePrice returns the unit price a buyer actually pays: the special
// price when one is set below the list price, the list price otherwise.
// Negative inputs are coerced to 0.
func (p Product) EffectivePrice() float64 {
	list := p.ListPrice
	if list < 0 {
		list = 0
	}
	if p.SpecialPrice > 0 && p.SpecialPrice < list {
		return p.SpecialPrice
	}
	return list
}

// UnitDiscount is the per-unit saving against the list price, never negative.
func (p Product) UnitDiscount() float64 {
	d := p.ListPrice - p.EffectivePrice()
	if d < 0 {
		return 0
	}
	return d
}

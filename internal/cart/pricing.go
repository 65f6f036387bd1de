package cart

import "github.com/maxshopweb/checkout/internal/domain"

// PriceLine builds a cart line from the product's current pricing. The
// discount scales with quantity; unit price and discount are never negative.
func PriceLine(p domain.Product, qty int) domain.CartLine {
	unit := p.EffectivePrice()
	return domain.CartLine{
		ProductID: p.ID,
		Name:      p.Name,
		Quantity:  qty,
		UnitPrice: unit,
		Discount:  p.UnitDiscount() * float64(qty),
		Subtotal:  unit * float64(qty),
		Product:   p,
	}
}

// DiscountPercent is the canonical discount ratio: the line's saving against
// its undiscounted (list) value. Returns 0 for free items.
func DiscountPercent(line domain.CartLine) float64 {
	base := line.Subtotal + line.Discount
	if base <= 0 {
		return 0
	}
	return line.Discount / base * 100
}

// Summarize recomputes the summary from scratch over all lines, never
// incrementally. The summary subtotal is the gross (list-price) value, so
// Total = Subtotal - Discounts + Shipping lands on the sum of the discounted
// line subtotals plus shipping. Shipping is externally injected: 0 until a
// firm quote exists.
func Summarize(lines []domain.CartLine, shipping float64) domain.CartSummary {
	var s domain.CartSummary
	for _, l := range lines {
		s.Subtotal += l.Subtotal + l.Discount
		s.Discounts += l.Discount
		s.ItemCount += l.Quantity
	}
	s.Shipping = shipping
	s.Total = s.Subtotal - s.Discounts + s.Shipping
	return s
}

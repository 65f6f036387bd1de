package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxshopweb/checkout/internal/domain"
)

type mockRepository struct {
	m    sync.RWMutex
	cart *domain.Cart
	err  error
}

func (m *mockRepository) GetCart(context.Context, string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.cart == nil {
		return nil, ErrCartNotFound
	}
	cp := *m.cart
	cp.Lines = append([]domain.CartLine(nil), m.cart.Lines...)
	return &cp, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, c *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.cart = c
	return nil
}

func (m *mockRepository) DeleteCart(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.cart == nil {
		return ErrCartNotFound
	}
	m.cart = nil
	return nil
}

func fullPrice(id int64, price float64) domain.Product {
	return domain.Product{ID: id, Name: fmt.Sprintf("product-%d", id), ListPrice: price, SpecialPrice: price}
}

func requireSummaryInvariant(t *testing.T, s domain.CartSummary) {
	t.Helper()
	require.InDelta(t, s.Subtotal-s.Discounts+s.Shipping, s.Total, 1e-9)
}

func TestAddItem_NoDiscount(t *testing.T) {
	sut := NewEngine(&mockRepository{})

	// One item, qty 2, unit price 100, no discount.
	cart, summary, err := sut.AddItem(context.Background(), "123", fullPrice(1, 100), 2)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.InDelta(t, 100.0, cart.Lines[0].UnitPrice, 1e-9)
	assert.InDelta(t, 200.0, cart.Lines[0].Subtotal, 1e-9)
	assert.InDelta(t, 0.0, cart.Lines[0].Discount, 1e-9)

	assert.InDelta(t, 200.0, summary.Subtotal, 1e-9)
	assert.InDelta(t, 0.0, summary.Discounts, 1e-9)
	assert.InDelta(t, 200.0, summary.Total, 1e-9)
	assert.Equal(t, 2, summary.ItemCount)
	requireSummaryInvariant(t, summary)
}

func TestAddItem_MergesSameProduct(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", fullPrice(1, 50), 1)
	require.NoError(t, err)
	cart, summary, err := sut.AddItem(ctx, "123", fullPrice(1, 50), 2)
	require.NoError(t, err)

	// Single merged line with qty 3, not two lines.
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 3, cart.Lines[0].Quantity)
	assert.InDelta(t, 150.0, cart.Lines[0].Subtotal, 1e-9)
	assert.Equal(t, 3, summary.ItemCount)
	requireSummaryInvariant(t, summary)
}

func TestAddItem_MergeRepricesFromCurrentPricing(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", fullPrice(1, 100), 1)
	require.NoError(t, err)

	// Same product now carries a special price; the merged line must use it.
	discounted := domain.Product{ID: 1, Name: "product-1", ListPrice: 100, SpecialPrice: 80}
	cart, summary, err := sut.AddItem(ctx, "123", discounted, 1)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
	assert.InDelta(t, 80.0, cart.Lines[0].UnitPrice, 1e-9)
	assert.InDelta(t, 40.0, cart.Lines[0].Discount, 1e-9)
	assert.InDelta(t, 160.0, cart.Lines[0].Subtotal, 1e-9)

	assert.InDelta(t, 200.0, summary.Subtotal, 1e-9)
	assert.InDelta(t, 40.0, summary.Discounts, 1e-9)
	assert.InDelta(t, 160.0, summary.Total, 1e-9)
	requireSummaryInvariant(t, summary)
}

func TestAddItem_NegativePricesCoercedToZero(t *testing.T) {
	sut := NewEngine(&mockRepository{})

	cart, summary, err := sut.AddItem(context.Background(), "123",
		domain.Product{ID: 7, ListPrice: -10, SpecialPrice: -5}, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, cart.Lines[0].UnitPrice, 1e-9)
	assert.InDelta(t, 0.0, cart.Lines[0].Discount, 1e-9)
	assert.InDelta(t, 0.0, summary.Total, 1e-9)
}

func TestUpdateQuantity_RepricesLine(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", domain.Product{ID: 1, ListPrice: 100, SpecialPrice: 90}, 1)
	require.NoError(t, err)

	cart, summary, err := sut.UpdateQuantity(ctx, "123", 1, 4)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 4, cart.Lines[0].Quantity)
	assert.InDelta(t, 40.0, cart.Lines[0].Discount, 1e-9) // discount scales with quantity
	assert.InDelta(t, 360.0, cart.Lines[0].Subtotal, 1e-9)
	requireSummaryInvariant(t, summary)
}

func TestUpdateQuantity_SameQuantityIsIdempotent(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, before, err := sut.AddItem(ctx, "123", domain.Product{ID: 1, ListPrice: 100, SpecialPrice: 75}, 3)
	require.NoError(t, err)

	_, after, err := sut.UpdateQuantity(ctx, "123", 1, 3)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestUpdateQuantity_ZeroDelegatesToRemove(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", fullPrice(1, 100), 2)
	require.NoError(t, err)
	_, _, err = sut.AddItem(ctx, "123", fullPrice(2, 30), 1)
	require.NoError(t, err)

	cart, summary, err := sut.UpdateQuantity(ctx, "123", 1, 0)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].ProductID)
	assert.InDelta(t, 30.0, summary.Total, 1e-9)
}

func TestUpdateQuantity_UnknownProductLeavesCartUntouched(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, before, err := sut.AddItem(ctx, "123", fullPrice(1, 100), 1)
	require.NoError(t, err)

	cart, after, err := sut.UpdateQuantity(ctx, "123", 999, 5)
	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, before, after)
}

func TestRemoveItem_FiltersLineAndRecomputes(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", fullPrice(1, 100), 1)
	require.NoError(t, err)
	_, _, err = sut.AddItem(ctx, "123", fullPrice(2, 40), 2)
	require.NoError(t, err)

	cart, summary, err := sut.RemoveItem(ctx, "123", 1)
	require.NoError(t, err)

	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].ProductID)
	assert.InDelta(t, 80.0, summary.Total, 1e-9)
	assert.Equal(t, 2, summary.ItemCount)
	requireSummaryInvariant(t, summary)
}

func TestClearCart_EmptiesLines(t *testing.T) {
	repo := &mockRepository{}
	sut := NewEngine(repo)
	ctx := context.Background()

	_, _, err := sut.AddItem(ctx, "123", fullPrice(1, 100), 1)
	require.NoError(t, err)

	require.NoError(t, sut.ClearCart(ctx, "123"))

	cart, summary, err := sut.GetCart(ctx, "123")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
	assert.InDelta(t, 0.0, summary.Total, 1e-9)
}

func TestClearCart_MissingCartIsNoError(t *testing.T) {
	sut := NewEngine(&mockRepository{})
	require.NoError(t, sut.ClearCart(context.Background(), "nobody"))
}

func TestGetCart_RehydrationReprices(t *testing.T) {
	// Persisted line carries stale figures; the embedded product snapshot
	// says the price dropped since.
	repo := &mockRepository{
		cart: &domain.Cart{
			OwnerID: "123",
			Lines: []domain.CartLine{{
				ProductID: 1,
				Quantity:  2,
				UnitPrice: 100, // stale
				Subtotal:  200, // stale
				Product:   domain.Product{ID: 1, ListPrice: 100, SpecialPrice: 60},
			}},
		},
	}
	sut := NewEngine(repo)

	cart, summary, err := sut.GetCart(context.Background(), "123")
	require.NoError(t, err)

	assert.InDelta(t, 60.0, cart.Lines[0].UnitPrice, 1e-9)
	assert.InDelta(t, 120.0, cart.Lines[0].Subtotal, 1e-9)
	assert.InDelta(t, 80.0, cart.Lines[0].Discount, 1e-9)
	assert.InDelta(t, 120.0, summary.Total, 1e-9)
	requireSummaryInvariant(t, summary)
}

func TestGetCart_PersistRoundTripReproducesSummary(t *testing.T) {
	repo := &mockRepository{}
	sut := NewEngine(repo)
	ctx := context.Background()

	_, written, err := sut.AddItem(ctx, "123", domain.Product{ID: 1, ListPrice: 100, SpecialPrice: 85}, 3)
	require.NoError(t, err)

	// Unchanged product pricing: a fresh engine over the same store must
	// reproduce the identical summary.
	_, reloaded, err := NewEngine(repo).GetCart(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, written, reloaded)
}

func TestGetCart_RepoError(t *testing.T) {
	sut := NewEngine(&mockRepository{err: fmt.Errorf("database error")})
	_, _, err := sut.GetCart(context.Background(), "123")
	require.ErrorContains(t, err, "database error")
}

func TestDiscountPercent(t *testing.T) {
	line := PriceLine(domain.Product{ID: 1, ListPrice: 100, SpecialPrice: 80}, 2)
	assert.InDelta(t, 20.0, DiscountPercent(line), 1e-9)

	free := PriceLine(domain.Product{ID: 2}, 1)
	assert.InDelta(t, 0.0, DiscountPercent(free), 1e-9)
}

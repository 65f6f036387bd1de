package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxshopweb/checkout/internal/checkout"
	"github.com/maxshopweb/checkout/internal/domain"
)

type mockSessions struct {
	mu       sync.Mutex
	sess     *domain.CheckoutSession
	inFlight bool
	resets   int
	ends     int
	loadErr  error
}

func (m *mockSessions) Load(_ context.Context, _ string) (*domain.CheckoutSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.sess, nil
}

func (m *mockSessions) BeginSubmission(_ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return checkout.ErrSubmissionInFlight
	}
	m.inFlight = true
	return nil
}

func (m *mockSessions) EndSubmission(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	m.ends++
}

func (m *mockSessions) Reset(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight = false
	m.resets++
	return nil
}

type mockCarts struct {
	mu     sync.Mutex
	cart   *domain.Cart
	sum    domain.CartSummary
	clears int
	getErr error
}

func (m *mockCarts) GetCart(_ context.Context, _ string) (*domain.Cart, domain.CartSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, domain.CartSummary{}, m.getErr
	}
	return m.cart, m.sum, nil
}

func (m *mockCarts) ClearCart(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	return nil
}

type mockCreator struct {
	mu      sync.Mutex
	created []*domain.Order
	err     error
}

func (m *mockCreator) CreateOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

type mockPublisher struct {
	mu        sync.Mutex
	published []*domain.Order
	err       error
}

func (m *mockPublisher) PublishOrderCreated(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, o)
	return nil
}

func readySession() *domain.CheckoutSession {
	cost := 1450.0
	sess := domain.NewCheckoutSession("123")
	sess.CurrentStep = domain.StepPayment
	sess.PersonalData = &domain.PersonalData{
		FirstName:      "Ana",
		Email:          "ana@example.com",
		DocumentType:   "DNI",
		DocumentNumber: "30111222",
	}
	sess.DeliveryType = domain.DeliveryTypeShip
	sess.ShippingData = &domain.ShippingData{
		Street:     "San Martín",
		Number:     "100",
		City:       "Rosario",
		Province:   "Santa Fe",
		PostalCode: "2000",
	}
	sess.PaymentMethod = "credit_card"
	sess.ShippingCost = &cost
	return sess
}

func filledCart() (*domain.Cart, domain.CartSummary) {
	c := &domain.Cart{
		OwnerID: "123",
		Lines: []domain.CartLine{
			{ProductID: 7, Quantity: 2, UnitPrice: 80, Discount: 40, Subtotal: 160},
		},
	}
	sum := domain.CartSummary{Subtotal: 200, Discounts: 40, Total: 160, ItemCount: 2}
	return c, sum
}

func newFixture() (*Coordinator, *mockSessions, *mockCarts, *mockCreator, *mockPublisher) {
	c, sum := filledCart()
	sessions := &mockSessions{sess: readySession()}
	carts := &mockCarts{cart: c, sum: sum}
	creator := &mockCreator{}
	publisher := &mockPublisher{}
	return NewCoordinator(sessions, carts, creator, publisher), sessions, carts, creator, publisher
}

func TestSubmit_Success(t *testing.T) {
	coord, sessions, carts, creator, publisher := newFixture()

	o, err := coord.Submit(context.Background(), "123", "cust-9")
	require.NoError(t, err)

	require.Len(t, creator.created, 1)
	assert.Equal(t, o, creator.created[0])
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "123", o.OwnerID)
	assert.Equal(t, "cust-9", o.CustomerID)
	assert.Equal(t, "credit_card", o.PaymentMethod)
	assert.Equal(t, "ARS", o.Currency)
	assert.Equal(t, 1450.0, o.ShippingCost)
	// subtotal 200 - discounts 40 + shipping 1450
	assert.InDelta(t, 1610.0, o.TotalAmount, 1e-9)
	require.Len(t, o.Items, 1)
	assert.Equal(t, int64(7), o.Items[0].ProductID)

	assert.Len(t, publisher.published, 1)
	assert.Equal(t, 1, carts.clears)
	assert.Equal(t, 1, sessions.resets)
	assert.False(t, sessions.inFlight)
}

func TestSubmit_ObservationComposedWhenNoSavedAddress(t *testing.T) {
	coord, sessions, _, creator, _ := newFixture()
	sessions.sess.ShippingData.Floor = "2"
	sessions.sess.ShippingData.Apartment = "B"

	_, err := coord.Submit(context.Background(), "123", "")
	require.NoError(t, err)

	o := creator.created[0]
	assert.Equal(t, "San Martín 100, Piso 2, Depto B, Rosario, Santa Fe, CP 2000", o.Observation)
	assert.Empty(t, o.AddressID)
}

func TestSubmit_SavedAddressUsedExclusively(t *testing.T) {
	coord, sessions, _, creator, _ := newFixture()
	sessions.sess.SelectedAddressID = "addr-9"

	_, err := coord.Submit(context.Background(), "123", "")
	require.NoError(t, err)

	o := creator.created[0]
	assert.Equal(t, "addr-9", o.AddressID)
	assert.Empty(t, o.Observation)
}

func TestSubmit_UnresolvedShippingCostCollapsesToZero(t *testing.T) {
	coord, sessions, _, creator, _ := newFixture()
	sessions.sess.ShippingCost = nil

	_, err := coord.Submit(context.Background(), "123", "")
	require.NoError(t, err)

	assert.Zero(t, creator.created[0].ShippingCost)
	assert.InDelta(t, 160.0, creator.created[0].TotalAmount, 1e-9)
}

func TestSubmit_MissingPaymentMethodBlocksBeforeAnyCall(t *testing.T) {
	coord, sessions, carts, creator, _ := newFixture()
	sessions.sess.PaymentMethod = ""

	_, err := coord.Submit(context.Background(), "123", "")

	assert.ErrorIs(t, err, ErrPaymentMethodRequired)
	assert.Empty(t, creator.created)
	assert.Zero(t, carts.clears)
	assert.Zero(t, sessions.resets)
	assert.False(t, sessions.inFlight, "busy flag cleared on error")
}

func TestSubmit_DuplicateFireRejected(t *testing.T) {
	coord, sessions, _, _, _ := newFixture()
	sessions.inFlight = true

	_, err := coord.Submit(context.Background(), "123", "")
	assert.ErrorIs(t, err, checkout.ErrSubmissionInFlight)
}

func TestSubmit_AuthExpiryPassesThroughAndKeepsState(t *testing.T) {
	coord, sessions, carts, creator, _ := newFixture()
	creator.err = &domain.AuthExpiredError{ReturnStep: domain.StepPayment}

	_, err := coord.Submit(context.Background(), "123", "")

	var authErr *domain.AuthExpiredError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, domain.StepPayment, authErr.ReturnStep)
	assert.Zero(t, carts.clears)
	assert.Zero(t, sessions.resets)
	assert.False(t, sessions.inFlight)
}

func TestSubmit_ValidationErrorPassesThrough(t *testing.T) {
	coord, _, carts, creator, _ := newFixture()
	creator.err = domain.NewValidationError("document_number", "invalid document")

	_, err := coord.Submit(context.Background(), "123", "")

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "document_number", vErr.Field)
	assert.Zero(t, carts.clears)
}

func TestSubmit_UnknownFailureIsRetryable(t *testing.T) {
	coord, sessions, carts, creator, publisher := newFixture()
	creator.err = errors.New("connection reset")

	_, err := coord.Submit(context.Background(), "123", "")

	var rErr *RetryableError
	require.ErrorAs(t, err, &rErr)
	assert.Empty(t, publisher.published)
	assert.Zero(t, carts.clears)
	assert.Zero(t, sessions.resets)
	assert.False(t, sessions.inFlight)
}

func TestSubmit_PublishFailureDoesNotFailTheOrder(t *testing.T) {
	coord, sessions, carts, creator, publisher := newFixture()
	publisher.err = errors.New("broker down")

	o, err := coord.Submit(context.Background(), "123", "")

	require.NoError(t, err)
	assert.NotNil(t, o)
	assert.Len(t, creator.created, 1)
	assert.Equal(t, 1, carts.clears)
	assert.Equal(t, 1, sessions.resets)
}

func TestSubmit_EmptyCartRejected(t *testing.T) {
	coord, _, carts, creator, _ := newFixture()
	carts.cart = &domain.Cart{OwnerID: "123"}
	carts.sum = domain.CartSummary{}

	_, err := coord.Submit(context.Background(), "123", "")

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cart", vErr.Field)
	assert.Empty(t, creator.created)
}

func TestClassify_DuplicateStaysDistinct(t *testing.T) {
	assert.ErrorIs(t, Classify(ErrDuplicateOrder), ErrDuplicateOrder)

	var rErr *RetryableError
	assert.NotErrorAs(t, Classify(ErrDuplicateOrder), &rErr)
}

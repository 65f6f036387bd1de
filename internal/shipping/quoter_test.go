package shipping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxshopweb/checkout/internal/domain"
)

type mockRateClient struct {
	m       sync.Mutex
	calls   int
	lastReq RateRequest
	resp    *RateResponse
	err     error
	block   chan struct{} // when set, Quote waits until closed
}

func (m *mockRateClient) Quote(_ context.Context, req RateRequest) (*RateResponse, error) {
	m.m.Lock()
	m.calls++
	m.lastReq = req
	block := m.block
	m.m.Unlock()

	if block != nil {
		<-block
	}

	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *mockRateClient) callCount() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.calls
}

func (m *mockRateClient) lastRequest() RateRequest {
	m.m.Lock()
	defer m.m.Unlock()
	return m.lastReq
}

type resultRecorder struct {
	m       sync.Mutex
	results []Result
}

func (r *resultRecorder) record(res Result) {
	r.m.Lock()
	defer r.m.Unlock()
	r.results = append(r.results, res)
}

func (r *resultRecorder) last() (Result, bool) {
	r.m.Lock()
	defer r.m.Unlock()
	if len(r.results) == 0 {
		return Result{}, false
	}
	return r.results[len(r.results)-1], true
}

func (r *resultRecorder) count() int {
	r.m.Lock()
	defer r.m.Unlock()
	return len(r.results)
}

func testConfig() Config {
	return Config{
		ContractCode:   "300",
		ClientCode:     "9900",
		Debounce:       20 * time.Millisecond,
		RequestTimeout: time.Second,
	}
}

func shipInput(postalCode string) QuoteInput {
	return QuoteInput{
		OwnerID:          "123",
		DeliveryType:     domain.DeliveryTypeShip,
		PostalCode:       postalCode,
		City:             "Rosario",
		Province:         "Santa Fe",
		Units:            2,
		Subtotal:         500,
		IdentityResolved: true,
	}
}

func TestQuoter_PickupShortCircuit(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 100}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	input := shipInput("2000")
	input.DeliveryType = domain.DeliveryTypePickup
	sut.Update(input)

	// Cost 0 committed synchronously, no network interaction.
	res, ok := rec.last()
	require.True(t, ok)
	require.NotNil(t, res.Cost)
	assert.InDelta(t, 0.0, *res.Cost, 1e-9)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, client.callCount())
}

func TestQuoter_InvalidPostalCodeNeverFires(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 100}}
	sut := NewQuoter(client, nil, testConfig(), nil)

	for _, cp := range []string{"", "12", "12345", "20A0", "abcd"} {
		sut.Update(shipInput(cp))
	}

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, client.callCount())
}

func TestQuoter_EmptyCartOrUnresolvedIdentityNeverFires(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 100}}
	sut := NewQuoter(client, nil, testConfig(), nil)

	empty := shipInput("2000")
	empty.Units = 0
	sut.Update(empty)

	anon := shipInput("2000")
	anon.IdentityResolved = false
	sut.Update(anon)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, client.callCount())
}

func TestQuoter_ProactiveModeRequiresCityAndProvince(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 100}}
	sut := NewQuoter(client, nil, testConfig(), nil)

	input := shipInput("2000")
	input.City = ""
	sut.Update(input)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 0, client.callCount())
}

func TestQuoter_LateModeWaivesCityAndProvince(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	input := shipInput("2000")
	input.City = ""
	input.Province = ""
	input.Late = true
	sut.Update(input)

	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, client.callCount())
}

func TestQuoter_DebounceCollapsesRapidEdits(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	// Five rapid postal-code edits inside the debounce window.
	for _, cp := range []string{"1000", "1001", "1002", "1003", "2000"} {
		sut.Update(shipInput(cp))
	}

	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)

	// Only the timer that survived the quiet window fired.
	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, "2000", client.lastRequest().PostalCode)
}

func TestQuoter_RequestParametersDerivedFromCart(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	input := shipInput("2000")
	input.Units = 4
	input.Subtotal = 1234.5
	sut.Update(input)

	require.Eventually(t, func() bool {
		return client.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	req := client.lastRequest()
	assert.Equal(t, "300", req.ContractCode)
	assert.Equal(t, "9900", req.ClientCode)
	assert.InDelta(t, 0.5, req.Volume, 1e-9) // 0.125 per unit
	assert.InDelta(t, 4.0, req.Weight, 1e-9) // 1 per unit
	assert.InDelta(t, 1234.5, req.DeclaredValue, 1e-9)
}

func TestQuoter_CachedQuoteReusedForSamePostalCode(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)

	// Same postal code again: reused, not re-requested.
	sut.Update(shipInput("2000"))
	res, ok := rec.last()
	require.True(t, ok)
	require.NotNil(t, res.Cost)
	assert.InDelta(t, 450.0, *res.Cost, 1e-9)
	assert.Equal(t, 1, client.callCount())
}

func TestQuoter_PostalCodeChangeInvalidatesQuote(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)

	// New postal code: the cached quote is invalidated first and the cost
	// becomes unresolved until the new request lands.
	sut.Update(shipInput("1000"))
	quote, pending := sut.Current("123")
	assert.Nil(t, quote)
	assert.True(t, pending)

	require.Eventually(t, func() bool {
		return client.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestQuoter_FailureClearsCostToNil(t *testing.T) {
	client := &mockRateClient{err: fmt.Errorf("carrier down")}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))

	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Err != nil
	}, time.Second, 5*time.Millisecond)

	res, _ := rec.last()
	assert.Nil(t, res.Cost) // nil, not 0

	quote, pending := sut.Current("123")
	assert.Nil(t, quote)
	assert.False(t, pending)
}

func TestQuoter_RetriesOnNextChangeAfterFailure(t *testing.T) {
	client := &mockRateClient{err: fmt.Errorf("carrier down")}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		return client.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	client.m.Lock()
	client.err = nil
	client.resp = &RateResponse{Price: 320, Currency: "ARS"}
	client.m.Unlock()

	// Next relevant change re-attempts.
	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)

	res, _ := rec.last()
	assert.InDelta(t, 320.0, *res.Cost, 1e-9)
}

func TestQuoter_StaleResponseDiscarded(t *testing.T) {
	block := make(chan struct{})
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}, block: block}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		return client.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	// The postal code moves on while the request is in flight. The new value
	// fails validation so no second request is scheduled.
	sut.Update(shipInput("12345"))
	before := rec.count()

	close(block)
	time.Sleep(100 * time.Millisecond)

	// The in-flight response resolved for a superseded key and was discarded.
	assert.Equal(t, before, rec.count())
	quote, _ := sut.Current("123")
	assert.Nil(t, quote)
}

func TestQuoter_SwitchToPickupDiscardsInFlightResponse(t *testing.T) {
	block := make(chan struct{})
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}, block: block}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		return client.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	// The buyer switches to pickup while the carrier request is in flight.
	pickup := shipInput("2000")
	pickup.DeliveryType = domain.DeliveryTypePickup
	sut.Update(pickup)

	res, ok := rec.last()
	require.True(t, ok)
	require.NotNil(t, res.Cost)
	assert.InDelta(t, 0.0, *res.Cost, 1e-9)
	before := rec.count()

	close(block)
	time.Sleep(100 * time.Millisecond)

	// The ship response resolved for a superseded request: discarded, the
	// pickup cost of 0 stands.
	assert.Equal(t, before, rec.count())
	quote, pending := sut.Current("123")
	assert.Nil(t, quote)
	assert.False(t, pending)
}

func TestQuoter_ResetDropsState(t *testing.T) {
	client := &mockRateClient{resp: &RateResponse{Price: 450, Currency: "ARS"}}
	rec := &resultRecorder{}
	sut := NewQuoter(client, nil, testConfig(), rec.record)

	sut.Update(shipInput("2000"))
	require.Eventually(t, func() bool {
		res, ok := rec.last()
		return ok && res.Cost != nil
	}, time.Second, 5*time.Millisecond)

	sut.Reset("123")
	quote, pending := sut.Current("123")
	assert.Nil(t, quote)
	assert.False(t, pending)
}

func TestValidPostalCode(t *testing.T) {
	assert.True(t, ValidPostalCode("2000"))
	assert.True(t, ValidPostalCode("0001"))
	assert.False(t, ValidPostalCode("200"))
	assert.False(t, ValidPostalCode("20000"))
	assert.False(t, ValidPostalCode("2a00"))
	assert.False(t, ValidPostalCode(""))
}

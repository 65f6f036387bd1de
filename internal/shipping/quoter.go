package shipping

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/maxshopweb/checkout/internal/domain"
)

const (
	// DefaultDebounce is the quiet window after the last relevant input
	// change before a quote request fires.
	DefaultDebounce = 800 * time.Millisecond

	defaultRequestTimeout = 10 * time.Second

	// Fixed per-unit estimates used to derive the rate request.
	volumePerUnit = 0.125
	weightPerUnit = 1.0
)

// Destination postal codes are exactly 4 digits.
var postalCodePattern = regexp.MustCompile(`^\d{4}$`)

func ValidPostalCode(cp string) bool {
	return postalCodePattern.MatchString(cp)
}

// QuoteInput carries everything the quoter needs to decide whether and what
// to request. Late mode (final step) waives the city/province requirement.
type QuoteInput struct {
	OwnerID          string
	DeliveryType     domain.DeliveryType
	PostalCode       string
	City             string
	Province         string
	Units            int
	Subtotal         float64
	IdentityResolved bool
	Late             bool
}

// Result is pushed to the registered callback whenever the resolved cost
// changes. Cost nil means unresolved: the quote failed or was invalidated;
// checkout stays usable without a firm price.
type Result struct {
	OwnerID string
	Cost    *float64
	Quote   *domain.ShippingQuote
	Err     error
}

type Config struct {
	ContractCode   string
	ClientCode     string
	Debounce       time.Duration
	RequestTimeout time.Duration
}

// Quoter owns the asynchronous quote pipeline: debounced scheduling, a
// per-postal-code cache, singleflight deduplication of in-flight requests
// and stale-response discarding. Requests are not cancelable mid-flight; a
// response is committed only if the postal code it was scheduled for is
// still the current one.
type Quoter struct {
	client   RateClient
	cache    QuoteCache // optional mirror, may be nil
	cfg      Config
	onResult func(Result)
	sfg      singleflight.Group

	mu     sync.Mutex
	states map[string]*quoteState
}

type quoteState struct {
	postalCode string
	quote      *domain.ShippingQuote
	timer      *time.Timer
	pending    bool
}

func NewQuoter(client RateClient, cache QuoteCache, cfg Config, onResult func(Result)) *Quoter {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if onResult == nil {
		onResult = func(Result) {}
	}
	return &Quoter{
		client:   client,
		cache:    cache,
		cfg:      cfg,
		onResult: onResult,
		states:   make(map[string]*quoteState),
	}
}

// state must be called with q.mu held.
func (q *Quoter) state(ownerID string) *quoteState {
	st, ok := q.states[ownerID]
	if !ok {
		st = &quoteState{}
		q.states[ownerID] = st
	}
	return st
}

// Update is invoked on every relevant field change. It reschedules the single
// pending timer; only the timer that survives the quiet window fires.
func (q *Quoter) Update(input QuoteInput) {
	q.mu.Lock()
	st := q.state(input.OwnerID)

	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.pending = false

	// Pickup short-circuit: cost 0, no network interaction. Clearing the
	// postal code marks any ship request still in flight as stale, so its
	// response is discarded instead of overwriting the pickup cost.
	if input.DeliveryType == domain.DeliveryTypePickup {
		st.postalCode = ""
		st.quote = nil
		q.mu.Unlock()
		zero := 0.0
		q.onResult(Result{OwnerID: input.OwnerID, Cost: &zero})
		return
	}

	// A postal code change invalidates the cached quote before anything else.
	changed := input.PostalCode != st.postalCode
	if changed {
		st.postalCode = input.PostalCode
		st.quote = nil
	}

	if !shouldRequest(input) {
		q.mu.Unlock()
		if changed {
			q.onResult(Result{OwnerID: input.OwnerID, Cost: nil})
		}
		return
	}

	// A quote already computed for the current postal code is reused.
	if st.quote != nil && st.quote.PostalCode == input.PostalCode {
		quote := st.quote
		q.mu.Unlock()
		q.onResult(Result{OwnerID: input.OwnerID, Cost: &quote.Price, Quote: quote})
		return
	}

	key := input.PostalCode
	st.pending = true
	st.timer = time.AfterFunc(q.cfg.Debounce, func() {
		q.fire(input, key)
	})
	q.mu.Unlock()

	if changed {
		q.onResult(Result{OwnerID: input.OwnerID, Cost: nil})
	}
}

// Current reports the quote state for the owner: the firm quote if one is
// held for the current postal code, and whether a request is pending.
func (q *Quoter) Current(ownerID string) (*domain.ShippingQuote, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.states[ownerID]
	if !ok {
		return nil, false
	}
	return st.quote, st.pending
}

// Reset drops all quote state for the owner.
func (q *Quoter) Reset(ownerID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if st, ok := q.states[ownerID]; ok && st.timer != nil {
		st.timer.Stop()
	}
	delete(q.states, ownerID)
}

func shouldRequest(input QuoteInput) bool {
	if input.DeliveryType != domain.DeliveryTypeShip {
		return false
	}
	if !ValidPostalCode(input.PostalCode) {
		return false
	}
	if input.Units <= 0 || !input.IdentityResolved {
		return false
	}
	if !input.Late && (input.City == "" || input.Province == "") {
		return false
	}
	return true
}

func (q *Quoter) fire(input QuoteInput, key string) {
	v, err, _ := q.sfg.Do(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.RequestTimeout)
		defer cancel()

		if q.cache != nil {
			cached, cacheErr := q.cache.Get(ctx, key)
			if cacheErr == nil {
				return cached, nil
			}
			if !errors.Is(cacheErr, ErrCacheMiss) {
				log.WithError(cacheErr).Warn("quote cache get failed")
			}
		}

		units := float64(input.Units)
		resp, reqErr := q.client.Quote(ctx, RateRequest{
			PostalCode:    key,
			ContractCode:  q.cfg.ContractCode,
			ClientCode:    q.cfg.ClientCode,
			Volume:        volumePerUnit * units,
			Weight:        weightPerUnit * units,
			DeclaredValue: input.Subtotal,
		})
		if reqErr != nil {
			return nil, reqErr
		}

		quote := &domain.ShippingQuote{
			PostalCode: key,
			Price:      resp.Price,
			Currency:   resp.Currency,
			QuotedAt:   time.Now(),
		}

		if q.cache != nil {
			go func() {
				if setErr := q.cache.Set(context.Background(), quote); setErr != nil {
					log.WithError(setErr).Warn("quote cache set failed")
				}
			}()
		}

		return quote, nil
	})

	q.mu.Lock()
	st := q.state(input.OwnerID)

	// The request captured the key it was scheduled for; if the current
	// postal code moved on since, the result is stale and is discarded.
	// A newer pending request, if any, is left untouched.
	if st.postalCode != key {
		q.mu.Unlock()
		return
	}
	st.pending = false

	if err != nil {
		st.quote = nil
		q.mu.Unlock()
		log.WithError(err).WithField("postal_code", key).Warn("shipping quote failed, cost unresolved")
		if q.cache != nil {
			if delErr := q.cache.Delete(context.Background(), key); delErr != nil {
				log.WithError(delErr).Warn("quote cache delete failed")
			}
		}
		q.onResult(Result{OwnerID: input.OwnerID, Cost: nil, Err: err})
		return
	}

	quote := v.(*domain.ShippingQuote)
	st.quote = quote
	q.mu.Unlock()
	q.onResult(Result{OwnerID: input.OwnerID, Cost: &quote.Price, Quote: quote})
}

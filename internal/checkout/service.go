package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/maxshopweb/checkout/internal/domain"
	"github.com/maxshopweb/checkout/internal/shipping"
)

var (
	ErrEmptyCart           = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition   = errors.New("illegal transition of checkout step")
	ErrSubmissionInFlight  = errors.New("order submission already in flight")
	ErrUnknownDeliveryType = errors.New("unknown delivery type")
)

// CartReader is the read-only cart snapshot the state machine depends on.
type CartReader interface {
	GetCart(ctx context.Context, ownerID string) (*domain.Cart, domain.CartSummary, error)
}

// Quoter is the slice of the shipping quote pipeline the state machine
// drives. Implemented by *shipping.Quoter.
type Quoter interface {
	Update(input shipping.QuoteInput)
	Current(ownerID string) (*domain.ShippingQuote, bool)
	Reset(ownerID string)
}

// Service owns step progression, per-step captured data and persistence of
// the checkout session. Mutations for one owner are serialized on a
// per-owner lock. The IsCreatingOrder flag lives only in this process and is
// reattached to every loaded session.
type Service struct {
	store  SessionStore
	carts  CartReader
	quoter Quoter

	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	inFlight map[string]bool
}

func NewService(store SessionStore, carts CartReader) *Service {
	return &Service{
		store:    store,
		carts:    carts,
		locks:    make(map[string]*sync.Mutex),
		inFlight: make(map[string]bool),
	}
}

// AttachQuoter wires the shipping quote pipeline in after construction; the
// quoter's result callback points back at this service, so the two cannot be
// built in one step.
func (s *Service) AttachQuoter(q Quoter) {
	s.quoter = q
}

func (s *Service) ownerLock(ownerID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[ownerID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[ownerID] = l
	}
	return l
}

func (s *Service) submitting(ownerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[ownerID]
}

// Load returns the owner's session, creating the initial one at first
// checkout entry.
func (s *Service) Load(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()
	return s.load(ctx, ownerID)
}

// load must be called with the owner lock held.
func (s *Service) load(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	sess, err := s.store.Get(ctx, ownerID)
	if errors.Is(err, ErrSessionNotFound) {
		sess = domain.NewCheckoutSession(ownerID)
		if saveErr := s.store.Save(ctx, sess); saveErr != nil {
			return nil, fmt.Errorf("persist new session: %w", saveErr)
		}
	} else if err != nil {
		return nil, err
	}

	sess.IsCreatingOrder = s.submitting(ownerID)
	return sess, nil
}

// update serializes a read-modify-write of the owner's session. The mutation
// function must not call back into the service.
func (s *Service) update(ctx context.Context, ownerID string, fn func(*domain.CheckoutSession) error) (*domain.CheckoutSession, error) {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.load(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return sess, nil
}

// SetCurrentStep navigates. Backward navigation is unguarded; moving forward
// requires every earlier step to have been explicitly completed.
func (s *Service) SetCurrentStep(ctx context.Context, ownerID string, step int) (*domain.CheckoutSession, error) {
	if step < domain.FirstStep || step > domain.LastStep {
		return nil, ErrIllegalTransition
	}
	return s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		if step > sess.CurrentStep {
			for prev := domain.FirstStep; prev < step; prev++ {
				if !sess.StepCompleted(prev) {
					return ErrIllegalTransition
				}
			}
		}
		sess.CurrentStep = step
		return nil
	})
}

// CompleteCartReview completes step 1. The only validation is a non-empty
// cart.
func (s *Service) CompleteCartReview(ctx context.Context, ownerID string) (*domain.CheckoutSession, error) {
	c, _, err := s.carts.GetCart(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	return s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		sess.CompletedSteps[domain.StepCart] = true
		sess.CurrentStep = domain.StepPersonal
		return nil
	})
}

// CompletePersonal validates and captures personal/contact and billing data,
// completing step 2.
func (s *Service) CompletePersonal(ctx context.Context, ownerID string, pd domain.PersonalData) (*domain.CheckoutSession, error) {
	if err := validatePersonal(pd); err != nil {
		return nil, err
	}
	return s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		sess.PersonalData = &pd
		sess.CompletedSteps[domain.StepPersonal] = true
		sess.CurrentStep = domain.StepDelivery
		return nil
	})
}

// DeliveryDraft is the step-3 working state: delivery method plus either a
// saved address id or loose address fields.
type DeliveryDraft struct {
	DeliveryType      domain.DeliveryType
	ShippingData      *domain.ShippingData
	SelectedAddressID string
}

// UpdateDelivery captures the draft without completing the step and feeds
// the shipping quote pipeline (proactive mode). identityResolved is supplied
// by the caller, which owns the identity collaborator.
func (s *Service) UpdateDelivery(ctx context.Context, ownerID string, draft DeliveryDraft, identityResolved bool) (*domain.CheckoutSession, error) {
	if draft.DeliveryType != domain.DeliveryTypeShip &&
		draft.DeliveryType != domain.DeliveryTypePickup &&
		draft.DeliveryType != domain.DeliveryTypeNone {
		return nil, ErrUnknownDeliveryType
	}

	sess, err := s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		sess.DeliveryType = draft.DeliveryType
		sess.ShippingData = draft.ShippingData
		sess.SelectedAddressID = draft.SelectedAddressID
		if draft.DeliveryType == domain.DeliveryTypePickup {
			// Synchronous: pickup costs nothing, no quote round-trip.
			zero := 0.0
			sess.ShippingCost = &zero
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.requestQuote(ctx, sess, identityResolved, false)
	return sess, nil
}

// CompleteDelivery validates the captured delivery data and completes step 3.
func (s *Service) CompleteDelivery(ctx context.Context, ownerID string, identityResolved bool) (*domain.CheckoutSession, error) {
	sess, err := s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		if err := validateDelivery(sess); err != nil {
			return err
		}
		sess.CompletedSteps[domain.StepDelivery] = true
		sess.CurrentStep = domain.StepPayment
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Final step entry: late mode needs only the postal code.
	s.requestQuote(ctx, sess, identityResolved, true)
	return sess, nil
}

func (s *Service) SetPaymentMethod(ctx context.Context, ownerID, method string) (*domain.CheckoutSession, error) {
	if method == "" {
		return nil, domain.NewValidationError("payment_method", "payment method required")
	}
	return s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		sess.PaymentMethod = method
		return nil
	})
}

// MarkGuest flags the session as guest-owned once an ephemeral identity is
// established.
func (s *Service) MarkGuest(ctx context.Context, ownerID string, guest bool) (*domain.CheckoutSession, error) {
	return s.update(ctx, ownerID, func(sess *domain.CheckoutSession) error {
		sess.IsGuest = guest
		return nil
	})
}

// Reset restores the initial state; invoked after successful order creation
// or explicit abandonment.
func (s *Service) Reset(ctx context.Context, ownerID string) error {
	lock := s.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.store.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if s.quoter != nil {
		s.quoter.Reset(ownerID)
	}

	s.mu.Lock()
	delete(s.inFlight, ownerID)
	s.mu.Unlock()
	return nil
}

// BeginSubmission sets the process-local busy flag guarding order creation.
func (s *Service) BeginSubmission(ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[ownerID] {
		return ErrSubmissionInFlight
	}
	s.inFlight[ownerID] = true
	return nil
}

func (s *Service) EndSubmission(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, ownerID)
}

// ApplyQuoteResult is the quoter's result callback: it commits the resolved
// (or cleared) shipping cost to the session.
func (s *Service) ApplyQuoteResult(res shipping.Result) {
	ctx := context.Background()
	_, err := s.update(ctx, res.OwnerID, func(sess *domain.CheckoutSession) error {
		// A carrier quote that raced a switch to pickup is stale; pickup
		// cost is always 0.
		if sess.DeliveryType == domain.DeliveryTypePickup && res.Quote != nil {
			return nil
		}
		if res.Cost == nil {
			sess.ShippingCost = nil
			return nil
		}
		cost := *res.Cost
		sess.ShippingCost = &cost
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("owner_id", res.OwnerID).Error("apply quote result failed")
	}
}

// requestQuote feeds the quote pipeline from the current session and cart
// state. Called outside the owner lock: the quoter may deliver results
// synchronously, and those re-enter the service.
func (s *Service) requestQuote(ctx context.Context, sess *domain.CheckoutSession, identityResolved, late bool) {
	if s.quoter == nil {
		return
	}

	input := shipping.QuoteInput{
		OwnerID:          sess.OwnerID,
		DeliveryType:     sess.DeliveryType,
		IdentityResolved: identityResolved,
		Late:             late,
	}
	if sess.ShippingData != nil {
		input.PostalCode = sess.ShippingData.PostalCode
		input.City = sess.ShippingData.City
		input.Province = sess.ShippingData.Province
	}

	c, summary, err := s.carts.GetCart(ctx, sess.OwnerID)
	if err != nil {
		log.WithError(err).WithField("owner_id", sess.OwnerID).Warn("cart unavailable for quote request")
	} else {
		input.Units = c.TotalUnits()
		input.Subtotal = summary.Subtotal
	}

	s.quoter.Update(input)
}

func validatePersonal(pd domain.PersonalData) error {
	switch {
	case pd.FirstName == "":
		return domain.NewValidationError("first_name", "first name required")
	case pd.Email == "":
		return domain.NewValidationError("email", "email required")
	case pd.DocumentType == "":
		return domain.NewValidationError("document_type", "document type required")
	case pd.DocumentNumber == "":
		return domain.NewValidationError("document_number", "document number required")
	}
	return nil
}

func validateDelivery(sess *domain.CheckoutSession) error {
	switch sess.DeliveryType {
	case domain.DeliveryTypePickup:
		// Pickup needs no address at all.
		return nil
	case domain.DeliveryTypeShip:
		if sess.SelectedAddressID != "" {
			return nil
		}
		sd := sess.ShippingData
		if sd == nil {
			return domain.NewValidationError("shipping_data", "delivery address required")
		}
		switch {
		case sd.Street == "":
			return domain.NewValidationError("street", "street required")
		case sd.Number == "":
			return domain.NewValidationError("number", "street number required")
		case sd.City == "":
			return domain.NewValidationError("city", "city required")
		case sd.Province == "":
			return domain.NewValidationError("province", "province required")
		case !shipping.ValidPostalCode(sd.PostalCode):
			return domain.NewValidationError("postal_code", "postal code must be 4 digits")
		}
		return nil
	default:
		return domain.NewValidationError("delivery_type", "delivery method required")
	}
}

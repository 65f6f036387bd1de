package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/maxshopweb/checkout/internal/checkout"
	"github.com/maxshopweb/checkout/internal/domain"
)

// CheckoutService is the state machine surface the handlers call. Implemented
// by *checkout.Service.
type CheckoutService interface {
	Load(ctx context.Context, ownerID string) (*domain.CheckoutSession, error)
	SetCurrentStep(ctx context.Context, ownerID string, step int) (*domain.CheckoutSession, error)
	CompleteCartReview(ctx context.Context, ownerID string) (*domain.CheckoutSession, error)
	CompletePersonal(ctx context.Context, ownerID string, pd domain.PersonalData) (*domain.CheckoutSession, error)
	UpdateDelivery(ctx context.Context, ownerID string, draft checkout.DeliveryDraft, identityResolved bool) (*domain.CheckoutSession, error)
	CompleteDelivery(ctx context.Context, ownerID string, identityResolved bool) (*domain.CheckoutSession, error)
	SetPaymentMethod(ctx context.Context, ownerID, method string) (*domain.CheckoutSession, error)
	Reset(ctx context.Context, ownerID string) error
}

// QuoteReader exposes the current shipping quote state. Implemented by
// *shipping.Quoter.
type QuoteReader interface {
	Current(ownerID string) (*domain.ShippingQuote, bool)
}

type CheckoutHandler struct {
	svc     CheckoutService
	carts   CartService
	quotes  QuoteReader
	timeout time.Duration
}

func NewCheckoutHandler(svc CheckoutService, carts CartService, quotes QuoteReader, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		svc:     svc,
		carts:   carts,
		quotes:  quotes,
		timeout: timeout,
	}
}

// sessionResponse carries current_step at the top level on every
// state-changing reply so the client can mirror it into the URL. State flows
// one way: the query step is honored only at mount.
type sessionResponse struct {
	Session     *domain.CheckoutSession `json:"session"`
	CurrentStep int                     `json:"current_step"`
}

func respondSession(w http.ResponseWriter, status int, sess *domain.CheckoutSession) {
	respondJSON(w, status, sessionResponse{Session: sess, CurrentStep: sess.CurrentStep})
}

// identityState derives the guard's identity view: a forwarded user id or an
// established guest identity counts as resolved.
func identityState(r *http.Request, sess *domain.CheckoutSession) checkout.IdentityState {
	if user := authenticatedUser(r); user != "" {
		return checkout.IdentityState{Authenticated: true, UserID: user}
	}
	if sess != nil && sess.IsGuest {
		return checkout.IdentityState{Authenticated: true, UserID: ownerFromContext(r.Context())}
	}
	return checkout.IdentityState{}
}

// Load returns the owner's session, creating it on first entry. A ?step=N
// query is the mount-time step sync: backward moves are honored, forward
// moves go through the guard and the completion rules.
func (h *CheckoutHandler) Load(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	sess, err := h.svc.Load(ctx, owner)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	if stepParam := r.URL.Query().Get("step"); stepParam != "" {
		step, convErr := strconv.Atoi(stepParam)
		if convErr != nil || step < domain.FirstStep || step > domain.LastStep {
			respondError(w, http.StatusBadRequest, "invalid_step", "step must be between 1 and 4")
			return
		}

		if res, ok := h.checkGuard(ctx, r, sess, step); !ok {
			respondJSON(w, http.StatusForbidden, res)
			return
		}

		moved, moveErr := h.svc.SetCurrentStep(ctx, owner, step)
		switch {
		case moveErr == nil:
			sess = moved
		case errors.Is(moveErr, checkout.ErrIllegalTransition):
			// Stale or hand-edited URL: stay on the real step.
		default:
			handleDomainError(w, moveErr)
			return
		}
	}

	respondSession(w, http.StatusOK, sess)
}

type navigateRequest struct {
	Step int `json:"step"`
}

func (h *CheckoutHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess, err := h.svc.Load(ctx, owner)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	if res, ok := h.checkGuard(ctx, r, sess, req.Step); !ok {
		respondJSON(w, http.StatusForbidden, res)
		return
	}

	sess, err = h.svc.SetCurrentStep(ctx, owner, req.Step)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

// CompleteStep validates and completes the step named in the path. Step 4 has
// no completion of its own; it ends in order submission.
func (h *CheckoutHandler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_step", "step must be an integer")
		return
	}

	var sess *domain.CheckoutSession
	switch step {
	case domain.StepCart:
		sess, err = h.svc.CompleteCartReview(ctx, owner)
	case domain.StepPersonal:
		var pd domain.PersonalData
		if decodeErr := json.NewDecoder(r.Body).Decode(&pd); decodeErr != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		sess, err = h.svc.CompletePersonal(ctx, owner, pd)
	case domain.StepDelivery:
		resolved := identityState(r, nil).Authenticated || h.isGuest(ctx, owner)
		sess, err = h.svc.CompleteDelivery(ctx, owner, resolved)
	default:
		respondError(w, http.StatusBadRequest, "invalid_step", "only steps 1 to 3 have an explicit completion")
		return
	}

	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

type deliveryRequest struct {
	DeliveryType      domain.DeliveryType  `json:"delivery_type"`
	ShippingData      *domain.ShippingData `json:"shipping_data"`
	SelectedAddressID string               `json:"selected_address_id"`
}

func (h *CheckoutHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req deliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	draft := checkout.DeliveryDraft{
		DeliveryType:      req.DeliveryType,
		ShippingData:      req.ShippingData,
		SelectedAddressID: req.SelectedAddressID,
	}
	resolved := identityState(r, nil).Authenticated || h.isGuest(ctx, owner)

	sess, err := h.svc.UpdateDelivery(ctx, owner, draft, resolved)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

type paymentMethodRequest struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *CheckoutHandler) SetPaymentMethod(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req paymentMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess, err := h.svc.SetPaymentMethod(ctx, owner, req.PaymentMethod)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (h *CheckoutHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	if err := h.svc.Reset(ctx, owner); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type quoteResponse struct {
	Resolved bool                  `json:"resolved"`
	Quote    *domain.ShippingQuote `json:"quote,omitempty"`
}

func (h *CheckoutHandler) ShippingQuote(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	quote, ok := h.quotes.Current(owner)
	respondJSON(w, http.StatusOK, quoteResponse{Resolved: ok, Quote: quote})
}

// Guard runs the step-access predicate without acting on it, for callers that
// only gate UI affordances.
func (h *CheckoutHandler) Guard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	step, err := strconv.Atoi(r.URL.Query().Get("step"))
	if err != nil || step < domain.FirstStep || step > domain.LastStep {
		respondError(w, http.StatusBadRequest, "invalid_step", "step must be between 1 and 4")
		return
	}

	var sess *domain.CheckoutSession
	if owner != "" {
		if loaded, loadErr := h.svc.Load(ctx, owner); loadErr == nil {
			sess = loaded
		}
	}

	res, _ := h.checkGuard(ctx, r, sess, step)
	respondJSON(w, http.StatusOK, res)
}

func (h *CheckoutHandler) checkGuard(ctx context.Context, r *http.Request, sess *domain.CheckoutSession, step int) (checkout.GuardResult, bool) {
	var c *domain.Cart
	owner := ownerFromContext(r.Context())
	if owner != "" {
		if loaded, _, err := h.carts.GetCart(ctx, owner); err == nil {
			c = loaded
		}
	}

	res := checkout.CheckStepAccess(identityState(r, sess), c, sess, step)
	return res, res.Valid
}

func (h *CheckoutHandler) isGuest(ctx context.Context, owner string) bool {
	sess, err := h.svc.Load(ctx, owner)
	return err == nil && sess.IsGuest
}

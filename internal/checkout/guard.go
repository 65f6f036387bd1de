package checkout

import (
	"fmt"
	"net/url"

	"github.com/maxshopweb/checkout/internal/domain"
)

const (
	ReasonNoAuth  = "no-auth"
	ReasonNoCart  = "no-cart"
	ReasonNoStep2 = "no-step2"
	ReasonNoStep3 = "no-step3"
)

// IdentityState is the slice of the identity collaborator the guard reads.
// A resolved guest identity counts as authenticated.
type IdentityState struct {
	Authenticated bool
	UserID        string
}

// GuardResult is a structured verdict. The guard never redirects itself; a
// caller may act on RedirectTo or merely gate UI affordances.
type GuardResult struct {
	Valid      bool   `json:"valid"`
	Reason     string `json:"reason,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

func allowed() GuardResult {
	return GuardResult{Valid: true}
}

func denied(reason, redirectTo string) GuardResult {
	return GuardResult{Reason: reason, RedirectTo: redirectTo}
}

// CheckStepAccess decides whether the requested step is reachable. Checks
// run in a fixed order and the first failure wins:
//
//  1. identity unresolved
//  2. cart empty (suppressed while an order submission is in flight)
//  3. step >= 3 without personal data
//  4. step = 4 without shipping data (pickup satisfies it)
func CheckStepAccess(identity IdentityState, cart *domain.Cart, sess *domain.CheckoutSession, requestedStep int) GuardResult {
	if !identity.Authenticated {
		ret := url.QueryEscape(fmt.Sprintf("/checkout?step=%d", requestedStep))
		return denied(ReasonNoAuth, "/login?return="+ret)
	}

	creating := sess != nil && sess.IsCreatingOrder
	if cart.IsEmpty() && !creating {
		return denied(ReasonNoCart, "/")
	}

	if requestedStep >= domain.StepDelivery && (sess == nil || sess.PersonalData == nil) {
		return denied(ReasonNoStep2, "/checkout?step=2")
	}

	if requestedStep == domain.StepPayment && !hasDeliveryData(sess) {
		return denied(ReasonNoStep3, "/checkout?step=3")
	}

	return allowed()
}

func hasDeliveryData(sess *domain.CheckoutSession) bool {
	if sess == nil {
		return false
	}
	if sess.DeliveryType == domain.DeliveryTypePickup {
		return true
	}
	return sess.ShippingData != nil || sess.SelectedAddressID != ""
}

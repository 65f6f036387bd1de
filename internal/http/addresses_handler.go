package http

import (
	"context"
	"net/http"
	"time"

	"github.com/maxshopweb/checkout/internal/domain"
)

// AddressProvider lists the saved delivery addresses owned by the identity
// side of the shop. Implemented by *identity.HTTPClient.
type AddressProvider interface {
	ListAddresses(ctx context.Context, userID string) ([]domain.Address, error)
}

type AddressesHandler struct {
	provider AddressProvider
	timeout  time.Duration
}

func NewAddressesHandler(provider AddressProvider, timeout time.Duration) *AddressesHandler {
	return &AddressesHandler{provider: provider, timeout: timeout}
}

// ListAddresses is a passthrough: saved addresses belong to the identity
// collaborator, checkout only picks one by id.
func (h *AddressesHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	user := authenticatedUser(r)
	if user == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "saved addresses require a signed-in account")
		return
	}

	addresses, err := h.provider.ListAddresses(ctx, user)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, addresses)
}

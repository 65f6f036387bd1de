package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/maxshopweb/checkout/internal/identity"
)

// GuestResolver is the guest-identity surface. Implemented by
// *identity.Resolver.
type GuestResolver interface {
	ResolveGuest(ctx context.Context, ownerID string, profile identity.GuestProfile) (string, error)
	ConvertGuestToAccount(ctx context.Context, ownerID, email, password string) error
}

type GuestHandler struct {
	resolver GuestResolver
	timeout  time.Duration
}

func NewGuestHandler(resolver GuestResolver, timeout time.Duration) *GuestHandler {
	return &GuestHandler{resolver: resolver, timeout: timeout}
}

func (h *GuestHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var profile identity.GuestProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	userID, err := h.resolver.ResolveGuest(ctx, owner, profile)
	if err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

type convertRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *GuestHandler) Convert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := ownerFromContext(r.Context())
	if owner == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing owner identity")
		return
	}

	var req convertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.resolver.ConvertGuestToAccount(ctx, owner, req.Email, req.Password); err != nil {
		handleDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "converted"})
}

package identity

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/maxshopweb/checkout/internal/domain"
)

// SessionMarker is the slice of the checkout service the resolver needs to
// flag a session as guest-owned.
type SessionMarker interface {
	MarkGuest(ctx context.Context, ownerID string, guest bool) (*domain.CheckoutSession, error)
}

// Resolver decides guest-checkout eligibility and establishes an ephemeral
// identity bound to the checkout session.
type Resolver struct {
	checker  EmailChecker
	provider Provider
	sessions SessionMarker
}

func NewResolver(checker EmailChecker, provider Provider, sessions SessionMarker) *Resolver {
	return &Resolver{
		checker:  checker,
		provider: provider,
		sessions: sessions,
	}
}

// ResolveGuest checks whether the email may check out as guest and, if so,
// signs it in and marks the session. Returns the guest user id.
func (r *Resolver) ResolveGuest(ctx context.Context, ownerID string, profile GuestProfile) (string, error) {
	if err := validateProfile(profile); err != nil {
		return "", err
	}

	check, err := r.checker.CheckEmail(ctx, profile.Email)
	if err != nil {
		return "", fmt.Errorf("email check failed: %w", err)
	}

	if check.Exists && !check.CanLoginAsGuest {
		return "", ErrEmailRegistered
	}

	userID, err := r.provider.GuestSignIn(ctx, profile)
	if err != nil {
		return "", fmt.Errorf("guest sign-in failed: %w", err)
	}

	if _, err := r.sessions.MarkGuest(ctx, ownerID, true); err != nil {
		return "", fmt.Errorf("failed to mark session as guest: %w", err)
	}

	log.WithFields(log.Fields{
		"owner_id": ownerID,
		"user_id":  userID,
	}).Info("Guest identity established")

	return userID, nil
}

// ConvertGuestToAccount upgrades the guest identity into a full account. The
// backing identity is reused; only the guest flag changes.
func (r *Resolver) ConvertGuestToAccount(ctx context.Context, ownerID, email, password string) error {
	if !validEmail(email) {
		return domain.NewValidationError("email", "a valid email is required")
	}
	if password == "" {
		return domain.NewValidationError("password", "a password is required")
	}

	if err := r.provider.ConvertGuestToAccount(ctx, email, password); err != nil {
		return fmt.Errorf("account conversion failed: %w", err)
	}

	if _, err := r.sessions.MarkGuest(ctx, ownerID, false); err != nil {
		return fmt.Errorf("failed to clear guest flag: %w", err)
	}

	log.WithField("owner_id", ownerID).Info("Guest converted to account")
	return nil
}

// State reports the resolver's view of the current identity. A signed-in
// guest counts as resolved.
func (r *Resolver) State() (authenticated bool, userID string) {
	return r.provider.IsAuthenticated(), r.provider.CurrentUserID()
}

func validateProfile(p GuestProfile) error {
	if !validEmail(p.Email) {
		return domain.NewValidationError("email", "a valid email is required")
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return domain.NewValidationError("first_name", "first name is required")
	}
	return nil
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

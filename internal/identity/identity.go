package identity

import (
	"context"
	"errors"
)

// ErrEmailRegistered is a business rule, not a failure: the address belongs
// to an existing account that must log in instead of checking out as guest.
var ErrEmailRegistered = errors.New("email is already registered, log in to continue")

// EmailCheck is the verdict of the email-existence collaborator.
type EmailCheck struct {
	Exists          bool `json:"exists"`
	CanLoginAsGuest bool `json:"can_login_as_guest"`
}

// GuestProfile is the minimal data an ephemeral identity carries.
type GuestProfile struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type EmailChecker interface {
	CheckEmail(ctx context.Context, email string) (*EmailCheck, error)
}

// Provider is the consumed surface of the identity collaborator. Token
// issuance mechanics live behind it.
type Provider interface {
	IsAuthenticated() bool
	CurrentUserID() string
	ObtainToken(ctx context.Context) (string, error)
	GuestSignIn(ctx context.Context, profile GuestProfile) (string, error)
	ConvertGuestToAccount(ctx context.Context, email, password string) error
}

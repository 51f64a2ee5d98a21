// Package identity talks to the hosted identity provider that owns credentials.
package identity

import (
	"context"

	"github.com/google/uuid"
)

const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

type User struct {
	ID       uuid.UUID
	Email    string
	Provider string
}

// Session is an issued token pair. Sign-up may return a user without tokens
// when the provider requires email confirmation.
type Session struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	User         User   `json:"-"`
}

type Credentials struct {
	Email    string
	Password string
}

type Provider interface {
	SignUp(ctx context.Context, creds Credentials, captchaToken string) (*Session, error)
	SignIn(ctx context.Context, creds Credentials) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	User(ctx context.Context, accessToken string) (*User, error)
	AuthorizeURL(provider, redirectTo string) (string, error)
}

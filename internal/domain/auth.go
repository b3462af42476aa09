package domain

import (
	"context"
	"time"
)

// AuthUser is the identity reported by the hosted auth provider
type AuthUser struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	FullName  string         `json:"full_name,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AuthSession is the current authenticated identity and token pair
type AuthSession struct {
	User         AuthUser  `json:"user"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is past its expiry
func (s *AuthSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// AuthEventType names a lifecycle event emitted by the auth provider
type AuthEventType string

const (
	AuthSignedIn         AuthEventType = "signed_in"
	AuthSignedOut        AuthEventType = "signed_out"
	AuthTokenRefreshed   AuthEventType = "token_refreshed"
	AuthPasswordRecovery AuthEventType = "password_recovery"
)

// AuthEvent is one provider lifecycle event. Session is nil for signed_out.
type AuthEvent struct {
	Type    AuthEventType
	Session *AuthSession
}

// AuthProvider is the hosted identity service. Implementations must deliver
// events for every session change they perform, including those triggered
// through this interface.
type AuthProvider interface {
	// Subscribe registers a listener and returns an unsubscribe function.
	// Listeners are invoked synchronously in registration order.
	Subscribe(fn func(AuthEvent)) func()

	// GetSession returns the current session, or nil when signed out.
	GetSession(ctx context.Context) (*AuthSession, error)

	SignInWithPassword(ctx context.Context, email, password string) (*AuthSession, error)
	SignUp(ctx context.Context, input SignUpInput) (*AuthSession, error)
	SignOut(ctx context.Context) error

	// RefreshSession exchanges the refresh token for a new pair. On failure
	// the held session is left untouched.
	RefreshSession(ctx context.Context) (*AuthSession, error)

	// AuthorizeURL builds the OAuth redirect entry point for an external
	// identity provider (e.g. "google").
	AuthorizeURL(provider, redirectTo string) string

	// ExchangeCode trades an OAuth authorization code for a session.
	ExchangeCode(ctx context.Context, code string) (*AuthSession, error)

	// NotifyPasswordRecovery emits the password_recovery lifecycle event
	// without touching the held session. The OAuth callback invokes it when
	// the provider flags a recovery flow.
	NotifyPasswordRecovery()
}

// SignInInput represents password sign-in credentials
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// SignUpInput represents account registration data
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"omitempty,max=120"`
}

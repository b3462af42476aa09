package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserProfile is the application-side user row kept alongside the auth
// provider's identity. It is upserted on every completed OAuth callback.
type UserProfile struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"full_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	LastLoginAt time.Time `json:"last_login_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProfileRepository defines the interface for user profile storage
type ProfileRepository interface {
	Upsert(ctx context.Context, profile *UserProfile) error
	Get(ctx context.Context, id uuid.UUID) (*UserProfile, error)
}

package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SharedConversation is a read-only snapshot of a conversation published at
// a public share URL.
type SharedConversation struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID string     `json:"conversation_id"`
	Title          string     `json:"title"`
	Messages       []Message  `json:"messages"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

// ShareCreate represents a request to publish a conversation snapshot
type ShareCreate struct {
	ConversationID string    `json:"conversation_id" validate:"required"`
	Title          string    `json:"title" validate:"required,max=200"`
	Messages       []Message `json:"messages" validate:"required,min=1"`
}

// ShareRepository defines the interface for shared conversation storage
type ShareRepository interface {
	Create(ctx context.Context, share *SharedConversation) error
	Get(ctx context.Context, id uuid.UUID) (*SharedConversation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// ShareRepository implements domain.ShareRepository
type ShareRepository struct {
	pool *pgxpool.Pool
}

// NewShareRepository creates a new share repository
func NewShareRepository(pool *pgxpool.Pool) *ShareRepository {
	return &ShareRepository{pool: pool}
}

// Create inserts a new shared conversation snapshot
func (r *ShareRepository) Create(ctx context.Context, share *domain.SharedConversation) error {
	query := `
		INSERT INTO shared_conversations (id, conversation_id, title, messages, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	messagesJSON, err := json.Marshal(share.Messages)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	_, err = r.pool.Exec(ctx, query,
		share.ID,
		share.ConversationID,
		share.Title,
		messagesJSON,
		share.CreatedBy,
		share.CreatedAt,
		share.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create shared conversation: %w", err)
	}

	return nil
}

// Get retrieves a shared conversation by ID. Expired shares are treated as
// absent.
func (r *ShareRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SharedConversation, error) {
	query := `
		SELECT id, conversation_id, title, messages, created_by, created_at, expires_at
		FROM shared_conversations
		WHERE id = $1 AND (expires_at IS NULL OR expires_at > NOW())
	`

	var share domain.SharedConversation
	var messagesJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&share.ID,
		&share.ConversationID,
		&share.Title,
		&messagesJSON,
		&share.CreatedBy,
		&share.CreatedAt,
		&share.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get shared conversation: %w", err)
	}

	if len(messagesJSON) > 0 {
		if err := json.Unmarshal(messagesJSON, &share.Messages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
		}
	}

	return &share, nil
}

// Delete removes a shared conversation
func (r *ShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM shared_conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete shared conversation: %w", err)
	}
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// ErrShareNotFound is returned when a share does not exist or has expired
var ErrShareNotFound = errors.New("shared conversation not found")

// ErrShareForbidden is returned when a user tries to remove someone else's
// share
var ErrShareForbidden = errors.New("not the owner of this share")

// ShareCache is the caching layer in front of the share repository.
type ShareCache interface {
	Get(ctx context.Context, shareID uuid.UUID) (*domain.SharedConversation, error)
	Set(ctx context.Context, share *domain.SharedConversation) error
	Invalidate(ctx context.Context, shareID uuid.UUID) error
}

// ShareService publishes and serves read-only conversation snapshots
type ShareService struct {
	repo     domain.ShareRepository
	cache    ShareCache
	validate *validator.Validate
	log      zerolog.Logger
}

// NewShareService creates a new share service
func NewShareService(repo domain.ShareRepository, cache ShareCache, log zerolog.Logger) *ShareService {
	return &ShareService{
		repo:     repo,
		cache:    cache,
		validate: validator.New(),
		log:      log,
	}
}

// Create publishes a conversation snapshot and returns the share record
func (s *ShareService) Create(ctx context.Context, userID uuid.UUID, input domain.ShareCreate) (*domain.SharedConversation, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("invalid share request: %w", err)
	}

	share := &domain.SharedConversation{
		ID:             uuid.New(),
		ConversationID: input.ConversationID,
		Title:          input.Title,
		Messages:       input.Messages,
		CreatedBy:      userID,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.Create(ctx, share); err != nil {
		return nil, fmt.Errorf("failed to publish share: %w", err)
	}

	// Cache failures are not fatal; the repository remains authoritative.
	if err := s.cache.Set(ctx, share); err != nil {
		s.log.Warn().Err(err).Str("share_id", share.ID.String()).Msg("failed to cache share")
	}

	return share, nil
}

// Get retrieves a share snapshot, preferring the cache
func (s *ShareService) Get(ctx context.Context, shareID uuid.UUID) (*domain.SharedConversation, error) {
	if cached, err := s.cache.Get(ctx, shareID); err == nil && cached != nil {
		return cached, nil
	}

	share, err := s.repo.Get(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("failed to load share: %w", err)
	}
	if share == nil {
		return nil, ErrShareNotFound
	}

	if err := s.cache.Set(ctx, share); err != nil {
		s.log.Warn().Err(err).Str("share_id", shareID.String()).Msg("failed to cache share")
	}

	return share, nil
}

// Delete removes a share. Only the user who published it may remove it.
func (s *ShareService) Delete(ctx context.Context, userID, shareID uuid.UUID) error {
	share, err := s.repo.Get(ctx, shareID)
	if err != nil {
		return fmt.Errorf("failed to load share: %w", err)
	}
	if share == nil {
		return ErrShareNotFound
	}
	if share.CreatedBy != userID {
		return ErrShareForbidden
	}

	if err := s.repo.Delete(ctx, shareID); err != nil {
		return fmt.Errorf("failed to delete share: %w", err)
	}
	if err := s.cache.Invalidate(ctx, shareID); err != nil {
		s.log.Warn().Err(err).Str("share_id", shareID.String()).Msg("failed to invalidate cached share")
	}

	return nil
}

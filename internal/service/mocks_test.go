package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// MockShareRepository mocks the ShareRepository interface
type MockShareRepository struct {
	mock.Mock
}

func (m *MockShareRepository) Create(ctx context.Context, share *domain.SharedConversation) error {
	args := m.Called(ctx, share)
	return args.Error(0)
}

func (m *MockShareRepository) Get(ctx context.Context, id uuid.UUID) (*domain.SharedConversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SharedConversation), args.Error(1)
}

func (m *MockShareRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockShareCache mocks the ShareCache interface
type MockShareCache struct {
	mock.Mock
}

func (m *MockShareCache) Get(ctx context.Context, shareID uuid.UUID) (*domain.SharedConversation, error) {
	args := m.Called(ctx, shareID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SharedConversation), args.Error(1)
}

func (m *MockShareCache) Set(ctx context.Context, share *domain.SharedConversation) error {
	args := m.Called(ctx, share)
	return args.Error(0)
}

func (m *MockShareCache) Invalidate(ctx context.Context, shareID uuid.UUID) error {
	args := m.Called(ctx, shareID)
	return args.Error(0)
}

package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// MockSender mocks the chat API for store tests
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, message, sessionID string) (*SendData, error) {
	args := m.Called(ctx, message, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SendData), args.Error(1)
}

func newTestStore(api Sender) *Store {
	return NewStore(api, zerolog.Nop())
}

func TestStore_CreateConversation(t *testing.T) {
	s := newTestStore(nil)

	first := s.CreateConversation()
	second := s.CreateConversation()

	assert.NotEqual(t, first, second)

	convs := s.Conversations()
	require.Len(t, convs, 2)
	// Newest conversation is prepended and becomes current.
	assert.Equal(t, second, convs[0].ID)
	assert.Equal(t, first, convs[1].ID)
	require.NotNil(t, s.Current())
	assert.Equal(t, second, s.Current().ID)
}

func TestStore_SendMessage_TitleFromFirstMessage(t *testing.T) {
	api := new(MockSender)
	api.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(&SendData{MessageID: "m1", MainContent: "hi"}, nil)

	s := newTestStore(api)
	long := strings.Repeat("x", 80)

	require.NoError(t, s.SendMessage(context.Background(), long))

	conv := s.Current()
	require.NotNil(t, conv)
	assert.Equal(t, strings.Repeat("x", 50), conv.Title)

	// Subsequent sends do not change the title.
	require.NoError(t, s.SendMessage(context.Background(), "another question"))
	assert.Equal(t, strings.Repeat("x", 50), s.Current().Title)
}

func TestStore_SendMessage_AppendsBothSides(t *testing.T) {
	api := new(MockSender)
	api.On("Send", mock.Anything, "count widgets", mock.Anything).
		Return(&SendData{
			MessageID:   "srv-1",
			MainContent: "42 widgets",
			FollowUps:   []string{"by region?"},
		}, nil)

	s := newTestStore(api)
	require.NoError(t, s.SendMessage(context.Background(), "count widgets"))

	conv := s.Current()
	require.NotNil(t, conv)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "count widgets", conv.Messages[0].Content)
	assert.Equal(t, domain.RoleAssistant, conv.Messages[1].Role)
	assert.Equal(t, "srv-1", conv.Messages[1].ID)
	assert.Equal(t, []string{"by region?"}, conv.Messages[1].FollowUps)
	assert.Empty(t, s.Err())
	assert.False(t, s.Sending())
}

func TestStore_SendMessage_FailureKeepsUserMessage(t *testing.T) {
	api := new(MockSender)
	api.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	s := newTestStore(api)
	err := s.SendMessage(context.Background(), "hello")
	require.Error(t, err)

	conv := s.Current()
	require.NotNil(t, conv)
	// No rollback of the optimistic user message.
	require.Len(t, conv.Messages, 1)
	assert.Equal(t, domain.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "connection refused", s.Err())
	assert.False(t, s.Sending())
}

func TestStore_SendMessage_APIFailureSurfacesError(t *testing.T) {
	api := new(MockSender)
	api.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &APIError{Message: "model overloaded"})

	s := newTestStore(api)
	err := s.SendMessage(context.Background(), "hello")
	require.Error(t, err)

	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "model overloaded", s.Err())
}

func TestStore_SendMessage_ErrorClearedOnNextSuccess(t *testing.T) {
	api := new(MockSender)
	api.On("Send", mock.Anything, "bad", mock.Anything).
		Return(nil, errors.New("boom")).Once()
	api.On("Send", mock.Anything, "good", mock.Anything).
		Return(&SendData{MessageID: "m2", MainContent: "ok"}, nil).Once()

	s := newTestStore(api)
	require.Error(t, s.SendMessage(context.Background(), "bad"))
	assert.NotEmpty(t, s.Err())

	require.NoError(t, s.SendMessage(context.Background(), "good"))
	assert.Empty(t, s.Err())
}

package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// Sender abstracts the remote chat API for the store
type Sender interface {
	Send(ctx context.Context, message, sessionID string) (*SendData, error)
}

// Store holds the conversation list and drives the send cycle. Sends are
// optimistic: the user message is appended before the request is issued and
// is never rolled back on failure. Only one outstanding send is modeled;
// overlapping calls are not queued or deduplicated.
type Store struct {
	mu            sync.Mutex
	conversations []*domain.Conversation
	currentID     string
	sending       bool
	lastErr       string
	api           Sender
	log           zerolog.Logger
}

// NewStore creates a conversation store backed by the given chat API.
func NewStore(api Sender, log zerolog.Logger) *Store {
	return &Store{api: api, log: log}
}

// CreateConversation makes a new empty conversation, prepends it to the
// list, marks it current and returns its id.
func (s *Store) CreateConversation() string {
	now := time.Now()
	conv := &domain.Conversation{
		ID:        uuid.New().String(),
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations = append([]*domain.Conversation{conv}, s.conversations...)
	s.currentID = conv.ID
	s.mu.Unlock()

	return conv.ID
}

// SetCurrentConversation switches the current conversation pointer.
func (s *Store) SetCurrentConversation(id string) {
	s.mu.Lock()
	s.currentID = id
	s.mu.Unlock()
}

// SendMessage appends the user message to the current conversation
// (creating one when none is current), issues the chat request, and appends
// the assistant reply on success. Failures set the store error string and
// leave the user message in place.
func (s *Store) SendMessage(ctx context.Context, content string) error {
	s.mu.Lock()
	conv := s.currentLocked()
	if conv == nil {
		s.mu.Unlock()
		s.CreateConversation()
		s.mu.Lock()
		conv = s.currentLocked()
	}

	userMsg := domain.Message{
		ID:        uuid.New().String(),
		Role:      domain.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	}
	if len(conv.Messages) == 0 && conv.Title == "" {
		conv.Title = domain.DeriveTitle(content)
	}
	conv.Messages = append(conv.Messages, userMsg)
	conv.UpdatedAt = userMsg.Timestamp
	sessionID := conv.ID
	s.sending = true
	s.lastErr = ""
	s.mu.Unlock()

	data, err := s.api.Send(ctx, content, sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sending = false
	if err != nil {
		s.lastErr = err.Error()
		s.log.Error().Err(err).Str("conversation_id", sessionID).Msg("chat send failed")
		return err
	}

	// The conversation may have changed underneath a slow response; append
	// to the one the send was issued against.
	if target := s.byIDLocked(sessionID); target != nil {
		reply := data.AssistantMessage()
		target.Messages = append(target.Messages, reply)
		target.UpdatedAt = reply.Timestamp
	}
	return nil
}

// Conversations returns the conversation list, newest first.
func (s *Store) Conversations() []*domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Current returns the current conversation, or nil when none is selected.
func (s *Store) Current() *domain.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Sending reports whether a send is in flight.
func (s *Store) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Err returns the last send error string, empty when the last send
// succeeded.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Store) currentLocked() *domain.Conversation {
	return s.byIDLocked(s.currentID)
}

func (s *Store) byIDLocked(id string) *domain.Conversation {
	if id == "" {
		return nil
	}
	for _, conv := range s.conversations {
		if conv.ID == id {
			return conv
		}
	}
	return nil
}

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// spyStore is an in-memory StateStore that counts writes
type spyStore struct {
	mu      sync.Mutex
	values  map[string]string
	writes  int
	deletes int
}

func newSpyStore() *spyStore {
	return &spyStore{values: make(map[string]string)}
}

func (s *spyStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *spyStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes++
	return nil
}

func (s *spyStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.deletes++
	return nil
}

func (s *spyStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func newTestManager(store domain.StateStore) *Manager {
	return NewManager(store, 10*time.Millisecond, zerolog.Nop())
}

func TestManager_PersistAndRestoreRoundTrip(t *testing.T) {
	store := newSpyStore()

	m := newTestManager(store)
	ts := time.Date(2026, 8, 30, 9, 30, 0, 123e6, time.UTC)
	m.SetActiveChat(domain.ActiveChatSession{
		ConversationID: "conv-7",
		Messages: []domain.Message{
			{ID: "m1", Role: domain.RoleUser, Content: "hello", Timestamp: ts},
			{ID: "m2", Role: domain.RoleAssistant, Content: "hi", Timestamp: ts.Add(time.Second)},
		},
		SearchMode: domain.SearchDeep,
		Sector:     "energy",
	})
	m.Flush()
	m.Close()

	restored := newTestManager(store)
	require.NoError(t, restored.Restore())
	sess := restored.Session()

	assert.Equal(t, "conv-7", sess.ConversationID)
	assert.Equal(t, domain.SearchDeep, sess.SearchMode)
	assert.Equal(t, "energy", sess.Sector)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, "hello", sess.Messages[0].Content)
	// Timestamps survive to the millisecond.
	assert.True(t, sess.Messages[0].Timestamp.Equal(ts))
	assert.True(t, sess.Messages[1].Timestamp.Equal(ts.Add(time.Second)))
}

func TestManager_RestoreResetsTransientState(t *testing.T) {
	store := newSpyStore()

	m := newTestManager(store)
	m.SetActiveChat(domain.ActiveChatSession{
		ConversationID: "conv-1",
		Messages:       []domain.Message{},
	})
	m.Flush()

	restored := newTestManager(store)
	restored.sess.IsStreaming = true // simulate a dirty pre-restore state
	require.NoError(t, restored.Restore())

	sess := restored.Session()
	assert.False(t, sess.IsStreaming)
	assert.Empty(t, sess.PendingMessage)
}

func TestManager_RestoreRunsOnce(t *testing.T) {
	store := newSpyStore()
	store.values[domain.StateKeyActiveChat] = `{"conversation_id":"first","messages":[],"search_mode":"quick"}`

	m := NewManager(store, time.Hour, zerolog.Nop())
	defer m.Close()
	require.NoError(t, m.Restore())
	assert.Equal(t, "first", m.Session().ConversationID)

	m.SetConversationID("live")
	store.values[domain.StateKeyActiveChat] = `{"conversation_id":"stale","messages":[],"search_mode":"quick"}`

	// A second restore must not reload and clobber live state.
	require.NoError(t, m.Restore())
	assert.Equal(t, "live", m.Session().ConversationID)
}

func TestManager_NoWritesWhileStreaming(t *testing.T) {
	store := newSpyStore()
	m := newTestManager(store)
	defer m.Close()

	m.SetStreaming(true)
	m.SetMessages([]domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "q"}})
	m.SetPendingMessage("thinking...")

	// Wait out several debounce windows; nothing may hit the store.
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, store.writeCount())

	// Settling schedules the persist.
	m.SetStreaming(false)
	assert.Eventually(t, func() bool { return store.writeCount() > 0 }, time.Second, 5*time.Millisecond)
}

func TestManager_PendingMessageNeverPersisted(t *testing.T) {
	store := newSpyStore()
	m := newTestManager(store)
	m.SetPendingMessage("half-typed question")
	m.Flush()
	m.Close()

	raw, ok, err := store.Get(domain.StateKeyActiveChat)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotContains(t, raw, "half-typed question")
}

func TestManager_DebounceCoalescesWrites(t *testing.T) {
	store := newSpyStore()
	m := newTestManager(store)
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.SetSector("tech")
	}

	assert.Eventually(t, func() bool { return store.writeCount() > 0 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, store.writeCount())
}

func TestManager_ClearChat(t *testing.T) {
	store := newSpyStore()
	m := newTestManager(store)
	defer m.Close()

	ctx, cancel := context.WithCancel(context.Background())
	m.SetCancel(cancel)
	m.SetActiveChat(domain.ActiveChatSession{
		ConversationID: "conv-9",
		Messages:       []domain.Message{{ID: "m1", Role: domain.RoleUser, Content: "q"}},
		SearchMode:     domain.SearchDeep,
	})
	m.Flush()

	m.ClearChat()

	// The in-flight request was aborted.
	select {
	case <-ctx.Done():
	default:
		t.Fatal("expected in-flight context to be cancelled")
	}

	sess := m.Session()
	assert.Empty(t, sess.ConversationID)
	assert.Empty(t, sess.Messages)
	assert.Equal(t, domain.SearchQuick, sess.SearchMode)

	_, ok, err := store.Get(domain.StateKeyActiveChat)
	require.NoError(t, err)
	assert.False(t, ok, "durable snapshot must be deleted")
}

// Package session manages the single active chat and its durable snapshot.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// DefaultDebounce is how long after the last mutation the snapshot is
// written to durable storage.
const DefaultDebounce = 500 * time.Millisecond

// snapshot is the durable form of the active chat. Transient fields
// (streaming flag, pending message) are deliberately absent: a restart must
// come back idle.
type snapshot struct {
	ConversationID string            `json:"conversation_id,omitempty"`
	Messages       []domain.Message  `json:"messages"`
	SearchMode     domain.SearchMode `json:"search_mode"`
	Sector         string            `json:"sector,omitempty"`
	SavedAt        time.Time         `json:"saved_at"`
}

// Manager holds the active chat session, persists it with a debounce and
// restores it once at startup.
type Manager struct {
	mu       sync.Mutex
	sess     domain.ActiveChatSession
	store    domain.StateStore
	log      zerolog.Logger
	debounce time.Duration
	timer    *time.Timer
	restored bool
	closed   bool

	// cancelInFlight aborts the outstanding chat or execution request when
	// the user discards the session. Held on the caller's behalf.
	cancelInFlight context.CancelFunc
}

// NewManager creates a session manager over the given durable store.
// A non-positive debounce falls back to DefaultDebounce.
func NewManager(store domain.StateStore, debounce time.Duration, log zerolog.Logger) *Manager {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Manager{
		sess:     domain.DefaultActiveChatSession(),
		store:    store,
		log:      log,
		debounce: debounce,
	}
}

// Restore loads the persisted snapshot. It runs at most once per manager;
// later calls are no-ops so a re-mount cannot clobber live state. The
// restored session always comes back with IsStreaming=false and no pending
// message.
func (m *Manager) Restore() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.restored {
		return nil
	}
	m.restored = true

	raw, ok, err := m.store.Get(domain.StateKeyActiveChat)
	if err != nil {
		return fmt.Errorf("failed to read session snapshot: %w", err)
	}
	if !ok {
		return nil
	}

	var snap snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		m.log.Warn().Err(err).Msg("discarding unreadable session snapshot")
		return nil
	}

	m.sess = domain.ActiveChatSession{
		ConversationID: snap.ConversationID,
		Messages:       snap.Messages,
		SearchMode:     snap.SearchMode,
		Sector:         snap.Sector,
	}
	if m.sess.Messages == nil {
		m.sess.Messages = []domain.Message{}
	}
	if m.sess.SearchMode == "" {
		m.sess.SearchMode = domain.SearchQuick
	}
	return nil
}

// Session returns a copy of the current active chat.
func (m *Manager) Session() domain.ActiveChatSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sess
	out.Messages = append([]domain.Message(nil), m.sess.Messages...)
	return out
}

// SetActiveChat replaces the session wholesale.
func (m *Manager) SetActiveChat(sess domain.ActiveChatSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	m.scheduleLocked()
}

// SetMessages replaces the message list.
func (m *Manager) SetMessages(messages []domain.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.Messages = messages
	m.scheduleLocked()
}

// SetConversationID points the session at a conversation.
func (m *Manager) SetConversationID(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.ConversationID = id
	m.scheduleLocked()
}

// SetStreaming toggles the streaming flag. Turning streaming off schedules
// a persist so the settled response reaches durable storage.
func (m *Manager) SetStreaming(streaming bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.IsStreaming = streaming
	m.scheduleLocked()
}

// SetPendingMessage records the in-flight, not-yet-committed message. It is
// never persisted.
func (m *Manager) SetPendingMessage(content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.PendingMessage = content
	m.scheduleLocked()
}

// SetSearchMode sets the quick/deep search mode.
func (m *Manager) SetSearchMode(mode domain.SearchMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.SearchMode = mode
	m.scheduleLocked()
}

// SetSector sets the sector filter.
func (m *Manager) SetSector(sector string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess.Sector = sector
	m.scheduleLocked()
}

// SetCancel installs the abort handle for the outstanding request, replacing
// any previous handle.
func (m *Manager) SetCancel(cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelInFlight = cancel
}

// ClearChat aborts any outstanding request, resets the session to its
// default state and deletes the durable snapshot.
func (m *Manager) ClearChat() {
	m.mu.Lock()
	cancel := m.cancelInFlight
	m.cancelInFlight = nil
	m.sess = domain.DefaultActiveChatSession()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.store.Delete(domain.StateKeyActiveChat); err != nil {
		m.log.Error().Err(err).Msg("failed to delete session snapshot")
	}
}

// Flush writes the snapshot immediately, bypassing the debounce. Used at
// shutdown. Writes are still skipped while streaming.
func (m *Manager) Flush() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
	m.persist()
}

// Close stops the pending debounce timer without writing.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// scheduleLocked arms the debounce timer. While a response is streaming no
// write is scheduled at all; the settle point is the SetStreaming(false)
// mutation.
func (m *Manager) scheduleLocked() {
	if m.closed || m.sess.IsStreaming {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.debounce, m.persist)
}

func (m *Manager) persist() {
	m.mu.Lock()
	if m.closed || m.sess.IsStreaming {
		m.mu.Unlock()
		return
	}
	snap := snapshot{
		ConversationID: m.sess.ConversationID,
		Messages:       append([]domain.Message(nil), m.sess.Messages...),
		SearchMode:     m.sess.SearchMode,
		Sector:         m.sess.Sector,
		SavedAt:        time.Now(),
	}
	m.mu.Unlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to marshal session snapshot")
		return
	}
	if err := m.store.Set(domain.StateKeyActiveChat, string(raw)); err != nil {
		m.log.Error().Err(err).Msg("failed to persist session snapshot")
	}
}

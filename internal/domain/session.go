package domain

// SearchMode selects how much work the assistant puts into a query
type SearchMode string

const (
	SearchQuick SearchMode = "quick"
	SearchDeep  SearchMode = "deep"
)

// ActiveChatSession is the single currently open chat, persisted across
// restarts. IsStreaming and PendingMessage are transient: they are reset on
// restore and never written to durable storage.
type ActiveChatSession struct {
	ConversationID string     `json:"conversation_id,omitempty"`
	Messages       []Message  `json:"messages"`
	IsStreaming    bool       `json:"is_streaming"`
	PendingMessage string     `json:"pending_message,omitempty"`
	SearchMode     SearchMode `json:"search_mode"`
	Sector         string     `json:"sector,omitempty"`
}

// DefaultActiveChatSession returns the idle state used at first start and
// after ClearChat.
func DefaultActiveChatSession() ActiveChatSession {
	return ActiveChatSession{
		Messages:   []Message{},
		SearchMode: SearchQuick,
	}
}

// StateStore is durable local key/value storage for app state. At most one
// active chat session snapshot is persisted at a time; concurrent writers
// from other processes are not coordinated (last writer wins).
type StateStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Durable state keys
const (
	StateKeyActiveChat = "active_chat_session"
	StateKeyLastSignIn = "auth.last_sign_in"
	StateKeyReturnPath = "auth.return_path"
)

package domain

import (
	"time"
)

// MessageRole represents the sender of a message
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ReasoningStage identifies one layer of an assistant reasoning breakdown.
// Stages are produced by the remote API and passed through unmodified.
type ReasoningStage string

const (
	StageUnderstanding ReasoningStage = "understanding"
	StagePlanning      ReasoningStage = "planning"
	StageResearch      ReasoningStage = "research"
	StageAnalysis      ReasoningStage = "analysis"
	StageSynthesis     ReasoningStage = "synthesis"
	StageWriting       ReasoningStage = "writing"
)

// ReasoningStep is one stage of an assistant reasoning breakdown
type ReasoningStep struct {
	Stage   ReasoningStage `json:"stage"`
	Content string         `json:"content"`
}

// Source represents a citation attached to an assistant message
type Source struct {
	Title   string  `json:"title"`
	URL     string  `json:"url,omitempty"`
	Snippet string  `json:"snippet,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Message represents one turn in a conversation. Immutable once created
// except for the Favorite flag. The reasoning, source and follow-up fields
// are opaque payloads from the remote API; the app stores and forwards them
// without interpretation.
type Message struct {
	ID        string          `json:"id"`
	Role      MessageRole     `json:"role"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Favorite  bool            `json:"favorite,omitempty"`
	Reasoning []ReasoningStep `json:"reasoning,omitempty"`
	Sources   []Source        `json:"sources,omitempty"`
	FollowUps []string        `json:"follow_ups,omitempty"`
}

// Conversation represents a chat thread. The message sequence is append-only
// and order-preserving.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaxTitleLen bounds conversation titles derived from the first user message.
const MaxTitleLen = 50

// DeriveTitle builds a conversation title from the first user message.
func DeriveTitle(content string) string {
	runes := []rune(content)
	if len(runes) > MaxTitleLen {
		return string(runes[:MaxTitleLen])
	}
	return content
}

// Package chat implements the conversation store and the remote chat API
// client behind it.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// APIError is an application-level failure reported by the chat API
// (success=false), as opposed to a transport or decode failure.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "chat API reported failure"
	}
	return e.Message
}

// SendData is the assistant payload of a successful chat response. The
// reasoning, source and follow-up fields are passed through to the message
// unmodified.
type SendData struct {
	MessageID   string                 `json:"message_id"`
	MainContent string                 `json:"main_content"`
	Timestamp   string                 `json:"timestamp"`
	Reasoning   []domain.ReasoningStep `json:"reasoning_layers,omitempty"`
	Sources     []domain.Source        `json:"sources,omitempty"`
	FollowUps   []string               `json:"follow_up_questions,omitempty"`
}

type sendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type sendResponse struct {
	Success bool      `json:"success"`
	Data    *SendData `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Client talks to the remote chat API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a chat API client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Send posts one user message and returns the assistant payload. A nil
// error guarantees a non-nil SendData.
func (c *Client) Send(ctx context.Context, message, sessionID string) (*SendData, error) {
	body, err := json.Marshal(sendRequest{Message: message, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}

	var out sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if !out.Success || out.Data == nil {
		return nil, &APIError{Message: out.Error}
	}
	return out.Data, nil
}

// AssistantMessage converts the payload into a message, parsing the server
// timestamp and falling back to now when it is absent or malformed.
func (d *SendData) AssistantMessage() domain.Message {
	ts := time.Now()
	if d.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, d.Timestamp); err == nil {
			ts = parsed
		}
	}
	return domain.Message{
		ID:        d.MessageID,
		Role:      domain.RoleAssistant,
		Content:   d.MainContent,
		Timestamp: ts,
		Reasoning: d.Reasoning,
		Sources:   d.Sources,
		FollowUps: d.FollowUps,
	}
}

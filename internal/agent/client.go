// Package agent is the client for the remote agent execution service. It
// starts streaming executions, decodes the event stream and drives the
// pause/resume/cancel side channel.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// dataPrefix marks event frames in the stream; other lines are ignored.
const dataPrefix = "data: "

// ExecuteOptions carries the optional fields of a streaming execution
// request.
type ExecuteOptions struct {
	UserID         string
	ConversationID string
	Mode           string
	Context        map[string]any
}

// Client calls the agent execution service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates an agent service client. The HTTP client carries no
// overall timeout: streams are long-lived and bounded by the caller's
// context instead. Side-channel calls apply their own deadline.
func NewClient(baseURL, token string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
		log:        log,
	}
}

// Stream is a live execution event stream. Events arrive on Events(); once
// that channel closes, Err() reports whether the stream ended cleanly.
type Stream struct {
	events <-chan domain.ExecutionEvent

	mu     sync.Mutex
	err    error
	closed bool
	cancel context.CancelFunc
}

// Events returns the event channel. It closes when the stream ends for any
// reason.
func (s *Stream) Events() <-chan domain.ExecutionEvent { return s.events }

// Err returns the transport error that ended the stream, or nil after a
// clean end-of-stream. Only meaningful once Events() is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream and releases the connection. Safe to call more
// than once and after the stream has already ended.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

// ExecuteStream starts a streaming execution. The returned stream stays
// open until the server finishes, the context is cancelled or Close is
// called; the underlying connection is released on every exit path.
func (c *Client) ExecuteStream(ctx context.Context, task string, opts ExecuteOptions) (*Stream, error) {
	payload := map[string]any{"task": task}
	if opts.UserID != "" {
		payload["user_id"] = opts.UserID
	}
	if opts.ConversationID != "" {
		payload["conversation_id"] = opts.ConversationID
	}
	if opts.Mode != "" {
		payload["mode"] = opts.Mode
	}
	if opts.Context != nil {
		payload["context"] = opts.Context
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.baseURL+"/execute/stream", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create execution request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start execution stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("execution stream rejected with status %d", resp.StatusCode)
	}
	if resp.Body == nil {
		cancel()
		return nil, fmt.Errorf("execution stream response has no body")
	}

	events := make(chan domain.ExecutionEvent)
	stream := &Stream{events: events, cancel: cancel}

	go func() {
		defer close(events)
		defer resp.Body.Close()
		defer cancel()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var frame strings.Builder
		flush := func() bool {
			if frame.Len() == 0 {
				return true
			}
			raw := frame.String()
			frame.Reset()

			var ev domain.ExecutionEvent
			if err := json.Unmarshal([]byte(raw), &ev); err != nil || ev.Type == "" {
				c.log.Warn().Str("frame", raw).Msg("skipping malformed stream frame")
				return true
			}
			select {
			case events <- ev:
				return true
			case <-streamCtx.Done():
				return false
			}
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if !flush() {
					return
				}
				continue
			}
			if data, ok := strings.CutPrefix(line, dataPrefix); ok {
				frame.WriteString(data)
			}
		}
		if !flush() {
			return
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			stream.setErr(fmt.Errorf("execution stream interrupted: %w", err))
		}
	}()

	return stream, nil
}

// Pause suspends a running execution.
func (c *Client) Pause(ctx context.Context, executionID string) error {
	return c.control(ctx, executionID, "pause")
}

// Resume continues a paused execution.
func (c *Client) Resume(ctx context.Context, executionID string) error {
	return c.control(ctx, executionID, "resume")
}

// Cancel aborts an execution.
func (c *Client) Cancel(ctx context.Context, executionID string) error {
	return c.control(ctx, executionID, "cancel")
}

func (c *Client) control(ctx context.Context, executionID, action string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/execute/%s/%s", c.baseURL, executionID, action)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", action, err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s execution: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s rejected with status %d", action, resp.StatusCode)
	}
	return nil
}

// Status fetches the current state of an execution.
func (c *Client) Status(ctx context.Context, executionID string) (*domain.ExecutionState, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/execute/%s/status", c.baseURL, executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch execution status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status rejected with status %d", resp.StatusCode)
	}

	var state domain.ExecutionState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode execution status: %w", err)
	}
	return &state, nil
}

// APIError is an application-level failure reported by the agent service
// (success=false on an otherwise healthy response), as opposed to a
// transport or decode failure.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "agent API reported failure"
	}
	return e.Message
}

// CodeResult is the outcome of a one-shot code execution.
type CodeResult struct {
	Output        string  `json:"output"`
	ExecutionTime float64 `json:"executionTime,omitempty"`
}

type codeResponse struct {
	Success       bool    `json:"success"`
	Output        string  `json:"output,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExecutionTime float64 `json:"executionTime,omitempty"`
}

// ExecuteCode runs a code snippet in the service's sandbox. A success=false
// reply surfaces as an APIError.
func (c *Client) ExecuteCode(ctx context.Context, code, language string) (*CodeResult, error) {
	var out codeResponse
	if err := c.oneShot(ctx, "/code/execute", map[string]string{"code": code, "language": language}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Message: out.Error}
	}
	return &CodeResult{Output: out.Output, ExecutionTime: out.ExecutionTime}, nil
}

// BrowseResult is the outcome of a one-shot browse request. Screenshot is
// the service's base64-encoded capture, passed through untouched.
type BrowseResult struct {
	Content    string `json:"content"`
	Screenshot string `json:"screenshot,omitempty"`
}

type browseResponse struct {
	Success    bool   `json:"success"`
	Content    string `json:"content,omitempty"`
	Screenshot string `json:"screenshot,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BrowseURL asks the service to fetch and act on a web page. A success=false
// reply surfaces as an APIError.
func (c *Client) BrowseURL(ctx context.Context, url, action string) (*BrowseResult, error) {
	var out browseResponse
	if err := c.oneShot(ctx, "/browse", map[string]string{"url": url, "action": action}, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{Message: out.Error}
	}
	return &BrowseResult{Content: out.Content, Screenshot: out.Screenshot}, nil
}

// VerifyResult is the outcome of a fact-verification request.
type VerifyResult struct {
	Verified    bool            `json:"verified"`
	Confidence  float64         `json:"confidence"`
	Explanation string          `json:"explanation,omitempty"`
	Sources     []domain.Source `json:"sources,omitempty"`
}

// VerifyFact asks the service to check a claim against its sources.
func (c *Client) VerifyFact(ctx context.Context, claim string) (*VerifyResult, error) {
	var out VerifyResult
	if err := c.oneShot(ctx, "/verify", map[string]string{"claim": claim}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) oneShot(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request rejected with status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sectorlens/sectorlens/internal/api/response"
	"github.com/sectorlens/sectorlens/internal/chat"
	"github.com/sectorlens/sectorlens/internal/session"
)

// LocalHandler exposes the in-process chat and session stores to the UI
// shell over the loopback gateway.
type LocalHandler struct {
	chats   *chat.Store
	session *session.Manager
}

// NewLocalHandler creates a new local state handler
func NewLocalHandler(chats *chat.Store, sess *session.Manager) *LocalHandler {
	return &LocalHandler{chats: chats, session: sess}
}

type sendMessageRequest struct {
	Content        string `json:"content"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SendMessage handles POST /local/v1/chat/send
func (h *LocalHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Content == "" {
		response.BadRequest(w, "content is required")
		return
	}

	if req.ConversationID != "" {
		h.chats.SetCurrentConversation(req.ConversationID)
	}

	if err := h.chats.SendMessage(r.Context(), req.Content); err != nil {
		// The user message is already in the conversation; report the
		// failure alongside the current state.
		response.PartialFailure(w, http.StatusBadGateway, response.CodeUpstreamError, err.Error(),
			map[string]any{"conversation": h.chats.Current()})
		return
	}

	response.OK(w, h.chats.Current())
}

// CreateConversation handles POST /local/v1/chat/conversations
func (h *LocalHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	id := h.chats.CreateConversation()
	response.Created(w, map[string]string{"id": id})
}

// ChatState handles GET /local/v1/chat/state
func (h *LocalHandler) ChatState(w http.ResponseWriter, r *http.Request) {
	current := h.chats.Current()
	currentID := ""
	if current != nil {
		currentID = current.ID
	}
	response.OK(w, map[string]any{
		"conversations": h.chats.Conversations(),
		"current_id":    currentID,
		"sending":       h.chats.Sending(),
		"error":         h.chats.Err(),
	})
}

// Session handles GET /local/v1/session
func (h *LocalHandler) Session(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.session.Session())
}

// ClearSession handles POST /local/v1/session/clear
func (h *LocalHandler) ClearSession(w http.ResponseWriter, r *http.Request) {
	h.session.ClearChat()
	response.OK(w, h.session.Session())
}

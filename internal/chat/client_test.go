package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorlens/sectorlens/internal/domain"
)

func TestClient_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req["message"])
		assert.Equal(t, "sess-1", req["session_id"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"message_id":   "m-1",
				"main_content": "hi there",
				"timestamp":    "2026-08-30T12:00:00Z",
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	data, err := c.Send(context.Background(), "hello", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "m-1", data.MessageID)
	assert.Equal(t, "hi there", data.MainContent)

	msg := data.AssistantMessage()
	assert.Equal(t, domain.RoleAssistant, msg.Role)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestClient_Send_ServerFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "quota exceeded"})
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Send(context.Background(), "hello", "sess-1")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "quota exceeded", apiErr.Message)
}

func TestClient_Send_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := NewClient(server.URL, time.Second)
	_, err := c.Send(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSendData_AssistantMessage_BadTimestamp(t *testing.T) {
	data := &SendData{MessageID: "m", MainContent: "c", Timestamp: "not-a-time"}
	before := time.Now()
	msg := data.AssistantMessage()
	assert.False(t, msg.Timestamp.Before(before))
}

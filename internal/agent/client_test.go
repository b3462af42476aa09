package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// streamHandler writes blank-line separated frames and signals when the
// client releases the connection.
func streamHandler(t *testing.T, frames []string, released *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/execute/stream", r.URL.Path)

		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		w.Header().Set("Content-Type", "text/event-stream")
		flusher.Flush()

		for _, frame := range frames {
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
		<-r.Context().Done()
		released.Store(true)
	}
}

func collect(t *testing.T, stream *Stream, n int) []domain.ExecutionEvent {
	t.Helper()
	var events []domain.ExecutionEvent
	timeout := time.After(5 * time.Second)
	for len(events) < n {
		select {
		case ev, ok := <-stream.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for %d events, got %d", n, len(events))
		}
	}
	return events
}

func TestExecuteStream_DecodesFramesAndSkipsMalformed(t *testing.T) {
	var released atomic.Bool
	frames := []string{
		`{"type":"plan","data":{"steps":[{"id":"s1","phase":"planning","status":"pending"}]}}`,
		`{not json at all`,
		`{"type":"content","data":"Sector outlook: "}`,
	}
	srv := httptest.NewServer(streamHandler(t, frames, &released))
	defer srv.Close()

	client := NewClient(srv.URL, "agent-token", zerolog.Nop())
	stream, err := client.ExecuteStream(context.Background(), "analyze energy sector", ExecuteOptions{})
	require.NoError(t, err)
	defer stream.Close()

	events := collect(t, stream, 2)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventPlan, events[0].Type)
	assert.Equal(t, domain.EventContent, events[1].Type)
}

func TestExecuteStream_SendsAuthAndBody(t *testing.T) {
	var released atomic.Bool
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, "data: {\"type\":\"done\",\"data\":{}}\n\n")
		released.Store(true)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "agent-token", zerolog.Nop())
	stream, err := client.ExecuteStream(context.Background(), "task text", ExecuteOptions{
		UserID:         "u1",
		ConversationID: "c1",
		Mode:           "deep",
	})
	require.NoError(t, err)
	defer stream.Close()

	collect(t, stream, 1)
	assert.Equal(t, "Bearer agent-token", gotAuth)
	assert.Equal(t, "task text", gotBody["task"])
	assert.Equal(t, "u1", gotBody["user_id"])
	assert.Equal(t, "c1", gotBody["conversation_id"])
	assert.Equal(t, "deep", gotBody["mode"])
}

func TestExecuteStream_PlanThenDoneReleasesConnection(t *testing.T) {
	var released atomic.Bool
	frames := []string{
		`{"type":"plan","data":{"steps":[]}}`,
		`{"type":"done","data":{}}`,
	}
	srv := httptest.NewServer(streamHandler(t, frames, &released))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	stream, err := client.ExecuteStream(context.Background(), "task", ExecuteOptions{})
	require.NoError(t, err)

	events := collect(t, stream, 2)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventDone, events[1].Type)

	stream.Close()
	assert.Eventually(t, released.Load, 2*time.Second, 10*time.Millisecond,
		"server should observe the connection being released")
	assert.NoError(t, stream.Err())
}

func TestExecuteStream_EarlyCloseReleasesConnection(t *testing.T) {
	var released atomic.Bool
	srv := httptest.NewServer(streamHandler(t, []string{`{"type":"content","data":"x"}`}, &released))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	stream, err := client.ExecuteStream(context.Background(), "task", ExecuteOptions{})
	require.NoError(t, err)

	collect(t, stream, 1)
	stream.Close()

	assert.Eventually(t, released.Load, 2*time.Second, 10*time.Millisecond)
}

func TestExecuteStream_ContextCancelReleasesConnection(t *testing.T) {
	var released atomic.Bool
	srv := httptest.NewServer(streamHandler(t, nil, &released))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(srv.URL, "", zerolog.Nop())
	stream, err := client.ExecuteStream(ctx, "task", ExecuteOptions{})
	require.NoError(t, err)

	cancel()
	assert.Eventually(t, released.Load, 2*time.Second, 10*time.Millisecond)
	// Channel closes once the reader goroutine exits.
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-stream.Events():
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExecuteStream_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	_, err := client.ExecuteStream(context.Background(), "task", ExecuteOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestControlCalls(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.URL.Path == "/execute/ex1/status" {
			json.NewEncoder(w).Encode(domain.ExecutionState{
				ExecutionID: "ex1",
				Status:      domain.ExecPaused,
				Progress:    40,
			})
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "tok", zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, client.Pause(ctx, "ex1"))
	require.NoError(t, client.Resume(ctx, "ex1"))
	require.NoError(t, client.Cancel(ctx, "ex1"))

	state, err := client.Status(ctx, "ex1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExecPaused, state.Status)
	assert.Equal(t, 40, state.Progress)

	assert.Equal(t, []string{
		"POST /execute/ex1/pause",
		"POST /execute/ex1/resume",
		"POST /execute/ex1/cancel",
		"GET /execute/ex1/status",
	}, paths)
}

func TestControl_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	err := client.Pause(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestOneShots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/code/execute":
			assert.Equal(t, "print(1)", body["code"])
			assert.Equal(t, "python", body["language"])
			fmt.Fprint(w, `{"success":true,"output":"1\n","executionTime":0.12}`)
		case "/browse":
			assert.Equal(t, "https://example.com", body["url"])
			fmt.Fprint(w, `{"success":true,"content":"page text","screenshot":"aWJi"}`)
		case "/verify":
			assert.Equal(t, "rates rose in Q2", body["claim"])
			fmt.Fprint(w, `{"verified":true,"confidence":0.93,"explanation":"matches Q2 filings","sources":[{"title":"Q2 report","url":"https://example.com/q2"}]}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	ctx := context.Background()

	code, err := client.ExecuteCode(ctx, "print(1)", "python")
	require.NoError(t, err)
	assert.Equal(t, "1\n", code.Output)
	assert.InDelta(t, 0.12, code.ExecutionTime, 0.001)

	page, err := client.BrowseURL(ctx, "https://example.com", "read")
	require.NoError(t, err)
	assert.Equal(t, "page text", page.Content)
	assert.Equal(t, "aWJi", page.Screenshot)

	verdict, err := client.VerifyFact(ctx, "rates rose in Q2")
	require.NoError(t, err)
	assert.True(t, verdict.Verified)
	assert.InDelta(t, 0.93, verdict.Confidence, 0.001)
	assert.Equal(t, "matches Q2 filings", verdict.Explanation)
	require.Len(t, verdict.Sources, 1)
	assert.Equal(t, "Q2 report", verdict.Sources[0].Title)
}

func TestOneShots_ReportedFailureSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/code/execute":
			fmt.Fprint(w, `{"success":false,"error":"sandbox timed out"}`)
		case "/browse":
			fmt.Fprint(w, `{"success":false,"error":"page unreachable"}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", zerolog.Nop())
	ctx := context.Background()

	// An HTTP 200 carrying success=false is an application error, never a
	// zero-valued result.
	code, err := client.ExecuteCode(ctx, "while True: pass", "python")
	require.Error(t, err)
	assert.Nil(t, code)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "sandbox timed out", apiErr.Message)

	page, err := client.BrowseURL(ctx, "https://example.com", "read")
	require.Error(t, err)
	assert.Nil(t, page)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "page unreachable", apiErr.Message)
}

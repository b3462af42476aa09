package agent

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/sectorlens/sectorlens/internal/domain"
)

// statusRank orders lifecycle states for the monotonicity rule. Paused and
// executing share a rank so they can cycle; everything else only moves
// forward.
var statusRank = map[domain.ExecutionStatus]int{
	domain.ExecIdle:      0,
	domain.ExecPlanning:  1,
	domain.ExecExecuting: 2,
	domain.ExecPaused:    2,
	domain.ExecCompleted: 3,
	domain.ExecError:     3,
	domain.ExecCancelled: 3,
}

// Tracker folds a stream of execution events into an ExecutionState. It is
// not safe for concurrent use; drive it from the goroutine consuming the
// stream.
type Tracker struct {
	state domain.ExecutionState
	log   zerolog.Logger
	now   func() time.Time
}

// NewTracker creates a tracker for one execution.
func NewTracker(executionID string, log zerolog.Logger) *Tracker {
	return &Tracker{
		state: domain.ExecutionState{
			ExecutionID: executionID,
			Status:      domain.ExecIdle,
		},
		log: log,
		now: time.Now,
	}
}

// State returns a copy of the current state.
func (t *Tracker) State() domain.ExecutionState {
	return t.state
}

// Apply folds one event into the state. Events with undecodable payloads
// are logged and dropped; the state stays valid.
func (t *Tracker) Apply(ev domain.ExecutionEvent) {
	if t.state.StartedAt.IsZero() {
		t.state.StartedAt = t.now()
	}
	t.state.UpdatedAt = t.now()

	switch ev.Type {
	case domain.EventPlan:
		var payload struct {
			Steps []domain.ExecutionStep `json:"steps"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.dropped(ev, err)
			return
		}
		t.state.Steps = payload.Steps
		t.setStatus(domain.ExecPlanning)

	case domain.EventStep:
		var step domain.ExecutionStep
		if err := json.Unmarshal(ev.Data, &step); err != nil {
			t.dropped(ev, err)
			return
		}
		t.upsertStep(step)
		t.setStatus(domain.ExecExecuting)

	case domain.EventContent:
		t.state.Content += decodeText(ev.Data)

	case domain.EventReasoning:
		t.state.Reasoning += decodeText(ev.Data)

	case domain.EventArtifact:
		var artifact domain.Artifact
		if err := json.Unmarshal(ev.Data, &artifact); err != nil {
			t.dropped(ev, err)
			return
		}
		t.state.Artifacts = append(t.state.Artifacts, artifact)

	case domain.EventStatus:
		var payload struct {
			Status   domain.ExecutionStatus `json:"status"`
			Progress *int                   `json:"progress"`
		}
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.dropped(ev, err)
			return
		}
		if payload.Status != "" {
			t.setStatus(payload.Status)
		}
		if payload.Progress != nil {
			t.state.Progress = *payload.Progress
		}

	case domain.EventDone:
		t.setStatus(domain.ExecCompleted)
		if t.state.Status == domain.ExecCompleted {
			t.state.Progress = 100
		}

	case domain.EventError:
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(ev.Data, &payload)
		msg := payload.Message
		if msg == "" {
			msg = payload.Error
		}
		if msg == "" {
			msg = "execution failed"
		}
		if t.setStatus(domain.ExecError) {
			t.state.Error = msg
		}

	default:
		t.log.Debug().Str("type", ev.Type).Msg("ignoring unknown execution event")
	}
}

// setStatus applies the transition rules: never leave a terminal state,
// never move backwards, but allow the paused/executing cycle. It reports
// whether the transition took effect.
func (t *Tracker) setStatus(next domain.ExecutionStatus) bool {
	cur := t.state.Status
	if cur == next {
		return true
	}
	if cur.Terminal() {
		return false
	}
	curRank, okCur := statusRank[cur]
	nextRank, okNext := statusRank[next]
	if !okNext {
		t.log.Warn().Str("status", string(next)).Msg("ignoring unknown execution status")
		return false
	}
	pauseCycle := (cur == domain.ExecPaused && next == domain.ExecExecuting) ||
		(cur == domain.ExecExecuting && next == domain.ExecPaused)
	if okCur && nextRank <= curRank && !pauseCycle {
		return false
	}
	t.state.Status = next
	return true
}

// upsertStep updates a known step in place or appends it, preserving
// arrival order.
func (t *Tracker) upsertStep(step domain.ExecutionStep) {
	for i := range t.state.Steps {
		if t.state.Steps[i].ID == step.ID {
			t.state.Steps[i] = step
			return
		}
	}
	t.state.Steps = append(t.state.Steps, step)
}

func (t *Tracker) dropped(ev domain.ExecutionEvent, err error) {
	t.log.Warn().Err(err).Str("type", ev.Type).Msg("dropping undecodable execution event")
}

// decodeText accepts either a bare JSON string or an object with a text,
// content or delta field.
func decodeText(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var payload struct {
		Text    string `json:"text"`
		Content string `json:"content"`
		Delta   string `json:"delta"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Text != "":
		return payload.Text
	case payload.Content != "":
		return payload.Content
	default:
		return payload.Delta
	}
}

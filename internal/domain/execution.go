package domain

import (
	"encoding/json"
	"time"
)

// ExecutionStatus tracks the lifecycle of a remote agent task. Transitions
// are monotonic except for the paused/executing cycle; completed, error and
// cancelled are terminal.
type ExecutionStatus string

const (
	ExecIdle      ExecutionStatus = "idle"
	ExecPlanning  ExecutionStatus = "planning"
	ExecExecuting ExecutionStatus = "executing"
	ExecPaused    ExecutionStatus = "paused"
	ExecCompleted ExecutionStatus = "completed"
	ExecError     ExecutionStatus = "error"
	ExecCancelled ExecutionStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecCompleted || s == ExecError || s == ExecCancelled
}

// ExecutionPhase identifies which stage of work a step belongs to
type ExecutionPhase string

const (
	PhasePlanning     ExecutionPhase = "planning"
	PhaseResearch     ExecutionPhase = "research"
	PhaseExecution    ExecutionPhase = "execution"
	PhaseVerification ExecutionPhase = "verification"
	PhaseDelivery     ExecutionPhase = "delivery"
)

// Artifact is a file or document emitted by an execution
type Artifact struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url,omitempty"`
}

// ExecutionStep is one phase of an execution. Steps appear in event-arrival
// order.
type ExecutionStep struct {
	ID        string          `json:"id"`
	Phase     ExecutionPhase  `json:"phase"`
	Status    string          `json:"status"`
	Detail    string          `json:"detail,omitempty"`
	Progress  int             `json:"progress"`
	Artifacts []Artifact      `json:"artifacts,omitempty"`
	SubSteps  []ExecutionStep `json:"sub_steps,omitempty"`
}

// ExecutionState is the client-visible progress of one remote agent task,
// built incrementally from stream events.
type ExecutionState struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	Steps       []ExecutionStep `json:"steps"`
	Content     string          `json:"content"`
	Reasoning   string          `json:"reasoning"`
	Artifacts   []Artifact      `json:"artifacts,omitempty"`
	Error       string          `json:"error,omitempty"`
	Progress    int             `json:"progress"`
	StartedAt   time.Time       `json:"started_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Event types recognized by convention. The stream client does not enforce
// this set; unknown types pass through to the consumer.
const (
	EventPlan      = "plan"
	EventStep      = "step"
	EventContent   = "content"
	EventReasoning = "reasoning"
	EventArtifact  = "artifact"
	EventStatus    = "status"
	EventDone      = "done"
	EventError     = "error"
)

// ExecutionEvent is one decoded frame from the agent execution stream. Data
// is left raw; consumers decode the shapes they care about.
type ExecutionEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

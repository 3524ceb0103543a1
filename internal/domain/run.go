package domain

import "time"

type ThreadID string
type RunID string

type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the executor will never advance this run again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	default:
		return false
	}
}

func (s RunStatus) Succeeded() bool {
	return s == RunStatusCompleted
}

// Run is one execution attempt of an agent against a thread. Status and the
// pending-action payload come exclusively from executor poll responses.
type Run struct {
	ID             RunID
	ThreadID       ThreadID
	AgentID        AgentID
	Status         RunStatus
	RequiredAction *RequiredAction
	LastError      *RunError
	CreatedAt      time.Time
}

type RunError struct {
	Code    string
	Message string
}

func (e RunError) String() string {
	if e.Code == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Code
	}

	return e.Code + ": " + e.Message
}

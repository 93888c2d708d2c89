package store

import (
	"encoding/json"
	"time"

	"github.com/actis-dev/actis/pkg/schema"
)

// Invocation is the persisted record of one action execution.
type Invocation struct {
	ID         string                  `json:"id"`
	Action     string                  `json:"action"`
	Params     map[string]any          `json:"params,omitempty"`
	Status     schema.InvocationStatus `json:"status"`
	Result     json.RawMessage         `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt *time.Time              `json:"finished_at,omitempty"`
	DurationMs int64                   `json:"duration_ms,omitempty"`
}

// InvocationUpdate carries the terminal fields written when an invocation
// finishes.
type InvocationUpdate struct {
	Status     schema.InvocationStatus `json:"status"`
	Result     json.RawMessage         `json:"result,omitempty"`
	Error      string                  `json:"error,omitempty"`
	FinishedAt time.Time               `json:"finished_at"`
	DurationMs int64                   `json:"duration_ms"`
}

// InvocationFilter specifies criteria for listing invocations.
type InvocationFilter struct {
	Action string                  `json:"action,omitempty"`
	Status schema.InvocationStatus `json:"status,omitempty"`
	Since  *time.Time              `json:"since,omitempty"`
	Limit  int                     `json:"limit,omitempty"`
	Offset int                     `json:"offset,omitempty"`
}

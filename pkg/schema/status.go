package schema

// InvocationStatus is the lifecycle state of one action invocation.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
)

// validInvocationTransitions is the closed transition table. Completed and
// failed are terminal.
var validInvocationTransitions = map[InvocationStatus][]InvocationStatus{
	InvocationPending: {InvocationRunning, InvocationFailed},
	InvocationRunning: {InvocationCompleted, InvocationFailed},
}

// ValidInvocationTransition reports whether from -> to is a legal lifecycle
// transition.
func ValidInvocationTransition(from, to InvocationStatus) bool {
	for _, next := range validInvocationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s InvocationStatus) Terminal() bool {
	return len(validInvocationTransitions[s]) == 0
}

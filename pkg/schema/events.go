package schema

// Event type constants for the invocation stream.
const (
	EventInvocationStarted   = "invocation_started"
	EventInvocationCompleted = "invocation_completed"
	EventInvocationFailed    = "invocation_failed"

	EventActionResolved     = "action_resolved"
	EventResolutionFollowup = "resolution_followup"
	EventResolutionFailed   = "resolution_failed"

	EventParamDefaulted = "param_defaulted"
)

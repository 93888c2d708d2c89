package store

import "context"

// InvocationStore is the append-oriented persistence contract for the
// invocation log. All implementations must be safe for concurrent use.
type InvocationStore interface {
	// Append records a new invocation in its initial state.
	Append(ctx context.Context, inv *Invocation) error
	// Finish writes the terminal status, result or error, and timings.
	Finish(ctx context.Context, id string, update InvocationUpdate) error
	Get(ctx context.Context, id string) (*Invocation, error)
	List(ctx context.Context, filter InvocationFilter) ([]*Invocation, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}

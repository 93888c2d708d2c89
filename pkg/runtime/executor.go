package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/actis-dev/actis/internal/store"
	"github.com/actis-dev/actis/internal/streaming"
	"github.com/actis-dev/actis/pkg/schema"
)

// ExecutionResult is the total outcome of one invocation. Action failures
// are carried in Error; Execute itself never returns an error.
type ExecutionResult struct {
	Success      bool   `json:"success"`
	Result       any    `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
	InvocationID string `json:"invocation_id,omitempty"`
}

// Executor runs manifest actions: it resolves the parameter schema from the
// manifest, coerces the raw input, looks up the binding and invokes it with
// panic recovery. Hub and store are optional collaborators.
type Executor struct {
	catalog *Catalog
	hub     streaming.Hub
	log     store.InvocationStore
	logger  *slog.Logger
	timeout time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithHub publishes lifecycle events to the given hub.
func WithHub(h streaming.Hub) ExecutorOption {
	return func(e *Executor) { e.hub = h }
}

// WithStore appends invocations to the given store.
func WithStore(s store.InvocationStore) ExecutorOption {
	return func(e *Executor) { e.log = s }
}

// WithLogger sets the executor's logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithTimeout bounds each invocation. Zero means no timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor over the catalog.
func NewExecutor(c *Catalog, opts ...ExecutorOption) *Executor {
	e := &Executor{
		catalog: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// invocation tracks one run's identity and lifecycle state.
type invocation struct {
	id     string
	action string
	status schema.InvocationStatus
	start  time.Time
}

// Execute runs the named action against raw input. The result is always a
// populated ExecutionResult; lookup failures, action errors, panics and
// timeouts all surface as Success=false with a message, never as a Go error
// or an escaped panic.
func (e *Executor) Execute(ctx context.Context, name string, raw map[string]any) ExecutionResult {
	inv := &invocation{
		id:     uuid.NewString(),
		action: name,
		status: schema.InvocationPending,
		start:  time.Now().UTC(),
	}
	e.append(ctx, inv, raw)

	desc := e.catalog.Describe(name)
	if desc == nil {
		return e.fail(ctx, inv, fmt.Sprintf("unknown action %q", name))
	}

	params, defaulted := CoerceParams(desc.Params, raw)
	for _, path := range defaulted {
		e.logger.Warn("parameter defaulted",
			"invocation_id", inv.id, "action", name, "param", path)
		e.publish(ctx, inv, schema.EventParamDefaulted, map[string]any{"param": path})
	}

	binding, ok := e.catalog.Lookup(name)
	if !ok {
		return e.fail(ctx, inv, fmt.Sprintf("action %q has no registered binding", name))
	}

	e.transition(ctx, inv, schema.InvocationRunning, nil)

	result, err := e.invoke(ctx, binding, params)
	if err != nil {
		return e.fail(ctx, inv, err.Error())
	}
	return e.complete(ctx, inv, result)
}

// invoke calls the binding with panic recovery and optional timeout
// enforcement. The binding runs in its own goroutine so a deadline fires
// even when the binding ignores its context.
func (e *Executor) invoke(ctx context.Context, binding Binding, params map[string]any) (any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: schema.NewErrorf(schema.ErrCodeExecution, "%v", r)}
			}
		}()
		result, err := binding(ctx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, schema.NewErrorf(schema.ErrCodeTimeout, "action timed out after %s", e.timeout)
		}
		return nil, ctx.Err()
	}
}

func (e *Executor) complete(ctx context.Context, inv *invocation, result any) ExecutionResult {
	e.transition(ctx, inv, schema.InvocationCompleted, result)
	e.finish(ctx, inv, result, "")
	return ExecutionResult{Success: true, Result: result, InvocationID: inv.id}
}

func (e *Executor) fail(ctx context.Context, inv *invocation, msg string) ExecutionResult {
	e.transition(ctx, inv, schema.InvocationFailed, map[string]any{"error": msg})
	e.finish(ctx, inv, nil, msg)
	return ExecutionResult{Success: false, Error: msg, InvocationID: inv.id}
}

// transition validates and applies a lifecycle change, then publishes the
// matching stream event.
func (e *Executor) transition(ctx context.Context, inv *invocation, to schema.InvocationStatus, payload any) {
	if !schema.ValidInvocationTransition(inv.status, to) {
		e.logger.Error("invalid invocation transition",
			"invocation_id", inv.id, "action", inv.action,
			"from", string(inv.status), "to", string(to))
		return
	}
	inv.status = to

	var event string
	switch to {
	case schema.InvocationRunning:
		event = schema.EventInvocationStarted
	case schema.InvocationCompleted:
		event = schema.EventInvocationCompleted
	case schema.InvocationFailed:
		event = schema.EventInvocationFailed
	default:
		return
	}
	e.publish(ctx, inv, event, payload)
}

func (e *Executor) publish(ctx context.Context, inv *invocation, eventType string, payload any) {
	if e.hub == nil {
		return
	}
	err := e.hub.Publish(ctx, streaming.Event{
		InvocationID: inv.id,
		Action:       inv.action,
		EventType:    eventType,
		Payload:      payload,
	})
	if err != nil {
		e.logger.Warn("publish event", "invocation_id", inv.id, "event", eventType, "error", err)
	}
}

func (e *Executor) append(ctx context.Context, inv *invocation, raw map[string]any) {
	if e.log == nil {
		return
	}
	err := e.log.Append(ctx, &store.Invocation{
		ID:        inv.id,
		Action:    inv.action,
		Params:    raw,
		Status:    inv.status,
		StartedAt: inv.start,
	})
	if err != nil {
		e.logger.Warn("append invocation", "invocation_id", inv.id, "error", err)
	}
}

func (e *Executor) finish(ctx context.Context, inv *invocation, result any, errMsg string) {
	if e.log == nil {
		return
	}
	var raw json.RawMessage
	if result != nil {
		if data, err := json.Marshal(result); err == nil {
			raw = data
		}
	}
	now := time.Now().UTC()
	err := e.log.Finish(ctx, inv.id, store.InvocationUpdate{
		Status:     inv.status,
		Result:     raw,
		Error:      errMsg,
		FinishedAt: now,
		DurationMs: now.Sub(inv.start).Milliseconds(),
	})
	if err != nil {
		e.logger.Warn("finish invocation", "invocation_id", inv.id, "error", err)
	}
}

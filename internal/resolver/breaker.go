package resolver

import (
	"sync"
	"time"

	"github.com/actis-dev/actis/pkg/schema"
)

// CircuitState represents the state of the resolver circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Normal operation
	CircuitOpen                         // Failing, rejecting calls
	CircuitHalfOpen                     // Testing recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before transitioning to half-open.
	Cooldown time.Duration
	// HalfOpenMax is the number of test requests allowed in half-open state.
	HalfOpenMax int
}

// DefaultBreakerConfig returns a sensible default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		HalfOpenMax:      1,
	}
}

// Breaker guards the single remote resolution endpoint.
type Breaker struct {
	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	lastFailureTime     time.Time
	halfOpenAttempts    int
	config              BreakerConfig
}

// NewBreaker creates a closed breaker with the given config.
func NewBreaker(config BreakerConfig) *Breaker {
	return &Breaker{state: CircuitClosed, config: config}
}

// AllowRequest checks whether a resolution request is allowed.
// Returns nil if allowed, or a CIRCUIT_OPEN error otherwise.
func (b *Breaker) AllowRequest() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		// Check if cooldown has elapsed.
		if time.Since(b.lastFailureTime) >= b.config.Cooldown {
			b.state = CircuitHalfOpen
			b.halfOpenAttempts = 1 // this request counts as the first test request
			return nil
		}
		return schema.NewErrorf(schema.ErrCodeCircuitOpen,
			"resolver circuit open: %d consecutive failures, cooldown remaining",
			b.consecutiveFailures).
			WithDetails(map[string]any{
				"consecutive_failures": b.consecutiveFailures,
				"state":                b.state.String(),
				"cooldown_remaining":   (b.config.Cooldown - time.Since(b.lastFailureTime)).String(),
			})

	case CircuitHalfOpen:
		if b.halfOpenAttempts >= b.config.HalfOpenMax {
			return schema.NewError(schema.ErrCodeCircuitOpen,
				"resolver circuit half-open: max test requests reached")
		}
		b.halfOpenAttempts++
		return nil
	}

	return nil
}

// RecordSuccess records a successful resolution.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.halfOpenAttempts = 0
	b.state = CircuitClosed
}

// RecordFailure records a failed resolution and returns the new state.
func (b *Breaker) RecordFailure() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.lastFailureTime = time.Now()

	if b.state == CircuitHalfOpen {
		// Any failure in half-open reopens the circuit.
		b.state = CircuitOpen
		return CircuitOpen
	}

	if b.consecutiveFailures >= b.config.FailureThreshold {
		b.state = CircuitOpen
		return CircuitOpen
	}

	return b.state
}

// State returns the current state, applying the open-to-half-open cooldown
// transition.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == CircuitOpen && time.Since(b.lastFailureTime) >= b.config.Cooldown {
		b.state = CircuitHalfOpen
		b.halfOpenAttempts = 0
	}
	return b.state
}

// Stats returns diagnostic information about the breaker.
func (b *Breaker) Stats() map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]any{
		"state":                b.state.String(),
		"consecutive_failures": b.consecutiveFailures,
		"failure_threshold":    b.config.FailureThreshold,
		"cooldown":             b.config.Cooldown.String(),
	}
}

package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/actis-dev/actis/pkg/schema"
)

// PreviousContext carries the prior resolution so a conversation can refine
// or chain actions.
type PreviousContext struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// Resolution is the outcome of one resolve call. Exactly one of
// Action/Followup is set.
type Resolution struct {
	Action   string         `json:"action,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Followup string         `json:"followup,omitempty"`
}

// resolveRequest is the wire request for POST /resolve-action.
type resolveRequest struct {
	UserIntent      string                    `json:"userIntent"`
	Actions         []schema.ActionDescriptor `json:"actions"`
	PreviousContext *PreviousContext          `json:"previousContext,omitempty"`
}

// resolveResponse is the wire response: action+params, a followup, or an error.
type resolveResponse struct {
	Action   string         `json:"action,omitempty"`
	Params   map[string]any `json:"params,omitempty"`
	Followup *struct {
		Message string `json:"message"`
	} `json:"followup,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Client resolves free-form user intent into an action and parameters via
// the remote resolution service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	policy  RetryPolicy
	breaker *Breaker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *Breaker) ClientOption {
	return func(c *Client) { c.breaker = b }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a resolver client. The API key typically comes from the
// ACTIS_API_KEY environment variable; an empty key is reported at call time,
// not here, so construction never fails.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
		policy:  DefaultRetryPolicy(),
		breaker: NewBreaker(DefaultBreakerConfig()),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve posts the user intent and the manifest's action descriptors to the
// remote service. Retryable failures are retried with exponential backoff;
// the circuit breaker rejects calls while the endpoint is failing.
func (c *Client) Resolve(ctx context.Context, intent string, m *schema.Manifest, prev *PreviousContext) (*Resolution, error) {
	if c.apiKey == "" {
		return nil, schema.NewError(schema.ErrCodeResolution, "resolver API key is not configured")
	}
	if intent == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty user intent")
	}

	if err := c.breaker.AllowRequest(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(resolveRequest{
		UserIntent:      intent,
		Actions:         m.Actions,
		PreviousContext: prev,
	})
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeResolution, "encode resolve request").WithCause(err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.Max; attempt++ {
		if attempt > 0 {
			delay := ComputeBackoff(c.policy, attempt-1)
			c.logger.Debug("retrying resolution", "attempt", attempt, "delay", delay)
			if err := WaitForBackoff(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := c.post(ctx, body)
		if err == nil {
			c.breaker.RecordSuccess()
			return res, nil
		}
		lastErr = err
		c.breaker.RecordFailure()

		if !IsRetryableError(err) {
			break
		}
	}
	return nil, lastErr
}

// post performs one HTTP round trip and maps the response onto a Resolution.
func (c *Client) post(ctx context.Context, body []byte) (*Resolution, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/resolve-action", bytes.NewReader(body))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeResolution, "build resolve request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeResolution, "resolve request failed").WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeResolution, "read resolve response").WithCause(err)
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, schema.NewErrorf(schema.ErrCodeResolution,
			"resolver returned status %d", resp.StatusCode)
	}

	var out resolveResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, schema.NewError(schema.ErrCodeResolution, "decode resolve response").WithCause(err)
	}

	switch {
	case out.Error != "":
		// A structured remote error is a final answer, not a transport
		// fault, so the default code is non-retryable.
		code := out.Code
		if code == "" {
			code = schema.ErrCodeExecution
		}
		return nil, schema.NewError(code, out.Error)
	case resp.StatusCode != http.StatusOK:
		return nil, schema.NewErrorf(schema.ErrCodeResolution,
			"resolver returned status %d", resp.StatusCode)
	case out.Followup != nil:
		return &Resolution{Followup: out.Followup.Message}, nil
	case out.Action != "":
		return &Resolution{Action: out.Action, Params: out.Params}, nil
	default:
		return nil, schema.NewError(schema.ErrCodeResolution, "resolver returned neither action nor followup")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/actis-dev/actis/internal/interpolate"
	"github.com/actis-dev/actis/internal/resolver"
	"github.com/actis-dev/actis/internal/store"
	"github.com/actis-dev/actis/pkg/schema"
)

// handleHealth answers liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListActions returns the manifest document.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Catalog.Manifest())
}

// handleExecute runs one named action against the raw params in the body.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if s.deps.Catalog.Describe(name) == nil {
		writeError(w, http.StatusNotFound, schema.ErrCodeNotFound,
			fmt.Sprintf("unknown action %q", name))
		return
	}

	var body struct {
		Params map[string]any `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation,
			fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	result := s.deps.Executor.Execute(r.Context(), name, body.Params)
	writeJSON(w, http.StatusOK, result)
}

// handleResolve runs the full intent pipeline: remote resolution, token
// interpolation against the previous context, then local execution.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	if s.deps.Resolver == nil {
		writeError(w, http.StatusServiceUnavailable, schema.ErrCodeResolution,
			"resolver is not configured")
		return
	}

	var body struct {
		Intent          string                    `json:"intent"`
		PreviousContext *resolver.PreviousContext `json:"previousContext"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation,
			fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if body.Intent == "" {
		writeError(w, http.StatusBadRequest, schema.ErrCodeValidation, "intent is required")
		return
	}

	res, err := s.deps.Resolver.Resolve(r.Context(), body.Intent,
		s.deps.Catalog.Manifest(), body.PreviousContext)
	if err != nil {
		writeActisError(w, err)
		return
	}

	if res.Followup != "" {
		writeJSON(w, http.StatusOK, map[string]string{"followup": res.Followup})
		return
	}

	scope := &interpolate.Scope{Env: interpolate.EnvScope()}
	if prev := body.PreviousContext; prev != nil {
		scope.Params = prev.Params
		scope.Context = map[string]any{"action": prev.Action, "params": prev.Params}
	}
	params, err := s.interp.ResolveParams(res.Params, scope)
	if err != nil {
		writeActisError(w, err)
		return
	}

	result := s.deps.Executor.Execute(r.Context(), res.Action, params)
	writeJSON(w, http.StatusOK, map[string]any{
		"action": res.Action,
		"params": params,
		"result": result,
	})
}

// handleInvocations lists the invocation log, newest first.
func (s *Server) handleInvocations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store == nil {
		writeError(w, http.StatusServiceUnavailable, schema.ErrCodeStore,
			"invocation store is not configured")
		return
	}

	q := r.URL.Query()
	filter := store.InvocationFilter{
		Action: q.Get("action"),
		Status: schema.InvocationStatus(q.Get("status")),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	invocations, err := s.deps.Store.List(r.Context(), filter)
	if err != nil {
		writeActisError(w, err)
		return
	}
	if invocations == nil {
		invocations = []*store.Invocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": invocations})
}

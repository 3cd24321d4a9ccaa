package api

import (
	"bytes"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
	pkgio "github.com/matzehuels/flowview/pkg/io"
	"github.com/matzehuels/flowview/pkg/observability"
)

// Mutation names, as reported to observability hooks.
const (
	opExpand   = "expand"
	opCollapse = "collapse"
	opToggle   = "toggle"
	opReset    = "reset"
)

// maxBody caps the size of request bodies.
const maxBody = 1 << 20

// SessionResponse is the body returned by every session endpoint.
type SessionResponse struct {
	ID       string     `json:"id"`
	Expanded []string   `json:"expanded"`
	View     pkgio.View `json:"view"`
}

// CreateRequest is the optional body of POST /sessions.
type CreateRequest struct {
	Expanded []string `json:"expanded"`
}

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newSessionResponse(id string, m *hierarchy.Manager) SessionResponse {
	expanded := m.ExpandedIDs()
	if expanded == nil {
		expanded = []string{}
	}
	return SessionResponse{ID: id, Expanded: expanded, View: pkgio.NewView(m)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body := map[string]any{
		"status":   "ok",
		"nodes":    len(s.dataset.Nodes),
		"links":    len(s.dataset.Links),
		"sessions": len(s.managers),
		"dataset":  s.fingerprint,
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ds := s.dataset
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, ferrors.Wrap(ferrors.ErrCodeInvalidInput, err, "read request"))
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, ferrors.Wrap(ferrors.ErrCodeInvalidInput, err, "decode request"))
			return
		}
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	ls := &liveSession{m: s.newManager()}
	if len(req.Expanded) > 0 {
		ls.m.Restore(req.Expanded)
	}
	if err := s.save(ctx, id, ls); err != nil {
		writeError(w, err)
		return
	}
	s.managers[id] = ls
	s.logger.Debug("session created", "session", id, "expanded", len(ls.m.ExpandedIDs()))
	writeJSON(w, http.StatusCreated, newSessionResponse(id, ls.m))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, err := s.load(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, ls.m))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := ferrors.ValidateID(id); err != nil {
		writeError(w, err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(r.Context(), id); err != nil {
		writeError(w, ferrors.Wrap(ferrors.ErrCodeInternal, err, "delete session %s", id))
		return
	}
	delete(s.managers, id)
	w.WriteHeader(http.StatusNoContent)
}

// handleMutation applies op to the session named in the path. Requests
// naming an unknown or non-expandable node succeed without changing
// anything. When the new state cannot be saved the session is dropped from
// memory, so the next request rebuilds it from the stored state.
func (s *Server) handleMutation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := pathParam(r, "id")
		node := pathParam(r, "node")
		if op != opReset {
			if err := ferrors.ValidateID(node); err != nil {
				writeError(w, err)
				return
			}
		}

		ctx := r.Context()
		s.mu.Lock()
		defer s.mu.Unlock()

		ls, err := s.load(ctx, id)
		if err != nil {
			writeError(w, err)
			return
		}
		m := ls.m

		start := time.Now()
		applied := true
		switch op {
		case opExpand:
			applied = expandable(m, node)
			m.Expand(node)
		case opCollapse:
			applied = expandable(m, node)
			m.Collapse(node)
		case opToggle:
			applied = expandable(m, node)
			m.Toggle(node)
		case opReset:
			m.CollapseAll()
		}
		hooks := observability.Visibility()
		hooks.OnMutation(ctx, op, node, applied)
		resp := newSessionResponse(id, m)
		hooks.OnRecompute(ctx, len(resp.View.Nodes), len(resp.View.Links), time.Since(start))

		if err := s.save(ctx, id, ls); err != nil {
			delete(s.managers, id)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func expandable(m *hierarchy.Manager, id string) bool {
	n, ok := m.Node(id)
	return ok && n.Expandable
}

// pathParam returns the decoded URL parameter. chi matches against the raw
// path when the request escapes a slash, so the value may still be escaped.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if r.URL.RawPath != "" {
		if u, err := url.PathUnescape(v); err == nil {
			return u
		}
	}
	return v
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"took", time.Since(start).Round(time.Microsecond),
			"id", middleware.GetReqID(r.Context()))
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON error response, choosing the status from
// its code.
func writeError(w http.ResponseWriter, err error) {
	code := ferrors.GetCode(err)
	if code == "" {
		code = ferrors.ErrCodeInternal
	}
	writeJSON(w, statusFor(code), ErrorResponse{Error: ferrors.UserMessage(err), Code: string(code)})
}

func statusFor(code ferrors.Code) int {
	switch code {
	case ferrors.ErrCodeInvalidInput, ferrors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case ferrors.ErrCodeSessionNotFound, ferrors.ErrCodeNotFound:
		return http.StatusNotFound
	case ferrors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/lanegraph/pkg/buildinfo"
	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/observability"
	"github.com/matzehuels/lanegraph/pkg/session"
)

// CreateRequest is the body of POST /api/sessions.
type CreateRequest struct {
	Path     string `json:"path"`
	PageSize int    `json:"page_size,omitempty"`
}

// ToggleRequest is the body of POST /api/sessions/{id}/toggle.
type ToggleRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Replace is the wire form of [delta.Replace].
type Replace struct {
	From int `json:"from"`
	To   int `json:"to"`
	Add  int `json:"add"`
}

// ChangeResponse answers every mutating request.
type ChangeResponse struct {
	Replace Replace         `json:"replace"`
	Session session.Summary `json:"session"`
}

// RowsResponse answers GET /api/sessions/{id}/rows.
type RowsResponse struct {
	From int               `json:"from"`
	To   int               `json:"to"`
	Rows []session.RowView `json:"rows"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error struct {
		Code    errors.Code `json:"code"`
		Message string      `json:"message"`
	} `json:"error"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.Get(chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		h(w, r, sess)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  buildinfo.Version,
		"sessions": s.sessions.Len(),
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessions.List())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.PageSize < 0 {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "page_size must not be negative"))
		return
	}
	sess, err := s.createSession(r.Context(), req.Path, req.PageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, sess.Summary())
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Summary())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	from, err := intParam(r, "from", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := intParam(r, "to", from+100)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if to-from > MaxRowsPerFetch {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "at most %d rows per request", MaxRowsPerFetch))
		return
	}
	rows, err := sess.Snapshot(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RowsResponse{From: from, To: from + len(rows), Rows: rows})
}

func (s *Server) handleMore(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.change(w, r, sess, func() (delta.Replace, error) { return sess.LoadMore(r.Context()) })
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req ToggleRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.change(w, r, sess, func() (delta.Replace, error) { return sess.Toggle(req.Row, req.Col) })
}

func (s *Server) handleCollapseAll(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.change(w, r, sess, sess.CollapseAll)
}

func (s *Server) handleExpandAll(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.change(w, r, sess, sess.ExpandAll)
}

func (s *Server) change(w http.ResponseWriter, r *http.Request, sess *session.Session, fn func() (delta.Replace, error)) {
	rep, err := fn()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ChangeResponse{
		Replace: Replace{From: rep.From, To: rep.To, Add: rep.AddElementsCount},
		Session: sess.Summary(),
	})
}

// =============================================================================
// Helpers
// =============================================================================

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode request body")
	}
	return nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "query parameter %s", name)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "err", err)
	}
	var resp ErrorResponse
	resp.Error.Code = errors.GetCode(err)
	if resp.Error.Code == "" {
		resp.Error.Code = errors.ErrCodeInternal
	}
	resp.Error.Message = errors.UserMessage(err)
	writeJSON(w, status, resp)
}

// observe reports every request to the HTTP hooks and the debug log.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := context.WithoutCancel(r.Context())
		observability.HTTP().OnRequest(ctx, r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.HTTP().OnResponse(ctx, r.Method, r.URL.Path, status, time.Since(start))
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status, "took", time.Since(start), "id", middleware.GetReqID(r.Context()))
	})
}

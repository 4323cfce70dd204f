package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/me/qcal/internal/parser"
	"github.com/me/qcal/internal/session"
	"github.com/me/qcal/pkg/model"
)

type startSessionRequest struct {
	Username  string       `json:"username"`
	ProjectID string       `json:"project_id"`
	ChipID    string       `json:"chip_id"`
	Note      string       `json:"note,omitempty"`
	Flow      *parser.Flow `json:"flow"`
}

// handleStartSession runs a calibration session to completion and returns the
// summary. Partial success still returns 201; only fatal errors map to error
// statuses.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	if s.runner == nil {
		respondError(w, reqID, http.StatusServiceUnavailable,
			&model.APIError{Code: model.ErrInternal, Message: "session runner not configured"})
		return
	}

	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("decode request: "+err.Error()))
		return
	}
	if req.Flow == nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid session request",
			model.FieldError{Field: "flow", Message: "required"}))
		return
	}
	if err := parser.ValidateFlow(req.Flow); err != nil {
		respondDomainError(w, reqID, err)
		return
	}

	topo, err := s.store.GetTopology(r.Context(), req.ChipID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if topo == nil {
		respondDomainError(w, reqID, model.NewNotFoundError("topology", req.ChipID))
		return
	}

	sess, err := s.runner.Run(r.Context(), session.Request{
		Username:  req.Username,
		ProjectID: req.ProjectID,
		Note:      req.Note,
		Topology:  topo,
		Flow:      req.Flow,
	})
	if err != nil && sess == nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, sess)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}

	sessions, total, err := s.store.ListSessions(r.Context(), opts)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondList(w, reqID, sessions, &model.Pagination{Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	executionID := chi.URLParam(r, "executionID")

	sess, err := s.store.GetSession(r.Context(), executionID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if sess == nil {
		respondDomainError(w, reqID, model.NewNotFoundError("session", executionID))
		return
	}
	respondOK(w, reqID, sess)
}

// handleGetSessionHistory returns the append-only task-instance records for
// one execution, in transition order.
func (s *Server) handleGetSessionHistory(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	executionID := chi.URLParam(r, "executionID")

	sess, err := s.store.GetSession(r.Context(), executionID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if sess == nil {
		respondDomainError(w, reqID, model.NewNotFoundError("session", executionID))
		return
	}

	history, err := s.store.ListTaskInstances(r.Context(), executionID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, history)
}

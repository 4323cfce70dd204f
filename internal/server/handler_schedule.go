package server

import (
	"encoding/json"
	"net/http"

	"github.com/me/qcal/internal/session"
	"github.com/me/qcal/pkg/model"
)

type schedulePreviewRequest struct {
	ChipID string `json:"chip_id"`

	// Kind selects the plan type: "coupling" (default) or "one_qubit".
	Kind string `json:"kind,omitempty"`

	Strategy string          `json:"strategy,omitempty"`
	Targets  []model.QubitID `json:"targets,omitempty"`
}

// handleSchedulePreview builds a staged plan from a stored topology without
// starting a session. The response carries the full ScheduleResult including
// filter statistics.
func (s *Server) handleSchedulePreview(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req schedulePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("decode request: "+err.Error()))
		return
	}
	if req.ChipID == "" {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid preview request",
			model.FieldError{Field: "chip_id", Message: "required"}))
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

	switch req.Kind {
	case "", "coupling":
		plan, err := session.BuildCouplingPlan(topo, req.Targets, req.Strategy, s.config.Engine, s.logger)
		if err != nil {
			respondDomainError(w, reqID, err)
			return
		}
		respondOK(w, reqID, plan)

	case "one_qubit":
		plan, err := session.BuildOneQubitPlan(topo, req.Targets)
		if err != nil {
			respondDomainError(w, reqID, err)
			return
		}
		respondOK(w, reqID, plan)

	default:
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("invalid preview request",
			model.FieldError{Field: "kind", Message: "must be coupling or one_qubit"}))
	}
}

package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/me/qcal/pkg/model"
)

// handleUploadTopology accepts a YAML topology snapshot and stores it under
// its chip id, replacing any previous snapshot.
func (s *Server) handleUploadTopology(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		respondError(w, reqID, http.StatusBadRequest, model.NewValidationError("read body: "+err.Error()))
		return
	}

	topo, err := s.parser.ParseTopology(body)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}

	if err := s.store.SaveTopology(r.Context(), topo); err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondCreated(w, reqID, map[string]any{
		"chip_id":   topo.ChipID,
		"qubits":    len(topo.Qubits),
		"couplings": len(topo.Couplings),
	})
}

func (s *Server) handleListTopologies(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	ids, err := s.store.ListTopologies(r.Context())
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	respondOK(w, reqID, map[string]any{"chip_ids": ids})
}

func (s *Server) handleGetTopology(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	chipID := chi.URLParam(r, "chipID")

	topo, err := s.store.GetTopology(r.Context(), chipID)
	if err != nil {
		respondDomainError(w, reqID, err)
		return
	}
	if topo == nil {
		respondDomainError(w, reqID, model.NewNotFoundError("topology", chipID))
		return
	}
	respondOK(w, reqID, topo)
}

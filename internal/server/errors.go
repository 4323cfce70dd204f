package server

import (
	"errors"
	"net/http"

	"github.com/me/qcal/pkg/model"
)

// respondDomainError maps a domain error onto the HTTP envelope. Validation
// and configuration defects are the caller's fault, lock contention is a
// conflict, everything else is internal.
func respondDomainError(w http.ResponseWriter, reqID string, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		respondError(w, reqID, statusForCode(apiErr.Code), apiErr)
		return
	}

	var lock *model.LockContentionError
	if errors.As(err, &lock) {
		respondError(w, reqID, http.StatusConflict, &model.APIError{Code: model.ErrConflict, Message: err.Error()})
		return
	}

	switch model.KindOf(err) {
	case model.KindConfiguration, model.KindScheduling:
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{Code: model.ErrValidation, Message: err.Error()})
	default:
		respondError(w, reqID, http.StatusInternalServerError, &model.APIError{Code: model.ErrInternal, Message: err.Error()})
	}
}

func statusForCode(code model.ErrorCode) int {
	switch code {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

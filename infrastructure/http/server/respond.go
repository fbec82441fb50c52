package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"filedrop/errors"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("response encoding failed", "err", err)
	}
}

// writeError maps core errors onto HTTP status codes. Anything unmapped is
// an internal fault and is reported generically: no path names, storage
// locations or stack detail ever reach a response body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stderrors.Is(err, errors.ErrMalformedHeader),
		stderrors.Is(err, errors.ErrChecksumMismatch),
		stderrors.Is(err, errors.ErrOutOfBounds),
		stderrors.Is(err, errors.ErrInvalidFilename),
		stderrors.Is(err, errors.ErrInvalidPassword):
		status = http.StatusBadRequest
	case stderrors.Is(err, errors.ErrSessionNotFound),
		stderrors.Is(err, errors.ErrFileNotReady):
		status = http.StatusNotFound
	case stderrors.Is(err, errors.ErrSizeConflict),
		stderrors.Is(err, errors.ErrSessionTerminal),
		stderrors.Is(err, errors.ErrDeviceAlreadyExists):
		status = http.StatusConflict
	case stderrors.Is(err, errors.ErrRangeNotSatisfiable):
		status = http.StatusRequestedRangeNotSatisfiable
	case stderrors.Is(err, errors.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
		detail = "internal server error"
	}
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

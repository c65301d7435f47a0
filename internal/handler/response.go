package handler

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"faceemotion/internal/geometry"
	"faceemotion/internal/logger"
	"faceemotion/internal/middleware"
	"faceemotion/internal/response"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}, log *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error encoding JSON response: %v", err)
	}
}

// statusFor maps an error to the HTTP status reported to the client.
func statusFor(err error) int {
	var rerr *response.Error
	var tooLarge *http.MaxBytesError

	switch {
	case errors.As(err, &rerr):
		return rerr.Code
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, geometry.ErrInvalidDimensions):
		return http.StatusBadRequest
	case errors.Is(err, geometry.ErrEmptyRegion):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// clientMessage returns the status for err and the text safe to show the
// client. Internal errors are reduced to their status text.
func clientMessage(err error) (int, string) {
	code := statusFor(err)
	if code >= 500 {
		return code, http.StatusText(code)
	}
	return code, err.Error()
}

// writeError logs err with the request id and writes it as a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	code, message := clientMessage(err)
	requestID := middleware.GetRequestID(r.Context())

	fields := logger.Fields{"request_id": requestID, "path": r.URL.Path, "status": code}
	if code >= 500 {
		log.WithFields(fields).Errorf("Request failed: %v", err)
	} else {
		log.WithFields(fields).Warnf("Request rejected: %v", err)
	}

	writeJSON(w, code, errorBody{Error: message, RequestID: requestID}, log)
}

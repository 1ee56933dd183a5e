package httpapi

import (
	"encoding/json"
	"net/http"

	"engined/internal/orchestrator"
	"engined/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeOrchestratorError maps classified orchestrator failures to status
// codes and includes the classification in the payload.
func writeOrchestratorError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{
		Error: err.Error(),
		Code:  status,
		Class: string(orchestrator.ClassOf(err)),
	})
}

func statusFor(err error) int {
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	switch {
	case orchestrator.IsModelNotFound(err):
		return http.StatusNotFound
	case orchestrator.IsRecreateBusy(err):
		return http.StatusConflict
	case orchestrator.IsTimeout(err):
		return http.StatusGatewayTimeout
	case orchestrator.IsCancelled(err):
		return http.StatusServiceUnavailable
	case orchestrator.IsValidation(err):
		return http.StatusUnprocessableEntity
	}
	switch orchestrator.ClassOf(err) {
	case orchestrator.ClassMemory:
		return http.StatusInsufficientStorage
	case orchestrator.ClassGPU:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jeremyhahn/go-keyutils/pkg/correlation"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// Common errors
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// writeError writes an error response to the client, carrying the
// request's correlation ID so the failure can be matched to the logs.
func writeError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:         err.Error(),
		Code:          statusCode,
		CorrelationID: correlation.GetCorrelationID(r.Context()),
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// writeErrorWithMessage writes an error response with a custom message.
func writeErrorWithMessage(w http.ResponseWriter, r *http.Request, err error, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          statusCode,
		CorrelationID: correlation.GetCorrelationID(r.Context()),
	}

	if encErr := json.NewEncoder(w).Encode(resp); encErr != nil {
		log.Printf("Failed to encode error response: %v", encErr)
	}
}

// mapErrorToStatusCode maps key service errors to HTTP status codes.
// Revoked, expired and negatively instantiated keys existed once and
// are distinguishable from serials that never matched, so they map to
// 410 rather than 404.
func mapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, types.ErrKeyNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrKeyRevoked),
		errors.Is(err, types.ErrKeyExpired),
		errors.Is(err, types.ErrKeyRejected):
		return http.StatusGone
	case errors.Is(err, types.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, types.ErrQuotaExceeded):
		return http.StatusInsufficientStorage
	case errors.Is(err, types.ErrKeyringCycle),
		errors.Is(err, types.ErrNestingTooDeep):
		return http.StatusConflict
	case errors.Is(err, types.ErrOperationNotSupported):
		return http.StatusNotImplemented
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrInvalidIdentifier),
		errors.Is(err, types.ErrInvalidDescription),
		errors.Is(err, types.ErrInvalidArguments):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorLabel derives the metrics error_type label for a key service
// error. Labels are a closed set so cardinality stays bounded.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, types.ErrKeyNotFound):
		return "key_not_found"
	case errors.Is(err, types.ErrKeyRevoked):
		return "key_revoked"
	case errors.Is(err, types.ErrKeyExpired):
		return "key_expired"
	case errors.Is(err, types.ErrKeyRejected):
		return "key_rejected"
	case errors.Is(err, types.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, types.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, types.ErrKeyringCycle):
		return "keyring_cycle"
	case errors.Is(err, types.ErrNestingTooDeep):
		return "nesting_too_deep"
	case errors.Is(err, types.ErrOperationNotSupported):
		return "not_supported"
	case errors.Is(err, types.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, types.ErrInvalidDescription):
		return "invalid_description"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, types.ErrInvalidArguments):
		return "invalid_arguments"
	default:
		return "internal"
	}
}

// handleError is a convenience function that maps the error to a status
// code and writes the error response.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	statusCode := mapErrorToStatusCode(err)
	writeError(w, r, err, statusCode)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON response: %v", err)
	}
}

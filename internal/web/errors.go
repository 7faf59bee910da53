package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request id, then
// mapped through core.MapError. API callers get the UserMessage as JSON;
// page requests get it as a flash message on the page they are sent back to.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/dataprep/internal/core"
	"github.com/JonMunkholm/dataprep/internal/engine"
	"github.com/JonMunkholm/dataprep/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Detail  string `json:"detail,omitempty"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		parseErr    *engine.ParseError
		mismatchErr *engine.SchemaMismatchError
		removedErr  *engine.AllColumnsRemovedError
		opErr       *engine.InvalidOperationError
		chartErr    *engine.InvalidChartRequestError
	)
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrNoFile), errors.Is(err, core.ErrEmptyFile), errors.Is(err, errNotCSV):
		return http.StatusBadRequest
	case errors.As(err, &mismatchErr):
		return http.StatusConflict
	case errors.As(err, &parseErr), errors.As(err, &removedErr), errors.As(err, &opErr), errors.As(err, &chartErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the mapped message as JSON for API
// requests or as plain text otherwise. Page handlers use flashError instead.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := logError(r, err, status)

	if wantsJSON(r) {
		writeJSON(w, status, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
			Detail:  msg.Detail,
		})
		return
	}
	http.Error(w, core.FormatUserError(err), status)
}

// logError records the technical error and returns its user-facing form.
func logError(r *http.Request, err error, status int) core.UserMessage {
	msg := core.MapError(err)
	log := logging.FromContext(r.Context()).With(
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err.Error(),
	)
	if status >= http.StatusInternalServerError {
		log.Error("request error")
	} else {
		log.Warn("request error")
	}
	return msg
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

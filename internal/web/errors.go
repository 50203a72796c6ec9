package web

// errors.go renders error responses for the health server. Technical details
// are logged with the request id; clients get the mapped user message and
// its support code.

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/robodata/internal/core"
)

var (
	errRouteNotFound = &core.UserError{
		Technical: errors.New("route not found"),
		User: core.UserMessage{
			Message: "Route not found",
			Action:  "Use /healthz, /readyz, or /status/limiter",
			Code:    "WEB001",
		},
	}
	errMethodNotAllowed = &core.UserError{
		Technical: errors.New("method not allowed"),
		User: core.UserMessage{
			Message: "Method not allowed",
			Action:  "Health endpoints only accept GET",
			Code:    "WEB002",
		},
	}
)

// ErrorResponse represents the JSON structure for error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form as JSON.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	// Mapped errors are expected outcomes; only unmapped ones are logged as errors.
	log := slog.Error
	if core.IsUserFacing(err) {
		log = slog.Warn
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

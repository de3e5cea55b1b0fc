package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mehtaViraj/hackweek2-fibox-backend/internal/errs"
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
)

// envelope is the body of every API response.
type envelope struct {
	Result  string `json:"result"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	if body.Data == nil {
		body.Data = struct{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, envelope{Result: resultSuccess, Message: message, Data: data})
}

func writeFailed(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Result: resultFailed, Message: message})
}

// statusFor maps a service error to an HTTP status and a client-facing message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusForbidden, "Invalid user"
	case errors.Is(err, errs.ErrBadCredentials):
		return http.StatusUnauthorized, "Wrong password"
	case errors.Is(err, errs.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, errs.ErrItemNotFound):
		return http.StatusBadRequest, "Invalid item_id"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "Already exists"
	case errors.Is(err, errs.ErrProvider):
		return http.StatusBadGateway, "Plaid Error"
	default:
		return http.StatusInternalServerError, "Server Error"
	}
}

// writeErr logs err and writes its mapped envelope. Only 5xx are logged at error level.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	fields := []zap.Field{zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", fields...)
	} else {
		s.log.Debug("request rejected", fields...)
	}
	writeFailed(w, status, msg)
}

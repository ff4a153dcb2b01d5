package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rzbill/peerchan/internal/account"
	"github.com/rzbill/peerchan/internal/msgbox"
	channelsvc "github.com/rzbill/peerchan/internal/services/channels"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// statusFor maps service errors to HTTP status codes. Permission failures
// look like missing channels so a probe cannot tell them apart.
func statusFor(err error) int {
	switch {
	case errors.Is(err, msgbox.ErrNotFound), errors.Is(err, channelsvc.ErrUnauthorized):
		return http.StatusNotFound
	case errors.Is(err, msgbox.ErrChannelLocked):
		return http.StatusLocked
	case errors.Is(err, msgbox.ErrSequencingFailure):
		return http.StatusConflict
	case errors.Is(err, channelsvc.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, channelsvc.ErrUnsupportedContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, account.ErrChannelLimit):
		return http.StatusForbidden
	case errors.Is(err, channelsvc.ErrRetentionMinAge), errors.Is(err, msgbox.ErrInvalidRetention):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusNotFound:
		writeError(w, status, "not found")
	case http.StatusInternalServerError:
		s.logger.WithContext(r.Context()).Error("request error", logpkg.Err(err))
		writeError(w, status, http.StatusText(status))
	default:
		writeError(w, status, err.Error())
	}
}

// bearerToken reads "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

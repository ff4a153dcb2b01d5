package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	channelsvc "github.com/rzbill/peerchan/internal/services/channels"
)

func etag(seq uint64) string { return strconv.Quote(strconv.FormatUint(seq, 10)) }

func sequenceVar(r *http.Request) uint64 {
	seq, _ := strconv.ParseUint(mux.Vars(r)["sequence"], 10, 64)
	return seq
}

func (s *Server) handleWriteMessage(w http.ResponseWriter, r *http.Request) {
	bearer := bearerToken(r)
	channelID := mux.Vars(r)["channelid"]
	caller, err := s.svc.Authorize(r.Context(), channelID, bearer, channelsvc.AccessWrite)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !s.limits.Allow(caller.Token.ID) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	limit := s.rt.Config().MaxPayload.Int64()
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	view, err := s.svc.WriteMessage(r.Context(), channelID, bearer, ct, body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageView(view))
}

func (s *Server) handleReadMessages(w http.ResponseWriter, r *http.Request) {
	page, err := s.svc.ReadMessages(r.Context(), mux.Vars(r)["channelid"], bearerToken(r), parseBool(r.URL.Query().Get("unread")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if page.MaxSequence.Valid {
		w.Header().Set("ETag", etag(page.MaxSequence.Value))
	}
	out := make([]messageView, 0, len(page.Messages))
	for _, m := range page.Messages {
		out = append(out, toMessageView(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHeadMessages reports the newest sequence from other writers as the
// ETag so clients can poll without fetching payloads.
func (s *Server) handleHeadMessages(w http.ResponseWriter, r *http.Request) {
	seq, err := s.svc.MaxSequence(r.Context(), mux.Vars(r)["channelid"], bearerToken(r))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	w.Header().Set("ETag", etag(seq))
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	view, err := s.svc.GetMessage(r.Context(), mux.Vars(r)["channelid"], bearerToken(r), sequenceVar(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageView(view))
}

func (s *Server) handleMarkMessages(w http.ResponseWriter, r *http.Request) {
	req := markRequest{Read: true}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	older := parseBool(r.URL.Query().Get("older"))
	err := s.svc.MarkMessages(r.Context(), mux.Vars(r)["channelid"], bearerToken(r), sequenceVar(r), older, req.Read)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteMessage(r.Context(), mux.Vars(r)["channelid"], bearerToken(r), sequenceVar(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

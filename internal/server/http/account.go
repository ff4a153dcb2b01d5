package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rzbill/peerchan/internal/msgbox"
)

func (s *Server) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ch, err := s.svc.CreateChannel(r.Context(), accountIDFrom(r.Context()), msgbox.ChannelCreate{
		PublicRead:  req.PublicRead,
		PublicWrite: req.PublicWrite,
		Sequenced:   req.Sequenced,
		Retention: msgbox.Retention{
			MinAgeDays: req.Retention.MinAgeDays,
			MaxAgeDays: req.Retention.MaxAgeDays,
			AutoPrune:  req.Retention.AutoPrune,
		},
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChannelView(ch))
}

func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListChannels(r.Context(), accountIDFrom(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]channelView, 0, len(list))
	for _, ch := range list {
		out = append(out, toChannelView(ch))
	}
	writeJSON(w, http.StatusOK, map[string]any{"channels": out})
}

func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	ch, err := s.svc.GetChannel(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelView(ch))
}

func (s *Server) handleAmendChannel(w http.ResponseWriter, r *http.Request) {
	var req amendChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ch, err := s.svc.AmendChannel(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"], msgbox.ChannelAmend{
		PublicRead:  req.PublicRead,
		PublicWrite: req.PublicWrite,
		Locked:      req.Locked,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelView(ch))
}

func (s *Server) handleDeleteChannel(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteChannel(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok, err := s.svc.CreateToken(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"], msgbox.TokenCreate{
		Description: req.Description,
		CanRead:     req.CanRead,
		CanWrite:    req.CanWrite,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTokenView(tok))
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	toks, err := s.svc.ListTokens(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"], r.URL.Query().Get("token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]tokenView, 0, len(toks))
	for _, t := range toks {
		out = append(out, toTokenView(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["tokenid"], 10, 64)
	tok, err := s.svc.GetToken(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"], id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenView(tok))
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseUint(mux.Vars(r)["tokenid"], 10, 64)
	if err := s.svc.RevokeToken(r.Context(), accountIDFrom(r.Context()), mux.Vars(r)["channelid"], id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

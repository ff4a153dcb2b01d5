package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rzbill/peerchan/internal/runtime"
	channelsvc "github.com/rzbill/peerchan/internal/services/channels"
	logpkg "github.com/rzbill/peerchan/pkg/log"
)

// Server is the REST and websocket front end of the broker.
type Server struct {
	rt      *runtime.Runtime
	svc     *channelsvc.Service
	router  *mux.Router
	srv     *http.Server
	lis     net.Listener
	logger  logpkg.Logger
	limits  *limiterPool
	metrics *httpMetrics
}

func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = rt.Logger()
	}
	rl := rt.Config().RateLimit
	s := &Server{
		rt:      rt,
		svc:     channelsvc.NewWithLogger(rt, logger.With(logpkg.Component("channels"))),
		router:  mux.NewRouter(),
		logger:  logger.With(logpkg.Component("http")),
		limits:  newLimiterPool(rl.RPS, rl.Burst),
		metrics: newHTTPMetrics(rt.Registry()),
	}
	s.routes()
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.requestID, cors, s.observe)

	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.rt.Registry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	acct := r.PathPrefix("/api/v1/account/{accountid:[0-9]+}").Subrouter()
	acct.Use(s.accountScope)
	acct.HandleFunc("/channel", s.handleCreateChannel).Methods(http.MethodPost)
	acct.HandleFunc("/channel/list", s.handleListChannels).Methods(http.MethodGet)
	acct.HandleFunc("/channel/{channelid}", s.handleGetChannel).Methods(http.MethodGet)
	acct.HandleFunc("/channel/{channelid}", s.handleAmendChannel).Methods(http.MethodPost)
	acct.HandleFunc("/channel/{channelid}", s.handleDeleteChannel).Methods(http.MethodDelete)
	acct.HandleFunc("/channel/{channelid}/api-token", s.handleCreateToken).Methods(http.MethodPost)
	acct.HandleFunc("/channel/{channelid}/api-token", s.handleListTokens).Methods(http.MethodGet)
	acct.HandleFunc("/channel/{channelid}/api-token/{tokenid:[0-9]+}", s.handleGetToken).Methods(http.MethodGet)
	acct.HandleFunc("/channel/{channelid}/api-token/{tokenid:[0-9]+}", s.handleRevokeToken).Methods(http.MethodDelete)

	ch := r.PathPrefix("/api/v1/channel/{channelid}").Subrouter()
	ch.HandleFunc("", s.handleWriteMessage).Methods(http.MethodPost)
	ch.HandleFunc("", s.handleReadMessages).Methods(http.MethodGet)
	ch.HandleFunc("", s.handleHeadMessages).Methods(http.MethodHead)
	ch.HandleFunc("/notify", s.handleNotify).Methods(http.MethodGet)
	ch.HandleFunc("/{sequence:[0-9]+}", s.handleGetMessage).Methods(http.MethodGet)
	ch.HandleFunc("/{sequence:[0-9]+}", s.handleMarkMessages).Methods(http.MethodPost)
	ch.HandleFunc("/{sequence:[0-9]+}", s.handleDeleteMessage).Methods(http.MethodDelete)

	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

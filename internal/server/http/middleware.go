package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	logpkg "github.com/rzbill/peerchan/pkg/log"
)

const (
	headerRequestID = "X-Request-Id"
	headerAccountID = "X-Account-Id"
)

type ctxKey int

const accountIDKey ctxKey = 0

func accountIDFrom(ctx context.Context) int64 {
	v, _ := ctx.Value(accountIDKey).(int64)
	return v
}

// requestID echoes an incoming X-Request-Id or assigns a new one.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(logpkg.ContextWithRequest(r.Context(), id, 0)))
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Account-Id, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "ETag, X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accountScope requires the gateway's X-Account-Id to match the path. A
// mismatch is reported as a missing resource.
func (s *Server) accountScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pathID, err := strconv.ParseInt(mux.Vars(r)["accountid"], 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid account id")
			return
		}
		hdr := r.Header.Get(headerAccountID)
		if hdr == "" {
			writeError(w, http.StatusUnauthorized, "missing "+headerAccountID)
			return
		}
		if hdrID, err := strconv.ParseInt(hdr, 10, 64); err != nil || hdrID != pathID {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		ctx := context.WithValue(r.Context(), accountIDKey, pathID)
		next.ServeHTTP(w, r.WithContext(logpkg.ContextWithRequest(ctx, "", pathID)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if isWebsocketUpgrade(r) {
			next.ServeHTTP(w, r)
			s.metrics.observe(r.Method, route, http.StatusSwitchingProtocols, time.Since(start))
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)
		s.metrics.observe(r.Method, route, rec.status, elapsed)
		if rec.status >= http.StatusInternalServerError {
			s.logger.WithContext(r.Context()).Warn("request failed",
				logpkg.Str("method", r.Method),
				logpkg.Str("route", route),
				logpkg.Int("status", rec.status))
			return
		}
		s.logger.WithContext(r.Context()).Debug("request",
			logpkg.Str("method", r.Method),
			logpkg.Str("route", route),
			logpkg.Int("status", rec.status),
			logpkg.Duration("elapsed", elapsed))
	})
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peerchan", Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "peerchan", Subsystem: "http", Name: "request_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	if reg != nil {
		m.requests = registerOrExisting(reg, m.requests)
		m.latency = registerOrExisting(reg, m.latency)
	}
	return m
}

// registerOrExisting tolerates a second server on the same registry.
func registerOrExisting[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *httpMetrics) observe(method, route string, code int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.latency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Package adminapi is the chi-routed HTTP introspection surface for a
// server-mode broker: liveness, channel listing/detail, and a diagnostic
// ping. It has nothing to do with the ANP wire protocol itself.
package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/anpbroker/internal/logger"
	"github.com/marmos91/anpbroker/pkg/adminapi/auth"
	apimw "github.com/marmos91/anpbroker/pkg/adminapi/middleware"
	"github.com/marmos91/anpbroker/pkg/anp/broker"
)

// Config tunes the router's request handling.
type Config struct {
	PingTimeout time.Duration
}

// NewRouter wires the admin API routes:
//   - GET  /health                       - liveness, unauthenticated
//   - GET  /api/v1/channels              - list channels, JWT-protected
//   - GET  /api/v1/channels/{id}         - one channel's detail
//   - POST /api/v1/channels/{id}/ping    - diagnostic round trip
func NewRouter(b *broker.Broker, jwtSvc *auth.Service, cfg Config) http.Handler {
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	health := &healthHandler{b: b, startedAt: time.Now()}
	r.Get("/health", health.liveness)

	channels := &channelHandler{b: b, pingTimeout: cfg.PingTimeout}

	r.Route("/api/v1/channels", func(r chi.Router) {
		r.Use(apimw.JWTAuth(jwtSvc))
		r.Get("/", channels.list)
		r.Get("/{id}", channels.get)
		r.Post("/{id}/ping", channels.ping)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("admin api request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

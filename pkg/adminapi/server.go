package adminapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/anpbroker/internal/logger"
	"github.com/marmos91/anpbroker/pkg/adminapi/auth"
	"github.com/marmos91/anpbroker/pkg/anp/broker"
)

// ServerConfig configures the admin HTTP server.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	TokenTTL     time.Duration
	Router       Config
}

func (c *ServerConfig) applyDefaults() {
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
}

// Server hosts the admin API on its own port, independent of the broker's
// loopback rendezvous port.
type Server struct {
	server       *http.Server
	jwtSvc       *auth.Service
	token        string
	shutdownOnce sync.Once
}

// NewServer builds a Server bound to b and mints the one operator token
// printed to the log for this run.
func NewServer(cfg ServerConfig, b *broker.Broker) (*Server, error) {
	cfg.applyDefaults()

	jwtSvc, err := auth.NewService("anpd")
	if err != nil {
		return nil, fmt.Errorf("admin api: failed to create jwt service: %w", err)
	}
	token, err := jwtSvc.Mint(cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("admin api: failed to mint operator token: %w", err)
	}

	router := NewRouter(b, jwtSvc, cfg.Router)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		jwtSvc: jwtSvc,
		token:  token,
	}, nil
}

// Token returns the bearer token operators must present to every
// JWT-protected route. Minted once at construction; never persisted.
func (s *Server) Token() string { return s.token }

// Start serves the admin API until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("admin api server failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if shutErr := s.server.Shutdown(ctx); shutErr != nil {
			err = fmt.Errorf("admin api shutdown: %w", shutErr)
		}
	})
	return err
}

package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/pyre-llm/pyre/internal/config"
	"github.com/pyre-llm/pyre/internal/observability"
)

// Server exposes recorded call frames over HTTP for local inspection.
type Server struct {
	config   config.DebugConfig
	cors     config.CORSConfig
	recorder *Recorder
	srv      *http.Server
}

// NewServer creates a new debug introspection server.
func NewServer(cfg *config.DebugConfig, corsCfg *config.CORSConfig, recorder *Recorder) *Server {
	return &Server{
		config:   *cfg,
		cors:     *corsCfg,
		recorder: recorder,
		srv:      nil,
	}
}

// Start starts the debug server.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/frames", s.handleFrames)
	mux.HandleFunc("/health", s.handleHealth)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.cors.AllowedOrigins,
		AllowedMethods:   s.cors.AllowedMethods,
		AllowedHeaders:   s.cors.AllowedHeaders,
		AllowCredentials: s.cors.AllowCredentials,
		MaxAge:           s.cors.MaxAge,
	})
	handler := observability.Trace()(c.Handler(mux))

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting debug server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down debug server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown debug server: %w", err)
	}
	return nil
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.recorder.Frames()); err != nil {
		observability.FromContext(r.Context()).Error("failed to encode frames", observability.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

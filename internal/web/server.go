package web

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/nyc-collisions/internal/config"
)

// Server exposes read-only pipeline state over HTTP: target table
// summary, run history and a health probe. It never triggers runs.
type Server struct {
	db         *sql.DB
	httpServer *http.Server
}

// NewServer creates a status server bound to addr.
func NewServer(db *sql.DB, cfg config.Config, addr string) *Server {
	s := &Server{db: db}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      NewRouter(db, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// NewRouter builds the API routes.
func NewRouter(db *sql.DB, cfg config.Config) *mux.Router {
	h := &Handler{DB: db, Config: cfg}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.Health).Methods("GET")
	api.HandleFunc("/summary", h.GetSummary).Methods("GET")
	api.HandleFunc("/runs", h.ListRuns).Methods("GET")
	return router
}

// Run serves until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("Status server listening on %s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	fmt.Println("Status server stopped.")
	return nil
}

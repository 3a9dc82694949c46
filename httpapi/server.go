package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"estate-listings/models"
	"estate-listings/services"
	"estate-listings/utils"
)

const maxBodyBytes = 10 << 20

// Listings is the read side served under /api/listings.
type Listings interface {
	Query(ctx context.Context, p services.ListingParams) (*models.ListingPage, error)
	Export(ctx context.Context, p services.ListingParams, format services.ExportFormat, w io.Writer) (int, error)
	Get(ctx context.Context, id int64) (*models.Listing, error)
	Stats(ctx context.Context) (*models.ListingStats, error)
}

// Tasks submits and inspects queued work under /api/tasks.
type Tasks interface {
	Ingest(ctx context.Context, payload models.RawListing) (string, error)
	QueueBatch(ctx context.Context, payloads []models.RawListing) (string, error)
	DeactivateStale(ctx context.Context, olderThanDays int) (string, error)
	Status(ctx context.Context, id string) (*models.Task, error)
}

// Server is the listings HTTP API.
type Server struct {
	listings Listings
	tasks    Tasks
	auth     Authenticator
	health   func(context.Context) error
	logger   *utils.Logger
	handler  http.Handler
}

// NewServer builds the route table. health may be nil.
func NewServer(listings Listings, tasks Tasks, auth Authenticator, health func(context.Context) error, logger *utils.Logger) *Server {
	s := &Server{listings: listings, tasks: tasks, auth: auth, health: health, logger: logger}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/listings", s.handleQuery)
	api.HandleFunc("GET /api/listings/stats", s.handleStats)
	api.HandleFunc("GET /api/listings/export", s.handleExport)
	api.HandleFunc("GET /api/listings/{id}", s.handleGet)
	api.HandleFunc("POST /api/tasks/ingest", s.handleIngest)
	api.HandleFunc("POST /api/tasks/ingest-batch", s.handleIngestBatch)
	api.HandleFunc("POST /api/tasks/deactivate-stale", s.handleDeactivate)
	api.HandleFunc("GET /api/tasks/{id}", s.handleTaskStatus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/api/", requireAuth(auth, api))

	s.handler = s.logRequests(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then drains connections.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[http] Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("[http] Server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		tw := &trackingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(tw, r)
		s.logger.With("method", r.Method, "path", r.URL.Path, "status", tw.status).
			Debug("[http] %s %s -> %d in %v", r.Method, r.URL.Path, tw.status, time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("[http] %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

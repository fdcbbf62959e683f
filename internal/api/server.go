package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"dailycraft/internal/diary"
	"dailycraft/internal/events"
	"dailycraft/internal/logging"
	"dailycraft/internal/services"
	"dailycraft/internal/services/ocr"
	"dailycraft/internal/storage"
)

const shutdownGrace = 5 * time.Second

// Generator is the diary coordinator surface used by the API.
type Generator interface {
	Start(input diary.Input) error
	Status() diary.Job
	IsRunning() bool
	Generate(ctx context.Context, input diary.Input) (string, error)
}

// Extractor reads text from images.
type Extractor interface {
	Extract(ctx context.Context, imagePath string) (string, error)
	State() ocr.State
}

// DiaryStore reads and writes saved diaries.
type DiaryStore interface {
	SaveDiary(ctx context.Context, key, content string) (*storage.Entry, error)
	GetDiary(ctx context.Context, key string) (*storage.Entry, error)
	ListDiaries(ctx context.Context) ([]storage.Entry, error)
	Ping(ctx context.Context) error
}

// EventSource feeds the events stream.
type EventSource interface {
	Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]events.Event, uint64, error)
	Tail(limit int) ([]events.Event, uint64)
	LastSequence() uint64
}

// RecordStore persists text read from captured images.
type RecordStore interface {
	SaveOCRRecord(ctx context.Context, rec storage.OCRRecord) (*storage.OCRRecord, error)
	ListOCRRecords(ctx context.Context, date string) ([]storage.OCRRecord, error)
}

// Deps are the collaborators behind the HTTP surface. Extractor, Records and
// Metrics may be nil.
type Deps struct {
	Generator Generator
	Extractor Extractor
	Diaries   DiaryStore
	Records   RecordStore
	Events    EventSource
	Metrics   http.Handler
	Token     string
	Logger    *slog.Logger
}

// Server exposes the generation, extraction and diary endpoints over HTTP.
type Server struct {
	deps   Deps
	logger *slog.Logger

	bind     string
	listener net.Listener
	server   *http.Server
}

// NewServer builds a server that will listen on bind once started.
func NewServer(bind string, deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "api"),
		bind:   strings.TrimSpace(bind),
	}
	s.server = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: event streams and synchronous generation run for minutes.
	}
	return s
}

// Router returns the chi router serving every endpoint.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Group(func(private chi.Router) {
		private.Use(requireToken(s.deps.Token))

		private.Route("/api/generation", func(gen chi.Router) {
			gen.Get("/", s.handleGenerationStatus)
			gen.Post("/", s.handleGenerationStart)
			gen.Post("/sync", s.handleGenerationSync)
		})
		private.Get("/api/events", s.handleEvents)
		private.Get("/api/events/recent", s.handleRecentEvents)
		private.Post("/api/extract", s.handleExtract)
		private.Get("/api/ocr/{date}", s.handleOCRRecords)
		private.Route("/api/diaries", func(d chi.Router) {
			d.Get("/", s.handleDiaryList)
			d.Get("/{key}", s.handleDiaryGet)
			d.Put("/{key}", s.handleDiaryPut)
		})
	})
	return r
}

// Start listens on the configured address and serves in the background until
// ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "listen", "api.bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr reports the bound address, useful when listening on port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, giving open requests a short grace period.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Debug("api shutdown", logging.Error(err))
		_ = s.server.Close()
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		reqID := middleware.GetReqID(r.Context())
		r = r.WithContext(services.WithRequestID(r.Context(), reqID))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(started)),
			logging.String("request_id", reqID),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.WarnWithContext(s.logger, "request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: services.Kind(err)})
}

func (s *Server) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: message, Kind: "validation"})
}

// statusFor maps error markers onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConcurrency):
		return http.StatusConflict
	case errors.Is(err, services.ErrConfiguration),
		errors.Is(err, services.ErrWorkerLifecycle),
		errors.Is(err, ocr.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrWorkerIO),
		errors.Is(err, services.ErrProtocol),
		errors.Is(err, services.ErrNetwork),
		errors.Is(err, services.ErrRejected):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

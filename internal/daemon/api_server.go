package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"curator/internal/api"
	"curator/internal/config"
	"curator/internal/fetch"
	"curator/internal/identity"
	"curator/internal/logging"
	"curator/internal/media"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/sync"
)

type apiServer struct {
	bind   string
	token  string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		token:  cfg.Paths.APIToken,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(srv.token, srv.handleStatus))
	mux.HandleFunc("/api/media/", authMiddleware(srv.token, srv.handleMedia))
	mux.HandleFunc("/api/refresh", authMiddleware(srv.token, srv.handleRefresh))
	mux.HandleFunc("/api/jobs", authMiddleware(srv.token, srv.handleJobs))
	mux.HandleFunc("/api/jobs/cancel", authMiddleware(srv.token, srv.handleCancel))
	mux.HandleFunc("/api/search", authMiddleware(srv.token, srv.handleSearch))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Waiting refreshes can legitimately take a while.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, useful when the bind port is 0.
func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	sources := make([]string, 0, len(status.Sources))
	for _, source := range status.Sources {
		sources = append(sources, string(source))
	}
	counts := make(map[string]int, len(status.JobCounts))
	for state, count := range status.JobCounts {
		counts[string(state)] = count
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		DatabasePath: status.DatabasePath,
		LockFilePath: status.LockFilePath,
		Sources:      sources,
		JobCounts:    counts,
	})
}

func (s *apiServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	internalID := strings.TrimPrefix(r.URL.Path, "/api/media/")
	if internalID == "" || strings.Contains(internalID, "/") {
		s.writeError(w, http.StatusNotFound, "media record not found")
		return
	}
	details, err := s.daemon.MediaDetails(r.Context(), internalID)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.MediaResponse{Media: api.FromDetails(details)})
}

func (s *apiServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := parseTarget(req.Source, req.Identifier, req.Lot)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := s.daemon.Refresh(r.Context(), target, req.Wait)
	if errors.Is(err, services.ErrTimeout) && job != nil {
		// The job keeps running; hand the caller its handle.
		s.writeJSON(w, http.StatusAccepted, api.RefreshResponse{Job: api.FromJob(job)})
		return
	}
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	status := http.StatusAccepted
	if req.Wait {
		status = http.StatusOK
	}
	s.writeJSON(w, status, api.RefreshResponse{Job: api.FromJob(job)})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var states []store.JobState
	for _, value := range r.URL.Query()["state"] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			states = append(states, store.JobState(trimmed))
		}
	}
	jobs, err := s.daemon.Jobs(r.Context(), states...)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	views := make([]api.JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, api.FromJob(job))
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: views})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := parseTarget(req.Source, req.Identifier, req.Lot)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	removed, err := s.daemon.CancelPending(r.Context(), target)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CancelResponse{Removed: removed})
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	source, ok := media.ParseSource(query.Get("source"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "unknown source "+query.Get("source"))
		return
	}
	text := strings.TrimSpace(query.Get("q"))
	if text == "" {
		s.writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	page, _ := strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	items, err := s.daemon.Search(r.Context(), source, text, page)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{
		Source:  string(source),
		Query:   text,
		Page:    page,
		Results: api.FromSearchItems(items),
	})
}

func parseTarget(sourceValue, identifier, lotValue string) (sync.Target, error) {
	source, ok := media.ParseSource(sourceValue)
	if !ok {
		return sync.Target{}, fmt.Errorf("unknown source %q", sourceValue)
	}
	lot, ok := media.ParseLot(lotValue)
	if !ok {
		return sync.Target{}, fmt.Errorf("unknown lot %q", lotValue)
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return sync.Target{}, errors.New("missing identifier")
	}
	return sync.Target{Source: source, Identifier: identifier, Lot: lot}, nil
}

// writeFailure maps pipeline errors onto HTTP statuses.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fetch.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation), errors.Is(err, fetch.ErrInvalidIdentifier):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrAmbiguousMatch), errors.Is(err, store.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, sync.ErrQueueFull), errors.Is(err, sync.ErrNotRunning):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, services.ErrTimeout):
		s.writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, fetch.ErrExhausted), errors.Is(err, fetch.ErrRateLimitTimeout),
		errors.Is(err, services.ErrUnavailable), errors.Is(err, store.ErrUnavailable):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

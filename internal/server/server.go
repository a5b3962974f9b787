// Package server exposes a Session over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vincentbai/browsetrace-replay/internal/codec"
	"github.com/vincentbai/browsetrace-replay/internal/database"
	"github.com/vincentbai/browsetrace-replay/internal/dom"
	"github.com/vincentbai/browsetrace-replay/internal/metrics"
	"github.com/vincentbai/browsetrace-replay/internal/models"
	"github.com/vincentbai/browsetrace-replay/internal/session"
)

const maxBodyBytes = 8 << 20

type Server struct {
	session *session.Session
	db      *database.Database
	address string
	server  *http.Server
	logger  *slog.Logger
}

// NewServer serves sess on address. db may be nil, in which case the
// recordings routes answer 503.
func NewServer(sess *session.Session, db *database.Database, address string) *Server {
	return &Server{
		session: sess,
		db:      db,
		address: address,
		logger:  slog.Default(),
	}
}

func (s *Server) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Post("/events", s.handleEvents)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleSessionStatus)
		r.Post("/start", s.control(s.session.Start))
		r.Post("/stop", s.control(s.session.Stop))
		r.Post("/play", s.control(s.session.Play))
		r.Post("/pause", s.control(s.session.Pause))
		r.Post("/resume", s.control(s.session.Resume))
		r.Get("/delay", s.handleGetDelay)
		r.Put("/delay", s.handleSetDelay)
		r.Get("/speed", s.handleGetSpeed)
		r.Put("/speed", s.handleSetSpeed)
		r.Get("/log", s.handleExport)
		r.Post("/log", s.handleImport)
		r.Get("/visual", s.handleVisual)
	})

	r.Route("/recordings", func(r chi.Router) {
		r.Use(s.requireDatabase)
		r.Get("/", s.handleListRecordings)
		r.Post("/", s.handleSaveRecording)
		r.Get("/{id}", s.handleGetRecording)
		r.Delete("/{id}", s.handleDeleteRecording)
		r.Post("/{id}/load", s.handleLoadRecording)
	})
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "address", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("server: shutting down")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}
	s.logger.Info("server: exited")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("server: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) requireDatabase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.db == nil {
			http.Error(w, "Recordings store not configured", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

// handleEvents injects a batch of raw user events into the session's
// document, where the recorder sees them if it is attached.
func (s *Server) handleEvents(w http.ResponseWriter, request *http.Request) {
	var batch models.Batch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if len(batch.Events) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	for _, event := range batch.Events {
		if err := models.ValidateEvent(event); err != nil {
			http.Error(w, "Invalid event: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	injector, ok := s.session.Document().(dom.Injector)
	if !ok {
		http.Error(w, "Document does not accept injected events", http.StatusNotImplemented)
		return
	}
	for _, event := range batch.Events {
		if err := injector.Inject(event); err != nil {
			s.logger.Warn("server: inject failed", "type", event.Type, "target", event.Target, "error", err)
			http.Error(w, "Failed to inject event: "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent) // success, no body
}

func (s *Server) control(action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		action()
		w.WriteHeader(http.StatusNoContent)
	}
}

type sessionStatus struct {
	State         string  `json:"state"`
	Index         int     `json:"index"`
	Events        int     `json:"events"`
	DelayMillis   float64 `json:"delay_ms"`
	PlaybackSpeed float64 `json:"playback_speed"`
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionStatus{
		State:         s.session.State().String(),
		Index:         s.session.Index(),
		Events:        s.session.Len(),
		DelayMillis:   models.DurationMillis(s.session.Delay()),
		PlaybackSpeed: s.session.PlaybackSpeed(),
	})
}

type valueBody struct {
	Value *float64 `json:"value"`
}

func decodeValue(r *http.Request) (float64, error) {
	var body valueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return 0, err
	}
	if body.Value == nil {
		return 0, errors.New("missing value")
	}
	return *body.Value, nil
}

func (s *Server) handleGetDelay(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"value": models.DurationMillis(s.session.Delay())})
}

func (s *Server) handleSetDelay(w http.ResponseWriter, r *http.Request) {
	ms, err := decodeValue(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	d, err := s.session.SetDelay(models.MillisDuration(ms))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"value": models.DurationMillis(d)})
}

func (s *Server) handleGetSpeed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"value": s.session.PlaybackSpeed()})
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	scale, err := decodeValue(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	scale, err = s.session.SetPlaybackSpeed(scale)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"value": scale})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	out, err := s.session.EventsToJSON()
	if err != nil {
		s.logger.Error("server: export failed", "error", err)
		http.Error(w, "Failed to export events", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, out)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	s.importLog(w, string(body))
}

func (s *Server) importLog(w http.ResponseWriter, src string) {
	records, err := s.session.JSONToEvents(src)
	if errors.Is(err, codec.ErrMalformed) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err != nil {
		s.logger.Error("server: import failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"events": len(records)})
}

func (s *Server) handleVisual(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Visual())
}

func (s *Server) handleListRecordings(w http.ResponseWriter, _ *http.Request) {
	recordings, err := s.db.ListRecordings()
	if err != nil {
		s.logger.Error("server: list recordings", "error", err)
		http.Error(w, "Failed to list recordings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recordings)
}

func (s *Server) handleSaveRecording(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if body.Name == "" {
		http.Error(w, "Name cannot be empty", http.StatusBadRequest)
		return
	}
	out, err := s.session.EventsToJSON()
	if err != nil {
		s.logger.Error("server: export failed", "error", err)
		http.Error(w, "Failed to export events", http.StatusInternalServerError)
		return
	}
	rec, err := s.db.InsertRecording(body.Name, out)
	if err != nil {
		s.logger.Error("server: database error", "error", err)
		http.Error(w, "Failed to store recording", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	err := s.db.DeleteRecording(chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Recording not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("server: database error", "error", err)
		http.Error(w, "Failed to delete recording", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLoadRecording(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	s.importLog(w, rec.Log)
}

func (s *Server) lookup(w http.ResponseWriter, id string) (database.Recording, bool) {
	rec, err := s.db.GetRecording(id)
	if errors.Is(err, database.ErrNotFound) {
		http.Error(w, "Recording not found", http.StatusNotFound)
		return rec, false
	}
	if err != nil {
		s.logger.Error("server: database error", "error", err)
		http.Error(w, "Failed to load recording", http.StatusInternalServerError)
		return rec, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/config"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/inspector"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/metrics"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/presenter"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/internal/session"
	"github.com/AbuSalehBinshaq/Kasrah-SDK-CDN/sdk"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// HealthChecker is implemented by database.PostgresDB and database.RedisDB.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Client    *sdk.Client
	Presenter *presenter.Headless
	Recorder  *inspector.Recorder
	Config    *config.Config
	Logger    *zap.Logger
	Gatherer  prometheus.Gatherer
	Checks    map[string]HealthChecker
}

// Server exposes the inspector and the headless presenter over HTTP.
type Server struct {
	client    *sdk.Client
	presenter *presenter.Headless
	recorder  *inspector.Recorder
	triggers  *inspector.Triggers
	checks    map[string]HealthChecker
	logger    *zap.Logger
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = inspector.NewRecorder(deps.Config.Inspector.MaxLogs, deps.Config.Inspector.MaxEvents)
	}

	s := &Server{
		client:    deps.Client,
		presenter: deps.Presenter,
		recorder:  recorder,
		triggers:  inspector.NewTriggers(deps.Client, deps.Presenter, recorder),
		checks:    deps.Checks,
		logger:    logger,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler(deps.Gatherer))
	}

	// Inspector
	mux.HandleFunc("/inspector", s.handleInspector)
	mux.HandleFunc("/inspector/export", s.handleInspectorExport)
	mux.HandleFunc("/inspector/clear", s.handleInspectorClear)
	mux.HandleFunc("/inspector/test/", s.handleInspectorTest)

	// Headless presentations
	mux.HandleFunc("/presentations", s.handlePresentations)
	mux.HandleFunc("/presentations/", s.handlePresentationAction)

	// Banner containers
	mux.HandleFunc("/containers", s.handleContainers)
	mux.HandleFunc("/containers/", s.handleContainerByID)
	mux.HandleFunc("/banner", s.handleBanner)

	// Host events
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/gameplay/", s.handleGameplay)

	return mux
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(s.checks))
	for name, c := range s.checks {
		if err := c.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"initialized": s.client.Initialized(),
		"gameId":      s.client.GameID(),
		"deps":        deps,
	})
}

// ---- Inspector ----

func (s *Server) handleInspector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.recorder.Snapshot())
}

func (s *Server) handleInspectorExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := s.recorder.ExportJSON()
	if err != nil {
		s.logger.Error("failed to export inspector data", zap.Error(err))
		s.errorResponse(w, "export failed", http.StatusInternalServerError)
		return
	}
	name := fmt.Sprintf("kasrah-inspector-%d.json", time.Now().UnixMilli())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(data)
}

func (s *Server) handleInspectorClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.recorder.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInspectorTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var ok bool
	kind := strings.TrimPrefix(r.URL.Path, "/inspector/test/")
	switch kind {
	case "interstitial":
		ok = s.triggers.Interstitial()
	case "rewarded":
		ok = s.triggers.Rewarded()
	case "banner":
		ok = s.triggers.Banner()
	default:
		http.NotFound(w, r)
		return
	}

	code := http.StatusAccepted
	if !ok {
		code = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"test": kind, "started": ok})
}

// ---- Presentations ----

func (s *Server) handlePresentations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.presenter.Pending())
}

type resolveRequest struct {
	Action string `json:"action"`
}

// handlePresentationAction serves POST /presentations/{id}/resolve and
// POST /presentations/{id}/click.
func (s *Server) handlePresentationAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, verb, ok := strings.Cut(strings.TrimPrefix(r.URL.Path, "/presentations/"), "/")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}

	var err error
	switch verb {
	case "resolve":
		var req resolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		action, valid := session.ParseAction(req.Action)
		if !valid {
			s.errorResponse(w, "unknown action: "+req.Action, http.StatusBadRequest)
			return
		}
		err = s.presenter.Resolve(id, action)
	case "click":
		err = s.presenter.Click(id)
	default:
		http.NotFound(w, r)
		return
	}

	switch {
	case errors.Is(err, presenter.ErrUnknownPresentation):
		s.errorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, presenter.ErrAlreadyResolved):
		s.errorResponse(w, err.Error(), http.StatusConflict)
	case err != nil:
		s.errorResponse(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- Containers ----

func (s *Server) handleContainers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.jsonResponse(w, s.presenter.Containers())
}

func (s *Server) handleContainerByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/containers/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPost:
		s.presenter.AddContainer(id)
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		s.presenter.RemoveContainer(id)
		w.WriteHeader(http.StatusNoContent)
	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type bannerRequest struct {
	ContainerID string `json:"containerId"`
	Size        string `json:"size"`
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req bannerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.errorResponse(w, "invalid json", http.StatusBadRequest)
			return
		}
		if !s.client.RequestBanner(req.ContainerID, req.Size) {
			s.errorResponse(w, "banner not shown", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	case http.MethodDelete:
		if !s.client.RemoveBanner() {
			s.errorResponse(w, "no active banner", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ---- Host events ----

type eventRequest struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.errorResponse(w, "invalid event", http.StatusBadRequest)
		return
	}
	s.client.FireEvent(req.Name, req.Metadata)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGameplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch strings.TrimPrefix(r.URL.Path, "/gameplay/") {
	case "start":
		s.client.GameplayStart()
	case "stop":
		s.client.GameplayStop()
	default:
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// ---- Helpers ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

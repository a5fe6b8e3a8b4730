// Package api exposes the producer side of hosted sessions over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/recents/internal/api/middleware"
	"github.com/btouchard/recents/internal/auth"
	"github.com/btouchard/recents/internal/dispatch"
	"github.com/btouchard/recents/internal/host"
	"github.com/btouchard/recents/internal/surface"
	"github.com/btouchard/recents/internal/task"
)

const (
	maxBodySize = 1 << 20
	syncTimeout = 5 * time.Second
)

// Deps holds what the router serves. Optional handlers are mounted only
// when set.
type Deps struct {
	Sessions *host.Registry
	Tasks    *task.Manager
	Verifier *auth.Verifier

	MCP     http.Handler
	WS      http.Handler
	Metrics http.Handler
}

// NewRouter builds the HTTP router.
func NewRouter(deps *Deps) http.Handler {
	h := &handler{sessions: deps.Sessions, tasks: deps.Tasks}

	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.NewVerifier(nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"sessions": deps.Sessions.Count(),
		})
	})

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(verifier))

		r.Route("/api", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", h.openSession)
				r.Get("/", h.listSessions)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", h.getSession)
					r.Delete("/", h.closeSession)
					r.Post("/start", h.start)
					r.Post("/start-legacy", h.startLegacy)
					r.Post("/cancel", h.cancel)
					r.Post("/tasks", h.tasksAppeared)
					r.Post("/finish", h.finish)
				})
			})

			r.Get("/tasks", h.listTasks)
			r.Get("/tasks/instances", h.instanceCounts)
		})

		if deps.WS != nil {
			r.Handle("/ws", deps.WS)
		}
		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
		}
	})

	return r
}

type handler struct {
	sessions *host.Registry
	tasks    *task.Manager
}

func (h *handler) openSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, h.sessions.Open())
}

func (h *handler) listSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.List())
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	info, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *handler) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var sig dispatch.StartSignal
	if !decode(w, r, &sig) {
		return
	}
	h.accepted(w, r, h.sessions.Start(chi.URLParam(r, "id"), sig))
}

func (h *handler) startLegacy(w http.ResponseWriter, r *http.Request) {
	var sig dispatch.LegacyStartSignal
	if !decode(w, r, &sig) {
		return
	}
	h.accepted(w, r, h.sessions.StartLegacy(chi.URLParam(r, "id"), sig))
}

type cancelRequest struct {
	Thumbnails map[int]surface.Thumbnail `json:"thumbnails"`
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, r, h.sessions.Cancel(chi.URLParam(r, "id"), req.Thumbnails))
}

type tasksRequest struct {
	Targets []surface.Target       `json:"targets"`
	Info    surface.TransitionInfo `json:"transition_info"`
}

func (h *handler) tasksAppeared(w http.ResponseWriter, r *http.Request) {
	var req tasksRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, r, h.sessions.TasksAppeared(chi.URLParam(r, "id"), req.Targets, req.Info))
}

type finishRequest struct {
	ToHome    bool `json:"to_home"`
	LeaveHint bool `json:"leave_hint"`
}

func (h *handler) finish(w http.ResponseWriter, r *http.Request) {
	var req finishRequest
	if !decode(w, r, &req) {
		return
	}
	h.accepted(w, r, h.sessions.FinishSession(chi.URLParam(r, "id"), req.ToHome, req.LeaveHint))
}

// accepted answers a signal with the session state observed once the
// consumer loop has delivered every notification the signal produced.
func (h *handler) accepted(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()
	if err := h.sessions.Sync(ctx); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		slog.Warn("session loop did not drain", "session_id", chi.URLParam(r, "id"), "error", err)
		writeJSON(w, status, map[string]string{"error": "session delivery pending: " + err.Error()})
		return
	}

	info, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, info)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	filter := task.Filter{Package: r.URL.Query().Get("package")}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}
	tasks := h.tasks.List(filter)
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *handler) instanceCounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.tasks.InstanceCounts())
}

// decode reads an optional JSON body. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
	return false
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, host.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, host.ErrNotActive), errors.Is(err, host.ErrAlreadyFinished):
		status = http.StatusConflict
	default:
		slog.Error("api request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

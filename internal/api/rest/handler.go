package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	app "vision-inspector/internal/application"
	"vision-inspector/internal/domain/entity"
)

const (
	defaultResultLimit = 20
	maxResultLimit     = 500
	streamBuffer       = 16
)

// Handler HTTP API управления инспекцией
type Handler struct {
	Inspection *app.InspectionService
	Logger     *slog.Logger
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type startRequest struct {
	ProgramID string `json:"program_id"`
}

type okResponse struct {
	Ok    bool            `json:"ok"`
	State entity.RunState `json:"state"`
}

// NewRouter собирает chi-роутер с общими middleware
func NewRouter(h *Handler, timeout time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// поток результатов живёт дольше таймаута запроса
	r.Get("/results/stream", h.handleStream)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		h.RegisterRoutes(r)
	})
	return r
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Get("/statistics", h.handleStatistics)
	r.Route("/run", func(r chi.Router) {
		r.Post("/start", h.handleStart)
		r.Post("/stop", h.command(h.Inspection.Stop))
		r.Post("/pause", h.command(h.Inspection.Pause))
		r.Post("/resume", h.command(h.Inspection.Resume))
		r.Post("/trigger", h.command(h.Inspection.Trigger))
	})
	r.Post("/selftest", h.handleSelfTest)
	r.Route("/programs", func(r chi.Router) {
		r.Get("/", h.handleProgramsList)
		r.Post("/", h.handleProgramSave)
		r.Get("/{id}", h.handleProgramGet)
		r.Put("/{id}", h.handleProgramSave)
		r.Delete("/{id}", h.handleProgramDelete)
		r.Get("/{id}/results", h.handleResults)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Inspection.Status())
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Inspection.Status().Stats)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProgramID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "program_id is required"})
		return
	}
	prog, err := h.Inspection.StartProgram(r.Context(), req.ProgramID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": entity.StateRunning, "program": prog})
}

// command оборачивает команду движка без тела запроса
func (h *Handler) command(fn func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(); err != nil {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse{Ok: true, State: h.Inspection.Status().State})
	}
}

func (h *Handler) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	if err := h.Inspection.SelfTest(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleProgramsList(w http.ResponseWriter, r *http.Request) {
	progs, err := h.Inspection.Programs(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if progs == nil {
		progs = []*entity.Program{}
	}
	writeJSON(w, http.StatusOK, progs)
}

func (h *Handler) handleProgramGet(w http.ResponseWriter, r *http.Request) {
	prog, err := h.Inspection.Program(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prog)
}

func (h *Handler) handleProgramSave(w http.ResponseWriter, r *http.Request) {
	var prog entity.Program
	if err := json.NewDecoder(r.Body).Decode(&prog); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid json: " + err.Error()})
		return
	}
	if id := chi.URLParam(r, "id"); id != "" {
		if prog.ID == "" {
			prog.ID = id
		}
		if prog.ID != id {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "program id does not match path"})
			return
		}
	}
	if err := prog.Validate(); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Inspection.SaveProgram(r.Context(), &prog); err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, &prog)
}

func (h *Handler) handleProgramDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.Inspection.DeleteProgram(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	limit := defaultResultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxResultLimit)
	}
	results, err := h.Inspection.Results(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if results == nil {
		results = []*entity.InspectionResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// handleStream отдаёт результаты циклов как server-sent events
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "STREAM_UNSUPPORTED", Message: "streaming unsupported"})
		return
	}
	results, cancel := h.Inspection.Subscribe(streamBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-results:
			if !ok {
				return
			}
			data, err := json.Marshal(res)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: result\ndata: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var cfgErr *entity.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_PROGRAM", Message: cfgErr.Reason, Field: cfgErr.Field})
	case errors.Is(err, entity.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, entity.ErrInvalidReference):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Code: "INVALID_REFERENCE", Message: err.Error()})
	case errors.Is(err, entity.ErrTriggerDropped):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "TRIGGER_DROPPED", Message: err.Error()})
	case errors.Is(err, entity.ErrNotRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "NOT_RUNNING", Message: err.Error()})
	case errors.Is(err, entity.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	default:
		if h.Logger != nil {
			h.Logger.Error("request failed", slog.Any("error", err))
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

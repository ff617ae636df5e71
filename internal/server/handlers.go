package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/expview/pkg/aggregate"
	"github.com/vanderheijden86/expview/pkg/chart"
	"github.com/vanderheijden86/expview/pkg/config"
	"github.com/vanderheijden86/expview/pkg/export"
	"github.com/vanderheijden86/expview/pkg/loader"
	"github.com/vanderheijden86/expview/pkg/metrics"
	"github.com/vanderheijden86/expview/pkg/model"
	"github.com/vanderheijden86/expview/pkg/session"
)

type Handler struct {
	sessionStore *SessionStore
	colors       *aggregate.ColorAssigner
	cfg          config.Config
}

// NewHandler creates a handler whose sessions share one color assigner, so
// an experiment keeps its color across sessions.
func NewHandler(cfg config.Config) *Handler {
	return &Handler{
		sessionStore: NewSessionStore(),
		colors:       aggregate.NewColorAssigner(cfg.Chart.Palette...),
		cfg:          cfg,
	}
}

// Store exposes the handler's sessions.
func (h *Handler) Store() *SessionStore { return h.sessionStore }

// Routes registers every endpoint on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/sessions", h.HandleSessions)
	mux.HandleFunc("/api/sessions/", h.HandleSessionDetail)
	mux.HandleFunc("/api/chart", h.HandleChart)
	mux.HandleFunc("/api/metrics/timing", h.HandleTiming)
	mux.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("OK"))
		if err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	})
	return mux
}

func (h *Handler) sessionOptions() []session.Option {
	return []session.Option{
		session.WithColors(h.colors),
		session.WithQuietPeriod(h.cfg.Debounce()),
		session.WithAlignedSteps(h.cfg.Chart.AlignSteps),
		session.WithNoticeLife(h.cfg.NoticeLife()),
		session.WithFallbackMetric(h.cfg.Chart.DefaultMetric),
	}
}

type sessionInfo struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Rows        int    `json:"rows"`
	Experiments int    `json:"experiments"`
}

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		all := h.sessionStore.GetAll()
		list := make([]sessionInfo, 0, len(all))
		for _, e := range all {
			st := e.Session.Snapshot()
			list = append(list, sessionInfo{
				ID:          e.ID,
				Source:      st.Source,
				Rows:        st.Rows,
				Experiments: len(st.Experiments),
			})
		}
		respondJSON(w, http.StatusOK, list)
	case http.MethodPost:
		e := h.sessionStore.Create(h.sessionOptions()...)
		slog.Info("Session created", "session", e.ID)
		respondJSON(w, http.StatusCreated, map[string]string{"session_id": e.ID})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sessionID, action, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/api/sessions/"), "/")

	e, exists := h.sessionStore.Get(sessionID)
	if !exists {
		RespondWithError(w, "Session not found", http.StatusNotFound)
		return
	}

	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			respondJSON(w, http.StatusOK, e.Session.Snapshot())
		case http.MethodDelete:
			h.sessionStore.Delete(sessionID)
			slog.Info("Session deleted", "session", sessionID)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case "upload":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleUpload(w, r, e)
	case "selection":
		if r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleSelection(w, r, e)
	case "chart":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		respondJSON(w, http.StatusOK, chartResponse{
			Chart:   e.Session.Chart(),
			Loading: e.Session.ChartLoading(),
		})
	case "chart.svg", "chart.png":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.handleChartImage(w, r, e, strings.TrimPrefix(action, "chart."))
	default:
		http.NotFound(w, r)
	}
}

type chartResponse struct {
	Chart   model.ChartData `json:"chart"`
	Loading bool            `json:"loading"`
}

// handleUpload parses the multipart "file" field and waits for the outcome
// so the response reflects it. A failed parse keeps the previous rows.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, e *Entry) {
	limit := h.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondWithError(w, fmt.Sprintf("File larger than %d bytes", limit), http.StatusRequestEntityTooLarge)
			return
		}
		RespondWithError(w, "Unable to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		RespondWithError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	// The multipart file goes away with the request, and the parse may
	// outlive it when the client disconnects.
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		RespondWithError(w, "Unable to read file", http.StatusBadRequest)
		return
	}

	e.drain()
	blob := &loader.Blob{Name: header.Filename, Size: int64(len(data)), Reader: bytes.NewReader(data)}
	if err := e.Session.Upload(context.WithoutCancel(r.Context()), blob); err != nil {
		if errors.Is(err, loader.ErrUploadInProgress) {
			RespondWithError(w, err.Error(), http.StatusConflict)
			return
		}
		RespondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	select {
	case notice := <-e.notices:
		if notice.Severity == model.SeverityError {
			slog.Warn("Upload rejected", "session", e.ID, "file", header.Filename)
			RespondWithError(w, notice.Detail, http.StatusUnprocessableEntity)
			return
		}
		slog.Info("Upload parsed", "session", e.ID, "file", header.Filename, "rows", len(e.Session.Rows()))
		respondJSON(w, http.StatusOK, map[string]any{
			"notice":  notice,
			"session": e.Session.Snapshot(),
		})
	case <-r.Context().Done():
		slog.Warn("Upload abandoned", "session", e.ID, "err", r.Context().Err())
	}
}

// selectionRequest leaves a field untouched when it is omitted.
type selectionRequest struct {
	Experiments *[]string `json:"experiments"`
	Metric      *string   `json:"metric"`
}

func (h *Handler) handleSelection(w http.ResponseWriter, r *http.Request, e *Entry) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Metric != nil {
		e.Session.SetMetric(*req.Metric)
	}
	if req.Experiments != nil {
		e.Session.SetExperiments(*req.Experiments)
	}
	respondJSON(w, http.StatusAccepted, e.Session.Snapshot())
}

func (h *Handler) handleChartImage(w http.ResponseWriter, r *http.Request, e *Entry, format string) {
	opts := export.ChartOptions{
		Title:  e.Session.SelectedMetric(),
		Width:  queryInt(r, "width"),
		Height: queryInt(r, "height"),
		Data:   e.Session.Chart(),
	}
	if format == "svg" {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "image/png")
	}
	if err := export.RenderChart(w, format, opts); err != nil {
		slog.Error("Unable to render chart", "session", e.ID, "err", err)
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
	}
}

// chartRequest is a self-contained chart build. Rows use the canonical
// column names as keys; other keys are kept as extra columns.
type chartRequest struct {
	Rows        []map[string]model.Cell `json:"rows"`
	Experiments []string                `json:"experiments"`
	Metric      string                  `json:"metric"`
	Align       bool                    `json:"align"`
}

// HandleChart builds a chart without a session. Colors come from the
// shared assigner.
func (h *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req chartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rows := make([]model.Row, 0, len(req.Rows))
	for i, rec := range req.Rows {
		row := model.Row{Line: i + 1}
		for col, c := range rec {
			row.Set(col, c)
		}
		if !row.IsBlank() {
			rows = append(rows, row)
		}
	}

	summary := aggregate.Aggregate(rows, h.colors)
	metric := req.Metric
	if metric == "" {
		metric = summary.DefaultMetric
	}
	var selected []model.Experiment
	for _, id := range req.Experiments {
		if exp, ok := summary.Find(id); ok {
			selected = append(selected, exp)
		}
	}

	data := chart.Build(rows, selected, metric, h.colors, chart.Aligned(req.Align))
	respondJSON(w, http.StatusOK, data)
}

func (h *Handler) HandleTiming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"enabled": metrics.Enabled(),
		"timings": metrics.AllTimingStats(),
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Unable to encode response", "err", err)
	}
}

// RespondWithError writes {"error": message} with the given status.
func RespondWithError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

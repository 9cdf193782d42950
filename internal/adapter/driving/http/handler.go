package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/diasync/internal/application"
	"github.com/ericfisherdev/diasync/internal/domain/model"
	"github.com/ericfisherdev/diasync/internal/domain/port/driven"
)

// maxRequestBody bounds every JSON request body.
const maxRequestBody = 64 << 10

// Ingestion is the connect/sync/disconnect facade served under /api/v1/dexcom.
type Ingestion interface {
	Connect(ctx context.Context, username, password, region string) (application.ConnectResult, error)
	Sync(ctx context.Context) (application.SyncResult, error)
	Disconnect(ctx context.Context) error
	Status(ctx context.Context) (model.SyncStatus, error)
}

// Glucose answers read queries over local history.
type Glucose interface {
	Readings(ctx context.Context, rangeName string) ([]model.Reading, error)
	Stats(ctx context.Context, rangeName string) (application.GlucoseStats, error)
}

// Insights generates free-text insights.
type Insights interface {
	Ask(ctx context.Context, prompt string) (string, error)
	MealInsight(ctx context.Context, meal application.Meal) (string, error)
}

// Health reports service health.
type Health interface {
	Check(ctx context.Context) application.HealthReport
}

// Poller is the optional background sync loop.
type Poller interface {
	Trigger()
	Schedule() application.ScheduleInfo
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	ingestion Ingestion
	glucose   Glucose
	insights  Insights
	health    Health
	poller    Poller
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. poller may be
// nil when background sync is disabled.
func NewHandler(
	ingestion Ingestion,
	glucose Glucose,
	insights Insights,
	health Health,
	poller Poller,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		ingestion: ingestion,
		glucose:   glucose,
		insights:  insights,
		health:    health,
		poller:    poller,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. metrics serves /metrics and may be nil.
func NewServeMux(h *Handler, metrics http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/v1/dexcom/connect", h.Connect)
	mux.HandleFunc("POST /api/v1/dexcom/sync", h.Sync)
	mux.HandleFunc("POST /api/v1/dexcom/disconnect", h.Disconnect)
	mux.HandleFunc("GET /api/v1/dexcom/status", h.Status)
	mux.HandleFunc("GET /api/v1/glucose/readings", h.ListReadings)
	mux.HandleFunc("GET /api/v1/glucose/stats", h.Stats)
	mux.HandleFunc("POST /api/v1/insight", h.Insight)
	mux.HandleFunc("POST /api/v1/insight/meal", h.MealInsight)
	mux.HandleFunc("GET /api/v1/health", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := maxBodyMiddleware(maxRequestBody, mux)
	wrapped = recoveryMiddleware(logger, wrapped)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Connect validates credentials against the share service and stores them.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ConnectResponse{Error: "invalid request body"})
		return
	}

	res, err := h.ingestion.Connect(r.Context(), req.Username, req.Password, req.Region)
	if err != nil {
		status := connectStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("failed to connect share account", "error", err)
		}
		writeJSON(w, status, toConnectResponse(res))
		return
	}

	if h.poller != nil {
		h.poller.Trigger()
	}

	writeJSON(w, http.StatusOK, toConnectResponse(res))
}

// Sync runs one sync with the connected account.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.ingestion.Sync(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, model.ErrSyncInProgress):
			writeError(w, http.StatusConflict, application.PublicMessage(err))
		case isShareError(err):
			writeError(w, http.StatusBadGateway, application.PublicMessage(err))
		default:
			h.logger.Error("sync failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, toSyncResponse(res))
}

// Disconnect forgets the stored account. Local history is kept.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.ingestion.Disconnect(r.Context()); err != nil {
		h.logger.Error("failed to disconnect", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Status returns the connection and sync status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.ingestion.Status(r.Context())
	if err != nil {
		h.logger.Error("failed to load sync status", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := toStatusResponse(status)
	if h.poller != nil && status.Connected {
		schedule := h.poller.Schedule()
		resp.NextSyncAt = formatTime(schedule.NextSyncAt)
		resp.Freshness = schedule.Tier.String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListReadings returns the readings in ?range=24h|7d|30d, oldest first.
func (h *Handler) ListReadings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.glucose.Readings(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		if errors.Is(err, application.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to list readings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]ReadingResponse, 0, len(readings))
	for _, reading := range readings {
		resp = append(resp, toReadingResponse(reading))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stats returns average and time-in-range figures for ?range.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.glucose.Stats(r.Context(), r.URL.Query().Get("range"))
	if err != nil {
		if errors.Is(err, application.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to compute stats", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toStatsResponse(stats))
}

// Insight forwards a free-form prompt to the text-generation backend.
func (h *Handler) Insight(w http.ResponseWriter, r *http.Request) {
	var req InsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := h.insights.Ask(r.Context(), req.Prompt)
	if err != nil {
		h.writeInsightError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInsightResponse(text))
}

// MealInsight asks for a comment on a meal in the context of recent readings.
func (h *Handler) MealInsight(w http.ResponseWriter, r *http.Request) {
	var req MealInsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text, err := h.insights.MealInsight(r.Context(), application.Meal{
		Name:  req.Name,
		Type:  req.Type,
		Carbs: req.Carbs,
	})
	if err != nil {
		h.writeInsightError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toInsightResponse(text))
}

func (h *Handler) writeInsightError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, driven.ErrInsightUnavailable):
		writeError(w, http.StatusServiceUnavailable, "insights are not configured")
	default:
		h.logger.Error("insight generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "insight generation failed")
	}
}

// Health reports database reachability and sync freshness. A degraded
// database yields 503; a stale sync is reported but still answers 200.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.health.Check(r.Context())

	status := http.StatusOK
	if report.Database != application.HealthOK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, HealthResponse{
		Status:     report.Status,
		Database:   report.Database,
		Connected:  report.Connected,
		LastSyncAt: formatTime(report.LastSyncAt),
		Time:       time.Now().UTC().Format(time.RFC3339),
	})
}

// connectStatus maps a Connect error onto an HTTP status.
func connectStatus(err error) int {
	switch {
	case errors.Is(err, model.ErrCredential), errors.Is(err, application.ErrInvalidRegion):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrDiscoveryExhausted), errors.Is(err, model.ErrZeroSession):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrSyncInProgress):
		return http.StatusConflict
	case isShareError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// isShareError reports whether err originated at the remote share service.
func isShareError(err error) bool {
	var statusErr *model.StatusError
	return errors.Is(err, model.ErrTransientNetwork) ||
		errors.Is(err, model.ErrMalformedResponse) ||
		errors.Is(err, model.ErrSessionExpired) ||
		errors.Is(err, model.ErrDiscoveryExhausted) ||
		errors.Is(err, model.ErrZeroSession) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &statusErr)
}

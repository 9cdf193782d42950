package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/diasync/internal/application"
	"github.com/ericfisherdev/diasync/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ConnectRequest is the JSON body for the connect endpoint.
type ConnectRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Region   string `json:"region"`
}

// ConnectResponse is the JSON representation of a connect attempt.
type ConnectResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId,omitempty"`
	Username  string `json:"username,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SyncResponse is the JSON representation of a sync run.
type SyncResponse struct {
	Skipped    bool    `json:"skipped"`
	Fetched    int     `json:"fetched"`
	Total      int     `json:"total"`
	LastSyncAt *string `json:"lastSyncAt"`
}

// StatusResponse is the JSON representation of the sync status.
type StatusResponse struct {
	Connected    bool    `json:"connected"`
	Region       string  `json:"region,omitempty"`
	AccountLabel string  `json:"accountLabel,omitempty"`
	AccountID    string  `json:"accountId,omitempty"`
	LastSyncAt   *string `json:"lastSyncAt"`
	LastError    string  `json:"lastError,omitempty"`
	NextSyncAt   *string `json:"nextSyncAt,omitempty"`
	Freshness    string  `json:"freshness,omitempty"`
}

// ReadingResponse is the JSON representation of a glucose reading.
type ReadingResponse struct {
	ID         string  `json:"id"`
	Mgdl       int     `json:"mgdl"`
	Mmol       float64 `json:"mmol"`
	Timestamp  string  `json:"timestamp"`
	Trend      string  `json:"trend"`
	TrendArrow string  `json:"trendArrow"`
}

// StatsResponse is the JSON representation of range statistics.
type StatsResponse struct {
	Range       string           `json:"range"`
	Count       int              `json:"count"`
	AverageMgdl float64          `json:"averageMgdl"`
	AverageMmol float64          `json:"averageMmol"`
	InRangePct  float64          `json:"inRangePct"`
	HighPct     float64          `json:"highPct"`
	LowPct      float64          `json:"lowPct"`
	Latest      *ReadingResponse `json:"latest"`
}

// InsightRequest is the JSON body for the insight endpoint.
type InsightRequest struct {
	Prompt string `json:"prompt"`
}

// MealInsightRequest is the JSON body for the meal insight endpoint.
type MealInsightRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Carbs int    `json:"carbs"`
}

// InsightResponse carries the generated text and its sanitized HTML rendering.
type InsightResponse struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status     string  `json:"status"`
	Database   string  `json:"database"`
	Connected  bool    `json:"connected"`
	LastSyncAt *string `json:"lastSyncAt"`
	Time       string  `json:"time"`
}

// formatTime renders t as RFC 3339 in UTC, or nil for the zero time.
func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func toConnectResponse(res application.ConnectResult) ConnectResponse {
	return ConnectResponse{
		Success:   res.Success,
		SessionID: res.SessionID,
		Username:  res.Username,
		AccountID: res.AccountID,
		Error:     res.Error,
	}
}

func toSyncResponse(res application.SyncResult) SyncResponse {
	return SyncResponse{
		Skipped:    res.Skipped,
		Fetched:    res.Fetched,
		Total:      res.Total,
		LastSyncAt: formatTime(res.LastSyncAt),
	}
}

func toStatusResponse(s model.SyncStatus) StatusResponse {
	return StatusResponse{
		Connected:    s.Connected,
		Region:       string(s.Region),
		AccountLabel: s.AccountLabel,
		AccountID:    s.AccountID,
		LastSyncAt:   formatTime(s.LastSyncAt),
		LastError:    s.LastError,
	}
}

func toReadingResponse(r model.Reading) ReadingResponse {
	return ReadingResponse{
		ID:         r.ID,
		Mgdl:       r.Value,
		Mmol:       r.MmolL,
		Timestamp:  r.Timestamp.UTC().Format(time.RFC3339),
		Trend:      r.Trend,
		TrendArrow: r.TrendArrow,
	}
}

func toStatsResponse(s application.GlucoseStats) StatsResponse {
	resp := StatsResponse{
		Range:       s.Range,
		Count:       s.Count,
		AverageMgdl: s.AverageMgdl,
		AverageMmol: s.AverageMmol,
		InRangePct:  s.InRangePct,
		HighPct:     s.HighPct,
		LowPct:      s.LowPct,
	}
	if s.Latest != nil {
		latest := toReadingResponse(*s.Latest)
		resp.Latest = &latest
	}
	return resp
}

func toInsightResponse(text string) InsightResponse {
	return InsightResponse{Text: text, HTML: RenderMarkdown(text)}
}

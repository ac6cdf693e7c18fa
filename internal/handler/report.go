package handler

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/rentaldash/searchdemand/internal/demand"
	"github.com/rentaldash/searchdemand/internal/handler/dto"
	"github.com/rentaldash/searchdemand/internal/loader"
	"github.com/rentaldash/searchdemand/internal/model"
)

// MaxBuildRequestBytes caps the body of a POST build request.
const MaxBuildRequestBytes = 8 << 20

// ReportService is the subset of service.ReportService the handler needs.
type ReportService interface {
	Report(ctx context.Context, cfg model.WindowConfig, now time.Time) (*model.AnalyticsReport, error)
	BuildFromBatch(ctx context.Context, cfg model.WindowConfig, batch []model.SearchAggregate, now time.Time) (*model.AnalyticsReport, error)
	Aggregates(ctx context.Context, cfg model.WindowConfig, now time.Time) ([]model.SearchAggregate, error)
}

// ReportHandler serves search-demand reports.
type ReportHandler struct {
	service  ReportService
	defaults model.WindowConfig
	now      func() time.Time
	logger   *slog.Logger
}

// NewReportHandler creates a new ReportHandler. defaults fill any window setting a request omits.
func NewReportHandler(service ReportService, defaults model.WindowConfig, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service:  service,
		defaults: defaults,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With("component", "handler.report"),
	}
}

// SearchDemand handles GET /api/v1/analytics/search-demand.
func (h *ReportHandler) SearchDemand(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}
	w.Header().Set("X-Report-ID", newReportID(report.GeneratedAt))
	writeJSON(w, http.StatusOK, report)
}

// Export handles GET /api/v1/analytics/search-demand/export.
// The report is sent as an indented JSON attachment named after the build date.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	report, ok := h.loadReport(w, r)
	if !ok {
		return
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		h.logger.Error("failed to encode export", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to export report")
		return
	}

	filename := fmt.Sprintf("search-demand-%s.json", report.GeneratedAt.UTC().Format(model.DateLayout))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("X-Report-ID", newReportID(report.GeneratedAt))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// UpcomingCheckins handles GET /api/v1/analytics/upcoming-checkins.
func (h *ReportHandler) UpcomingCheckins(w http.ResponseWriter, r *http.Request) {
	cfg, err := parseWindow(r.URL.Query(), h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}

	batch, err := h.service.Aggregates(r.Context(), cfg, h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if batch == nil {
		batch = []model.SearchAggregate{}
	}

	writeJSON(w, http.StatusOK, dto.AggregateListResponse{Data: batch})
}

// BuildReport handles POST /api/v1/analytics/search-demand.
// The report is built from the posted batch instead of the configured source.
func (h *ReportHandler) BuildReport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBuildRequestBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE", "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read request body")
		return
	}

	var req dto.BuildReportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body")
		return
	}

	now := h.now()
	if req.Now != nil {
		// Report ids carry the build time as a ULID timestamp.
		if ulid.Timestamp(*req.Now) > ulid.MaxTime() {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "now must be between 1970-01-01 and 10889-08-02")
			return
		}
		now = req.Now.UTC()
	}

	report, err := h.service.BuildFromBatch(r.Context(), req.Config.Apply(h.defaults), req.Aggregates, now)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("X-Report-ID", newReportID(report.GeneratedAt))
	writeJSON(w, http.StatusOK, report)
}

func (h *ReportHandler) loadReport(w http.ResponseWriter, r *http.Request) (*model.AnalyticsReport, bool) {
	cfg, err := parseWindow(r.URL.Query(), h.defaults)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return nil, false
	}

	report, err := h.service.Report(r.Context(), cfg, h.now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return nil, false
	}
	return report, true
}

// writeServiceError maps service failures to API errors. Nothing is written once the
// client has gone away.
func (h *ReportHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if r.Context().Err() != nil {
		h.logger.Debug("request canceled", "error", err)
		return
	}

	var cfgErr *demand.ConfigurationError
	var valErr *demand.ValidationError

	switch {
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusBadRequest, "INVALID_CONFIG", cfgErr.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusUnprocessableEntity, "INVALID_AGGREGATE", valErr.Error())
	case errors.Is(err, loader.ErrSourceUnavailable):
		writeError(w, http.StatusBadGateway, "SOURCE_UNAVAILABLE", "Aggregate source unavailable")
	default:
		h.logger.Error("failed to serve report", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
	}
}

// parseWindow reads days_ahead, limit and include_anonymous. Absent parameters keep defaults.
func parseWindow(q url.Values, defaults model.WindowConfig) (model.WindowConfig, error) {
	cfg := defaults

	if v := q.Get("days_ahead"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("days_ahead must be an integer, got %q", v)
		}
		cfg.DaysAhead = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("limit must be an integer, got %q", v)
		}
		cfg.Limit = n
	}
	if v := q.Get("include_anonymous"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("include_anonymous must be a boolean, got %q", v)
		}
		cfg.IncludeAnonymous = b
	}

	return cfg, nil
}

// newReportID returns a ULID whose timestamp is the report's build time, or the
// current time when the build time has no ULID representation.
func newReportID(generatedAt time.Time) string {
	id, err := ulid.New(ulid.Timestamp(generatedAt), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

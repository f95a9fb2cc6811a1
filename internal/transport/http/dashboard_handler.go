package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "twpulse/internal/errors"
	"twpulse/internal/services"
)

// maxWindow bounds the user-supplied moving average window so a single
// request cannot ask for an absurd amount of smoothing.
const maxWindow = 500

// DashboardHandler serves the dashboard API with RFC 7807 error responses.
type DashboardHandler struct {
	service      DashboardServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard API routes.
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/dashboard", h.GetDashboard)
	r.Get("/missing", h.GetMissing)
	r.Get("/summary", h.GetSummary)
	r.Get("/describe", h.GetDescribe)
	r.Get("/ranking", h.GetRanking)
	r.Post("/refresh", h.Refresh)
	r.Get("/export/xlsx", h.ExportXLSX)

	r.Route("/series", func(r chi.Router) {
		r.Get("/normalized", h.GetNormalized)
		r.Get("/{security}", h.GetSeries)
	})

	return r
}

// GetDashboard returns the complete snapshot the front page renders from.
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// GetMissing returns missing-value counts for each pipeline stage.
func (h *DashboardHandler) GetMissing(w http.ResponseWriter, r *http.Request) {
	missing, degenerate, err := h.service.Missing(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"missing":    missing,
		"degenerate": degenerate,
	})
}

// GetSummary returns the annualized risk/return table.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.RiskReturn(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"summary": summary})
}

// GetDescribe returns descriptive statistics for the repaired prices.
func (h *DashboardHandler) GetDescribe(w http.ResponseWriter, r *http.Request) {
	describe, err := h.service.Describe(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"describe": describe})
}

// GetNormalized returns every security's price series rebased to 1.0.
func (h *DashboardHandler) GetNormalized(w http.ResponseWriter, r *http.Request) {
	normalized, err := h.service.Normalized(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, normalized)
}

// GetSeries returns one security's repaired prices and moving average.
// The security may be given as a ticker symbol or a display label, and
// the optional window query parameter overrides the configured moving
// average window.
func (h *DashboardHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	security := chi.URLParam(r, "security")
	if security == "" {
		h.errorHandler.HandleError(w, r, apierrors.NewValidationProblem(r.URL.Path,
			apierrors.ValidationError{Field: "security", Message: "security is required"}))
		return
	}

	window := 0
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2 || parsed > maxWindow {
			h.errorHandler.HandleError(w, r, apierrors.NewValidationProblem(r.URL.Path,
				apierrors.ValidationError{Field: "window", Message: "window must be an integer between 2 and 500"}))
			return
		}
		window = parsed
	}

	series, err := h.service.Series(r.Context(), security, window)
	if err != nil {
		if errors.Is(err, services.ErrUnknownSecurity) {
			err = apierrors.NewNotFoundProblem(r.URL.Path, "security "+security+" is not part of the tracked universe")
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, series)
}

// GetRanking returns the securities ordered by total return.
func (h *DashboardHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	ranking, err := h.service.Ranking(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"ranking": ranking})
}

// Refresh drops the memoized acquisition and recomputes the snapshot.
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "manual refresh requested")

	snap, err := h.service.Refresh(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, snap)
}

// ExportXLSX sends the computed tables as an Excel workbook. The
// workbook is built in memory first so failures still produce a
// problem+json response instead of a truncated download.
func (h *DashboardHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportWorkbook(r.Context(), &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	filename := "twpulse_" + time.Now().UTC().Format("20060102") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))

	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "workbook download interrupted", slog.String("error", err.Error()))
	}
}

package errors

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"twpulse/internal/infrastructure"
)

// ErrorHandler provides centralized error handling: every error leaving a
// handler is logged once and rendered as an RFC 7807 problem document.
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger.With(slog.String("component", "error_handler")),
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())

	h.logger.ErrorContext(r.Context(), "request failed",
		slog.String("error", err.Error()),
		slog.String("trace_id", traceID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", traceID)

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(problem.Status)
	if encodeErr := json.NewEncoder(w).Encode(problem); encodeErr != nil {
		h.logger.ErrorContext(r.Context(), "failed to write problem response",
			slog.String("error", encodeErr.Error()))
	}
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			r.URL.Path,
		)
	}

	var problem *ProblemDetails
	if errors.As(err, &problem) {
		return problem
	}

	var acqErr *AcquisitionError
	if errors.As(err, &acqErr) {
		return NewProblemDetails(
			http.StatusBadGateway,
			TypeAcquisition,
			"Price Acquisition Failed",
			acqErr.Error(),
			r.URL.Path,
		).WithExtension("source", acqErr.Source)
	}

	var degErr *DegenerateColumnError
	if errors.As(err, &degErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDegenerateColumn,
			"Degenerate Security Column",
			degErr.Error(),
			r.URL.Path,
		).WithExtension("securities", degErr.Labels)
	}

	var dqErr *DataQualityError
	if errors.As(err, &dqErr) {
		return NewProblemDetails(
			http.StatusUnprocessableEntity,
			TypeDataQuality,
			"Data Quality Error",
			dqErr.Error(),
			r.URL.Path,
		).WithExtension("security", dqErr.Label).WithExtension("operation", dqErr.Op)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing the request",
		r.URL.Path,
	)
}

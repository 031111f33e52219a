package errors

import "net/http"

// Ошибки конфигурации
var (
	ErrCRSMismatch = New(
		"CRS_MISMATCH",
		"Observation and unit layer coordinate reference systems differ",
		http.StatusUnprocessableEntity,
		KindConfig,
	)

	ErrInvalidMinimumCount = New(
		"INVALID_MINIMUM_COUNT",
		"minimum_count must be a positive integer",
		http.StatusBadRequest,
		KindConfig,
	)

	ErrLayerUnavailable = New(
		"LAYER_UNAVAILABLE",
		"Unit layer could not be loaded",
		http.StatusUnprocessableEntity,
		KindConfig,
	)

	ErrInvalidLayer = New(
		"INVALID_LAYER",
		"Unit layer is invalid",
		http.StatusUnprocessableEntity,
		KindConfig,
	)

	ErrMissingColumn = New(
		"MISSING_COLUMN",
		"Required observation column is missing",
		http.StatusUnprocessableEntity,
		KindConfig,
	)

	ErrInvalidConfig = New(
		"INVALID_CONFIG",
		"Invalid configuration",
		http.StatusBadRequest,
		KindConfig,
	)
)

// Ошибки данных и запросов
var (
	ErrObservationsUnavailable = New(
		"OBSERVATIONS_UNAVAILABLE",
		"Observations could not be loaded",
		http.StatusUnprocessableEntity,
		KindData,
	)

	ErrInvalidRequest = New(
		"INVALID_REQUEST",
		"Invalid request parameters",
		http.StatusBadRequest,
		KindData,
	)

	ErrRunNotFound = New(
		"RUN_NOT_FOUND",
		"Run not found",
		http.StatusNotFound,
		KindNotFound,
	)

	ErrSummaryNotFound = New(
		"SUMMARY_NOT_FOUND",
		"No summaries for indicator and unit kind",
		http.StatusNotFound,
		KindNotFound,
	)
)

// Внутренние ошибки
var (
	ErrDatabaseError = New(
		"DATABASE_ERROR",
		"Database operation failed",
		http.StatusInternalServerError,
		KindInternal,
	)

	ErrCacheError = New(
		"CACHE_ERROR",
		"Cache operation failed",
		http.StatusInternalServerError,
		KindInternal,
	)

	ErrOutputError = New(
		"OUTPUT_ERROR",
		"Failed to write output artifact",
		http.StatusInternalServerError,
		KindInternal,
	)

	ErrStreamError = New(
		"STREAM_ERROR",
		"Stream operation failed",
		http.StatusServiceUnavailable,
		KindInternal,
	)

	ErrInternalServer = New(
		"INTERNAL_SERVER_ERROR",
		"Internal server error",
		http.StatusInternalServerError,
		KindInternal,
	)
)

// Package observability provides logging and metrics support for the
// thesis service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for research runs, searches, sources, and uploads
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("thesis_id", thesisID).Msg("research run started")
//
// Add run context to logger:
//
//	logger = observability.WithThesisContext(logger, requestID, thesisID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("thesis_service")
//
// Record metrics:
//
//	metrics.RecordRunStarted()
//	metrics.RecordSearchCompleted("openalex", 42, 1.3)
//	metrics.RecordSourcesFound("semantic_scholar", 25)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithThesisID(ctx, thesisID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	thesisID := observability.ThesisIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - thesis_id: Thesis request identifier
//   - provider: Search provider (openalex, semantic_scholar)
//   - query: Generated search query
//   - chapter: Outline chapter number
//   - doi: Source DOI
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability

// Package litsearch provides clients for the external literature search APIs
// consumed by the research pipeline.
//
// Each provider client implements the Searcher interface and returns
// normalized domain.Source records. Search failures are non-fatal by
// contract: a non-2xx response yields an empty result, logged at warn level,
// so a single bad query never aborts a pipeline run.
package litsearch

import (
	"context"

	"github.com/scribenet/thesis-service/internal/domain"
)

// Searcher is implemented by every literature search provider client.
type Searcher interface {
	// Search queries the provider and returns normalized sources.
	// A provider-side failure returns an empty slice, not an error.
	Search(ctx context.Context, query string) ([]domain.Source, error)

	// Provider returns the provider identity for origin tagging.
	Provider() domain.Provider
}

// PDFResolver resolves an open-access PDF URL for a DOI. A miss (including
// 404 and transport errors) returns an empty string with a nil error.
type PDFResolver interface {
	ResolvePDFURL(ctx context.Context, doi string) (string, error)
}

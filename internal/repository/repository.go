// Package repository provides data access for the thesis service.
//
// It defines the RecordStore interface used by the research pipeline and two
// implementations: a PostgreSQL store backed by pgx and an in-memory store
// for tests and local development.
//
// All implementations are safe for concurrent use. Methods return
// domain-specific errors (domain.ErrNotFound wrapped in *domain.NotFoundError)
// and wrap database errors with fmt.Errorf and the %w verb.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/scribenet/thesis-service/internal/database"
	"github.com/scribenet/thesis-service/internal/domain"
)

// DBTX is the database interface supporting both pool and transaction contexts.
// Repository constructors accept DBTX so callers can pass either the pool or a
// transaction from database.DB.WithTransaction.
type DBTX = database.DBTX

// RecordStore is the full persistence surface of the thesis service: thesis
// reads and writes, the append-only ingestion record log, and research
// results. The pipeline consumes narrow subsets of this interface.
type RecordStore interface {
	// CreateThesis inserts a new thesis in draft status.
	// Returns domain.ErrAlreadyExists if the ID is already taken.
	CreateThesis(ctx context.Context, thesis *domain.ThesisRequest) error

	// GetThesis retrieves a thesis by ID.
	// Returns a *domain.NotFoundError if no matching thesis exists.
	GetThesis(ctx context.Context, id uuid.UUID) (*domain.ThesisRequest, error)

	// GetStatus returns the current lifecycle status of a thesis.
	GetStatus(ctx context.Context, id uuid.UUID) (domain.ThesisStatus, error)

	// UpdateStatus sets the lifecycle status of a thesis.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ThesisStatus) error

	// ListIngestionRecords returns all ingestion records for a thesis in
	// upload order. A thesis with no records yields an empty slice.
	ListIngestionRecords(ctx context.Context, id uuid.UUID) ([]domain.IngestionRecord, error)

	// AppendIngestionRecord appends one record to the ingestion log.
	// Records are immutable once written.
	AppendIngestionRecord(ctx context.Context, thesisID uuid.UUID, record domain.IngestionRecord) error

	// SaveResearchResult persists the result of a completed pipeline run.
	SaveResearchResult(ctx context.Context, id uuid.UUID, result domain.ResearchResult) error

	// GetResearchResult returns the most recently saved research result.
	// Returns a *domain.NotFoundError when no result has been saved.
	GetResearchResult(ctx context.Context, id uuid.UUID) (*domain.ResearchResult, error)
}

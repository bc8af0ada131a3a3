package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/scribenet/thesis-service/internal/domain"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// Compile-time interface verification.
var _ RecordStore = (*PgRecordStore)(nil)

// PgRecordStore is a PostgreSQL implementation of RecordStore.
type PgRecordStore struct {
	db DBTX
}

// NewPgRecordStore creates a new PostgreSQL record store.
func NewPgRecordStore(db DBTX) *PgRecordStore {
	return &PgRecordStore{db: db}
}

// CreateThesis inserts a new thesis in draft status.
func (r *PgRecordStore) CreateThesis(ctx context.Context, thesis *domain.ThesisRequest) error {
	if thesis == nil {
		return fmt.Errorf("%w: thesis cannot be nil", domain.ErrInvalidInput)
	}
	if thesis.ID == uuid.Nil {
		return fmt.Errorf("%w: thesis ID is required", domain.ErrInvalidInput)
	}
	if thesis.Title == "" {
		return fmt.Errorf("%w: thesis title is required", domain.ErrInvalidInput)
	}

	outlineJSON, err := json.Marshal(thesis.Outline)
	if err != nil {
		return fmt.Errorf("failed to marshal outline: %w", err)
	}

	mandatoryJSON, err := json.Marshal(thesis.MandatorySources)
	if err != nil {
		return fmt.Errorf("failed to marshal mandatory sources: %w", err)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO theses (
			id, title, field, thesis_type, research_question,
			citation_style, target_length, length_unit, outline,
			retrieval_store_id, language, mandatory_sources,
			status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15
		)`

	_, err = r.db.Exec(ctx, query,
		thesis.ID, thesis.Title, thesis.Field, thesis.ThesisType, thesis.ResearchQuestion,
		thesis.CitationStyle, thesis.TargetLength, string(thesis.LengthUnit), outlineJSON,
		thesis.RetrievalStoreID, thesis.Language, mandatoryJSON,
		string(domain.StatusDraft), now, now,
	)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("thesis %s: %w", thesis.ID, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create thesis: %w", err)
	}

	return nil
}

// GetThesis retrieves a thesis by ID.
func (r *PgRecordStore) GetThesis(ctx context.Context, id uuid.UUID) (*domain.ThesisRequest, error) {
	query := `
		SELECT id, title, field, thesis_type, research_question,
			citation_style, target_length, length_unit, outline,
			retrieval_store_id, language, mandatory_sources
		FROM theses
		WHERE id = $1`

	var (
		thesis        domain.ThesisRequest
		lengthUnit    string
		outlineJSON   []byte
		mandatoryJSON []byte
	)

	err := r.db.QueryRow(ctx, query, id).Scan(
		&thesis.ID, &thesis.Title, &thesis.Field, &thesis.ThesisType, &thesis.ResearchQuestion,
		&thesis.CitationStyle, &thesis.TargetLength, &lengthUnit, &outlineJSON,
		&thesis.RetrievalStoreID, &thesis.Language, &mandatoryJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("thesis", id.String())
		}
		return nil, fmt.Errorf("failed to get thesis: %w", err)
	}

	thesis.LengthUnit = domain.LengthUnit(lengthUnit)
	if err := json.Unmarshal(outlineJSON, &thesis.Outline); err != nil {
		return nil, fmt.Errorf("failed to unmarshal outline: %w", err)
	}
	if len(mandatoryJSON) > 0 {
		if err := json.Unmarshal(mandatoryJSON, &thesis.MandatorySources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal mandatory sources: %w", err)
		}
	}

	return &thesis, nil
}

// GetStatus returns the current lifecycle status of a thesis.
func (r *PgRecordStore) GetStatus(ctx context.Context, id uuid.UUID) (domain.ThesisStatus, error) {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM theses WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.NewNotFoundError("thesis", id.String())
		}
		return "", fmt.Errorf("failed to get thesis status: %w", err)
	}
	return domain.ThesisStatus(status), nil
}

// UpdateStatus sets the lifecycle status of a thesis.
func (r *PgRecordStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ThesisStatus) error {
	query := `UPDATE theses SET status = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update thesis status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("thesis", id.String())
	}

	return nil
}

// ListIngestionRecords returns all ingestion records for a thesis in upload order.
func (r *PgRecordStore) ListIngestionRecords(ctx context.Context, id uuid.UUID) ([]domain.IngestionRecord, error) {
	query := `
		SELECT doi, title, file_name, source_url, metadata, uploaded_at
		FROM ingestion_records
		WHERE thesis_id = $1
		ORDER BY id`

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.IngestionRecord, 0)
	for rows.Next() {
		var (
			record       domain.IngestionRecord
			metadataJSON []byte
		)
		if err := rows.Scan(&record.DOI, &record.Title, &record.FileName, &record.SourceURL, &metadataJSON, &record.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion record: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &record.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal record metadata: %w", err)
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion records: %w", err)
	}

	return records, nil
}

// AppendIngestionRecord appends one record to the ingestion log.
func (r *PgRecordStore) AppendIngestionRecord(ctx context.Context, thesisID uuid.UUID, record domain.IngestionRecord) error {
	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal record metadata: %w", err)
	}

	uploadedAt := record.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO ingestion_records (
			thesis_id, doi, title, file_name, source_url, metadata, uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		thesisID, record.DOI, record.Title, record.FileName, record.SourceURL, metadataJSON, uploadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append ingestion record: %w", err)
	}

	return nil
}

// SaveResearchResult persists the result of a completed pipeline run.
func (r *PgRecordStore) SaveResearchResult(ctx context.Context, id uuid.UUID, result domain.ResearchResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal research result: %w", err)
	}

	query := `UPDATE theses SET research_result = $1, updated_at = $2 WHERE id = $3`

	tag, err := r.db.Exec(ctx, query, resultJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to save research result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("thesis", id.String())
	}

	return nil
}

// GetResearchResult returns the most recently saved research result.
func (r *PgRecordStore) GetResearchResult(ctx context.Context, id uuid.UUID) (*domain.ResearchResult, error) {
	var resultJSON []byte
	err := r.db.QueryRow(ctx, `SELECT research_result FROM theses WHERE id = $1`, id).Scan(&resultJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("thesis", id.String())
		}
		return nil, fmt.Errorf("failed to get research result: %w", err)
	}
	if len(resultJSON) == 0 {
		return nil, domain.NewNotFoundError("research result", id.String())
	}

	var result domain.ResearchResult
	if err := json.Unmarshal(resultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal research result: %w", err)
	}

	return &result, nil
}

// isPgUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scribenet/thesis-service/internal/domain"
)

// Compile-time interface verification.
var _ RecordStore = (*Memory)(nil)

// Memory is an in-memory RecordStore for tests and local development.
type Memory struct {
	mu       sync.RWMutex
	theses   map[uuid.UUID]*domain.ThesisRequest
	statuses map[uuid.UUID]domain.ThesisStatus
	records  map[uuid.UUID][]domain.IngestionRecord
	results  map[uuid.UUID]*domain.ResearchResult
}

// NewMemory creates an empty in-memory record store.
func NewMemory() *Memory {
	return &Memory{
		theses:   make(map[uuid.UUID]*domain.ThesisRequest),
		statuses: make(map[uuid.UUID]domain.ThesisStatus),
		records:  make(map[uuid.UUID][]domain.IngestionRecord),
		results:  make(map[uuid.UUID]*domain.ResearchResult),
	}
}

// CreateThesis inserts a new thesis in draft status.
func (m *Memory) CreateThesis(_ context.Context, thesis *domain.ThesisRequest) error {
	if thesis == nil {
		return fmt.Errorf("%w: thesis cannot be nil", domain.ErrInvalidInput)
	}
	if thesis.ID == uuid.Nil {
		return fmt.Errorf("%w: thesis ID is required", domain.ErrInvalidInput)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.theses[thesis.ID]; ok {
		return fmt.Errorf("thesis %s: %w", thesis.ID, domain.ErrAlreadyExists)
	}

	copied := *thesis
	m.theses[thesis.ID] = &copied
	m.statuses[thesis.ID] = domain.StatusDraft
	return nil
}

// GetThesis retrieves a thesis by ID.
func (m *Memory) GetThesis(_ context.Context, id uuid.UUID) (*domain.ThesisRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	thesis, ok := m.theses[id]
	if !ok {
		return nil, domain.NewNotFoundError("thesis", id.String())
	}
	copied := *thesis
	return &copied, nil
}

// GetStatus returns the current lifecycle status of a thesis.
func (m *Memory) GetStatus(_ context.Context, id uuid.UUID) (domain.ThesisStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, ok := m.statuses[id]
	if !ok {
		return "", domain.NewNotFoundError("thesis", id.String())
	}
	return status, nil
}

// UpdateStatus sets the lifecycle status of a thesis.
func (m *Memory) UpdateStatus(_ context.Context, id uuid.UUID, status domain.ThesisStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.theses[id]; !ok {
		return domain.NewNotFoundError("thesis", id.String())
	}
	m.statuses[id] = status
	return nil
}

// ListIngestionRecords returns all ingestion records for a thesis in upload order.
func (m *Memory) ListIngestionRecords(_ context.Context, id uuid.UUID) ([]domain.IngestionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := m.records[id]
	out := make([]domain.IngestionRecord, len(records))
	copy(out, records)
	return out, nil
}

// AppendIngestionRecord appends one record to the ingestion log.
func (m *Memory) AppendIngestionRecord(_ context.Context, thesisID uuid.UUID, record domain.IngestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record.UploadedAt.IsZero() {
		record.UploadedAt = time.Now().UTC()
	}
	m.records[thesisID] = append(m.records[thesisID], record)
	return nil
}

// SaveResearchResult persists the result of a completed pipeline run.
func (m *Memory) SaveResearchResult(_ context.Context, id uuid.UUID, result domain.ResearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.theses[id]; !ok {
		return domain.NewNotFoundError("thesis", id.String())
	}
	m.results[id] = &result
	return nil
}

// GetResearchResult returns the most recently saved research result.
func (m *Memory) GetResearchResult(_ context.Context, id uuid.UUID) (*domain.ResearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result, ok := m.results[id]
	if !ok {
		return nil, domain.NewNotFoundError("research result", id.String())
	}
	copied := *result
	return &copied, nil
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/pipeline"
)

// maxRequestBodySize limits request bodies to 1 MB.
const maxRequestBodySize = 1 << 20

// createThesisRequest is the JSON request body for registering a thesis.
type createThesisRequest struct {
	Title            string                  `json:"title" validate:"required,min=3,max=500"`
	Field            string                  `json:"field" validate:"required"`
	ThesisType       string                  `json:"thesis_type" validate:"required"`
	ResearchQuestion string                  `json:"research_question" validate:"required"`
	CitationStyle    string                  `json:"citation_style" validate:"required,oneof=apa harvard mla deutsche-zitierweise"`
	TargetLength     int                     `json:"target_length" validate:"required,gt=0"`
	LengthUnit       string                  `json:"length_unit" validate:"required,oneof=words pages"`
	Outline          []outlineChapterRequest `json:"outline" validate:"required,min=1,dive"`
	RetrievalStoreID string                  `json:"retrieval_store_id" validate:"required"`
	Language         string                  `json:"language,omitempty"`
	MandatorySources []string                `json:"mandatory_sources,omitempty" validate:"max=50"`
}

// outlineChapterRequest is one chapter of the submitted outline.
type outlineChapterRequest struct {
	Number string `json:"number" validate:"required"`
	Title  string `json:"title" validate:"required"`
}

// createThesis handles POST /api/v1/theses.
func (s *Server) createThesis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createThesisRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeError(w, http.StatusBadRequest, "validation failed on field "+verrs[0].Field())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	outline := make([]domain.OutlineChapter, len(req.Outline))
	for i, ch := range req.Outline {
		outline[i] = domain.OutlineChapter{Number: ch.Number, Title: ch.Title}
	}

	language := req.Language
	if language == "" {
		language = "English"
	}

	thesis := &domain.ThesisRequest{
		ID:               uuid.New(),
		Title:            req.Title,
		Field:            req.Field,
		ThesisType:       req.ThesisType,
		ResearchQuestion: req.ResearchQuestion,
		CitationStyle:    req.CitationStyle,
		TargetLength:     req.TargetLength,
		LengthUnit:       domain.LengthUnit(req.LengthUnit),
		Outline:          outline,
		RetrievalStoreID: req.RetrievalStoreID,
		Language:         language,
		MandatorySources: req.MandatorySources,
	}

	if err := s.store.CreateThesis(ctx, thesis); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createThesisResponse{
		ThesisID:  thesis.ID.String(),
		Status:    string(domain.StatusDraft),
		CreatedAt: time.Now().UTC(),
	})
}

// startResearch handles POST /api/v1/theses/{thesisID}/research. It
// dispatches a pipeline run in the background and returns immediately; the
// run slot is acquired through the gate inside the goroutine so the request
// never blocks on concurrency limits.
func (s *Server) startResearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	thesisID, ok := parseUUID(w, chi.URLParam(r, "thesisID"), "thesis_id")
	if !ok {
		return
	}

	status, err := s.store.GetStatus(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if status == domain.StatusResearching {
		writeError(w, http.StatusConflict, domain.ErrRunActive.Error())
		return
	}

	s.mu.Lock()
	if _, running := s.inFlight[thesisID]; running {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, domain.ErrRunActive.Error())
		return
	}
	s.inFlight[thesisID] = pipeline.ProgressStarted
	s.mu.Unlock()

	go s.runResearch(thesisID)

	writeJSON(w, http.StatusAccepted, startResearchResponse{
		ThesisID: thesisID.String(),
		Status:   string(domain.StatusResearching),
		Message:  "research started",
	})
}

// runResearch executes one pipeline run detached from the request context.
func (s *Server) runResearch(thesisID uuid.UUID) {
	ctx := context.Background()
	logger := s.logger.With().Str("thesis_id", thesisID.String()).Logger()

	defer func() {
		s.mu.Lock()
		delete(s.inFlight, thesisID)
		s.mu.Unlock()
	}()

	if err := s.gate.Acquire(ctx); err != nil {
		logger.Error().Err(err).Msg("run slot acquisition failed")
		return
	}
	defer s.gate.Release()

	if s.metrics != nil {
		s.metrics.RecordRunStarted()
	}
	start := time.Now()

	progress := func(percent int) {
		s.mu.Lock()
		s.inFlight[thesisID] = percent
		s.mu.Unlock()
	}

	result, err := s.runner.Run(ctx, thesisID, progress)
	if err != nil {
		logger.Error().Err(err).Msg("research run failed")
		if s.metrics != nil {
			s.metrics.RecordRunFailed(time.Since(start).Seconds())
		}
		if stErr := s.store.UpdateStatus(ctx, thesisID, domain.StatusFailed); stErr != nil {
			logger.Error().Err(stErr).Msg("status update after run failure")
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordRunCompleted(time.Since(start).Seconds())
	}
	logger.Info().
		Int("total_found", result.TotalFound).
		Int("uploaded", result.UploadedCount).
		Dur("duration", time.Since(start)).
		Msg("research run complete")
}

// getResearchStatus handles GET /api/v1/theses/{thesisID}/research.
func (s *Server) getResearchStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	thesisID, ok := parseUUID(w, chi.URLParam(r, "thesisID"), "thesis_id")
	if !ok {
		return
	}

	status, err := s.store.GetStatus(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	records, err := s.store.ListIngestionRecords(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := researchStatusResponse{
		ThesisID:      thesisID.String(),
		Status:        string(status),
		UploadedCount: len(records),
	}

	s.mu.Lock()
	if p, running := s.inFlight[thesisID]; running {
		resp.Progress = &p
	}
	s.mu.Unlock()

	result, err := s.store.GetResearchResult(ctx, thesisID)
	switch {
	case err == nil:
		resp.TotalFound = result.TotalFound
		resp.FinalSources = sourceResponses(result.FinalSources)
	case errors.Is(err, domain.ErrNotFound):
		// No completed run yet; counts from ingestion records suffice.
	default:
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// draftThesis handles POST /api/v1/theses/{thesisID}/draft. Drafting is
// synchronous: the generation and humanization calls run within the request,
// so the route is expected to be slow and callers set their timeouts
// accordingly.
func (s *Server) draftThesis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.drafter == nil {
		writeError(w, http.StatusServiceUnavailable, "drafting is not configured")
		return
	}

	thesisID, ok := parseUUID(w, chi.URLParam(r, "thesisID"), "thesis_id")
	if !ok {
		return
	}

	status, err := s.store.GetStatus(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if status != domain.StatusResearched {
		writeError(w, http.StatusConflict, "thesis research is not complete")
		return
	}

	thesis, err := s.store.GetThesis(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	result, err := s.store.GetResearchResult(ctx, thesisID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	draft, err := s.drafter.Produce(ctx, *thesis, result.FinalSources)
	if err != nil {
		s.logger.Error().Err(err).Str("thesis_id", thesisID.String()).Msg("draft production failed")
		writeError(w, http.StatusInternalServerError, "draft generation failed")
		return
	}

	writeJSON(w, http.StatusOK, draftResponse{
		ThesisID:           thesisID.String(),
		Text:               draft.Text,
		Citations:          draft.Citations,
		WordCount:          draft.Validation.WordCount,
		Valid:              draft.Validation.Valid,
		ValidationErrors:   draft.Validation.Errors,
		HumanPercentage:    draft.HumanPercentage,
		HumanizeIterations: draft.HumanizeIterations,
	})
}

// decodeBody reads and unmarshals a JSON request body, writing a 400 error
// response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}
	return true
}

// writeDomainError maps domain errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrRunActive):
		writeError(w, http.StatusConflict, domain.ErrRunActive.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if invalid.
// The parse error details are not included to avoid echoing potentially malicious input.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+fieldName)
		return uuid.Nil, false
	}
	return id, true
}

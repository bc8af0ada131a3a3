package server

import (
	"time"

	"github.com/scribenet/thesis-service/internal/domain"
	"github.com/scribenet/thesis-service/internal/generate"
)

// Response types for JSON serialization.

type createThesisResponse struct {
	ThesisID  string    `json:"thesis_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type startResearchResponse struct {
	ThesisID string `json:"thesis_id"`
	Status   string `json:"status"`
	Message  string `json:"message"`
}

type researchStatusResponse struct {
	ThesisID      string           `json:"thesis_id"`
	Status        string           `json:"status"`
	Progress      *int             `json:"progress,omitempty"`
	TotalFound    int              `json:"total_found"`
	UploadedCount int              `json:"uploaded_count"`
	FinalSources  []sourceResponse `json:"final_sources,omitempty"`
}

type draftResponse struct {
	ThesisID           string              `json:"thesis_id"`
	Text               string              `json:"text"`
	Citations          []generate.Citation `json:"citations,omitempty"`
	WordCount          int                 `json:"word_count"`
	Valid              bool                `json:"valid"`
	ValidationErrors   []string            `json:"validation_errors,omitempty"`
	HumanPercentage    float64             `json:"human_percentage"`
	HumanizeIterations int                 `json:"humanize_iterations"`
}

type sourceResponse struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
	Year    int      `json:"year,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Journal string   `json:"journal,omitempty"`
	Chapter string   `json:"chapter,omitempty"`
}

func sourceResponses(sources []domain.Source) []sourceResponse {
	out := make([]sourceResponse, len(sources))
	for i, src := range sources {
		out[i] = sourceResponse{
			Title:   src.Title,
			Authors: src.Authors,
			Year:    src.Year,
			DOI:     src.DOI,
			Journal: src.Journal,
			Chapter: src.ChapterNumber,
		}
	}
	return out
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// LengthUnit is the unit of a thesis length target.
type LengthUnit string

const (
	// LengthUnitWords targets a word count.
	LengthUnitWords LengthUnit = "words"

	// LengthUnitPages targets a page count.
	LengthUnitPages LengthUnit = "pages"
)

// WordsPerPage is the conversion factor used when a length target is given
// in words but a page estimate is needed.
const WordsPerPage = 250

// ThesisStatus tracks the lifecycle of a thesis record.
type ThesisStatus string

const (
	// StatusDraft means no pipeline run is active; the thesis is retryable.
	StatusDraft ThesisStatus = "draft"

	// StatusResearching means a research pipeline run is in progress.
	StatusResearching ThesisStatus = "researching"

	// StatusResearched means the research pipeline completed (fully or partially).
	StatusResearched ThesisStatus = "researched"

	// StatusFailed means the last pipeline run failed fatally.
	StatusFailed ThesisStatus = "failed"
)

// OutlineChapter is a single chapter of the thesis outline. The outline is
// the authority for chapter identity throughout the pipeline.
type OutlineChapter struct {
	// Number is the chapter number as displayed (e.g. "1", "2.1").
	Number string `json:"number"`

	// Title is the chapter heading.
	Title string `json:"title"`
}

// ThesisRequest is the caller-owned input describing the thesis to research.
// The pipeline treats it as read-only.
type ThesisRequest struct {
	// ID identifies the thesis record in the record store.
	ID uuid.UUID `json:"id"`

	// Title is the thesis topic/title.
	Title string `json:"title"`

	// Field is the academic field (e.g. "sociology").
	Field string `json:"field"`

	// ThesisType is the kind of thesis (e.g. "bachelor", "master").
	ThesisType string `json:"thesisType"`

	// ResearchQuestion is the main question the thesis answers.
	ResearchQuestion string `json:"researchQuestion"`

	// CitationStyle is one of apa, harvard, mla, deutsche-zitierweise.
	CitationStyle string `json:"citationStyle"`

	// TargetLength and LengthUnit specify the length target.
	TargetLength int        `json:"targetLength"`
	LengthUnit   LengthUnit `json:"lengthUnit"`

	// Outline is the ordered chapter list.
	Outline []OutlineChapter `json:"outline"`

	// RetrievalStoreID identifies the RAG store documents are uploaded to.
	RetrievalStoreID string `json:"retrievalStoreId"`

	// Language is the thesis language (primary search language).
	Language string `json:"language"`

	// MandatorySources are externally supplied must-cite source descriptions.
	MandatorySources []string `json:"mandatorySources,omitempty"`
}

// EstimatedPages converts the length target to an estimated page count.
// Word targets are divided by WordsPerPage and rounded up.
func (t *ThesisRequest) EstimatedPages() int {
	if t.TargetLength <= 0 {
		return 0
	}
	if t.LengthUnit == LengthUnitPages {
		return t.TargetLength
	}
	return (t.TargetLength + WordsPerPage - 1) / WordsPerPage
}

// LanguageQueries holds the two search queries generated for one language.
type LanguageQueries [2]string

// ChapterQuery carries the generated search queries for one outline chapter:
// exactly two queries in the thesis language and two in English, produced
// once per pipeline run.
type ChapterQuery struct {
	// ChapterNumber and ChapterTitle identify the outline chapter.
	ChapterNumber string `json:"chapterNumber"`
	ChapterTitle  string `json:"chapterTitle"`

	// Primary holds the queries in the thesis language.
	Primary LanguageQueries `json:"primary"`

	// Secondary holds the queries in English (or the fallback language).
	Secondary LanguageQueries `json:"secondary"`
}

// AllQueries returns the four queries in a stable order, skipping blanks.
func (q *ChapterQuery) AllQueries() []string {
	out := make([]string, 0, 4)
	for _, s := range [...]string{q.Primary[0], q.Primary[1], q.Secondary[0], q.Secondary[1]} {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IngestionMetadata is the bibliographic metadata persisted with an upload.
type IngestionMetadata struct {
	Title    string   `json:"title,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Year     int      `json:"year,omitempty"`
	Journal  string   `json:"journal,omitempty"`
	DOI      string   `json:"doi,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Chapter  string   `json:"chapter,omitempty"`
}

// IngestionRecord is the persisted proof that a source was successfully
// downloaded, validated, and uploaded to the retrieval store. Records are
// created only after a successful upload and database append, never mutated
// afterward, and accumulate across pipeline runs.
type IngestionRecord struct {
	DOI        string            `json:"doi,omitempty"`
	Title      string            `json:"title"`
	FileName   string            `json:"fileName"`
	UploadedAt time.Time         `json:"uploadedAt"`
	Metadata   IngestionMetadata `json:"metadata"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
}

// ResearchResult is returned to the caller after a pipeline run and persisted
// for the downstream generation phase.
type ResearchResult struct {
	// TotalFound is the number of distinct sources discovered before selection.
	TotalFound int `json:"totalFound"`

	// UploadedCount is the number of sources successfully uploaded to the
	// retrieval store, including records reused from prior runs.
	UploadedCount int `json:"uploadedCount"`

	// FinalSources lists the citable sources for the generation phase.
	FinalSources []Source `json:"finalSources"`
}

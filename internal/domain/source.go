package domain

import (
	"strings"
)

// doiPrefix is the URL prefix commonly attached to DOIs by upstream APIs.
const doiPrefix = "https://doi.org/"

// Provider identifies which literature search backend produced a Source.
type Provider string

const (
	// ProviderOpenAlex is the bibliographic graph API (Provider A).
	ProviderOpenAlex Provider = "openalex"

	// ProviderSemanticScholar is the semantic paper-search API (Provider B).
	ProviderSemanticScholar Provider = "semanticscholar"
)

// UntitledPlaceholder is used when an upstream API returns a record without a title.
const UntitledPlaceholder = "Untitled"

// Fallback relevance scores assigned when ranking cannot produce a real one.
const (
	// FallbackScoreRankingFailed is assigned to every source in a batch whose
	// ranking call failed or returned unparsable content.
	FallbackScoreRankingFailed = 50.0

	// FallbackScoreUnranked is assigned to sources beyond the ranking cap
	// that were never sent to the LLM.
	FallbackScoreUnranked = 30.0
)

// Source is a bibliographic record candidate flowing through the research
// pipeline. Sources are ephemeral: they exist for the duration of one
// pipeline run, except those promoted to IngestionRecord.
type Source struct {
	// Title is the work's title. Never empty; defaults to UntitledPlaceholder.
	Title string `json:"title"`

	// Authors holds display names in their original order.
	Authors []string `json:"authors,omitempty"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year,omitempty"`

	// DOI is the normalized DOI (no https://doi.org/ prefix), empty when absent.
	DOI string `json:"doi,omitempty"`

	// URL is the landing page URL.
	URL string `json:"url,omitempty"`

	// PDFURL is a direct link to a downloadable document. Empty means the
	// source is not ingestible without enrichment.
	PDFURL string `json:"pdfUrl,omitempty"`

	// Abstract is the abstract text, possibly empty.
	Abstract string `json:"abstract,omitempty"`

	// Journal is the journal or venue name.
	Journal string `json:"journal,omitempty"`

	// Publisher is the publisher name.
	Publisher string `json:"publisher,omitempty"`

	// CitationCount is the citation count reported by the provider.
	CitationCount int `json:"citationCount,omitempty"`

	// RelevanceScore is in [0,100]. Zero value plus Ranked=false means the
	// source has not been ranked yet.
	RelevanceScore float64 `json:"relevanceScore,omitempty"`

	// Ranked records whether RelevanceScore has been assigned.
	Ranked bool `json:"ranked,omitempty"`

	// Origin identifies the search backend that produced this source.
	Origin Provider `json:"originProvider,omitempty"`

	// ChapterNumber and ChapterTitle tag the thesis chapter whose query
	// produced this source. A source found via multiple chapters keeps the
	// first chapter it was tagged with.
	ChapterNumber string `json:"chapterNumber,omitempty"`
	ChapterTitle  string `json:"chapterTitle,omitempty"`

	// Mandatory marks externally supplied "must include" sources.
	Mandatory bool `json:"mandatory,omitempty"`
}

// DedupKey returns the identity key used for merging duplicate records:
// the lowercase DOI when present, otherwise the lowercase title.
func (s *Source) DedupKey() string {
	if s.DOI != "" {
		return strings.ToLower(s.DOI)
	}
	return strings.ToLower(s.Title)
}

// HasPDF reports whether the source carries a direct document link.
func (s *Source) HasPDF() bool {
	return s.PDFURL != ""
}

// FirstAuthor returns the first author display name, or empty.
func (s *Source) FirstAuthor() string {
	if len(s.Authors) == 0 {
		return ""
	}
	return s.Authors[0]
}

// NormalizeDOI strips URL and scheme prefixes from a DOI and lowercases it.
// Returns empty for empty input.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	if doi == "" {
		return ""
	}
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

package semanticscholar

// searchResponse is the Semantic Scholar paper search response envelope.
type searchResponse struct {
	Total  int     `json:"total"`
	Offset int     `json:"offset"`
	Data   []paper `json:"data"`
}

// paper is a Semantic Scholar record, reduced to the fields the pipeline consumes.
type paper struct {
	PaperID       string         `json:"paperId"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract"`
	Year          int            `json:"year"`
	CitationCount int            `json:"citationCount"`
	URL           string         `json:"url"`
	Venue         string         `json:"venue"`
	ExternalIDs   externalIDs    `json:"externalIds"`
	OpenAccessPDF *openAccessPDF `json:"openAccessPdf"`
	Authors       []paperAuthor  `json:"authors"`
}

type externalIDs struct {
	DOI string `json:"DOI"`
}

type openAccessPDF struct {
	URL string `json:"url"`
}

type paperAuthor struct {
	Name string `json:"name"`
}

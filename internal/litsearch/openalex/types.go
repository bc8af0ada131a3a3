package openalex

// searchResponse is the OpenAlex /works search response envelope.
type searchResponse struct {
	Meta    meta   `json:"meta"`
	Results []work `json:"results"`
}

type meta struct {
	Count int `json:"count"`
}

// work is a single OpenAlex work, reduced to the fields the pipeline consumes.
type work struct {
	ID                    string           `json:"id"`
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	PublicationYear       int              `json:"publication_year"`
	CitedByCount          int              `json:"cited_by_count"`
	Authorships           []authorship     `json:"authorships"`
	PrimaryLocation       *location        `json:"primary_location"`
	OpenAccess            *openAccess      `json:"open_access"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type authorship struct {
	Author author `json:"author"`
}

type author struct {
	DisplayName string `json:"display_name"`
}

type location struct {
	LandingPageURL string       `json:"landing_page_url"`
	PDFURL         string       `json:"pdf_url"`
	Source         *venueSource `json:"source"`
}

type venueSource struct {
	DisplayName      string `json:"display_name"`
	HostOrganization string `json:"host_organization_name"`
}

type openAccess struct {
	IsOA  bool   `json:"is_oa"`
	OAURL string `json:"oa_url"`
}

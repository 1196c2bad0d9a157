package semanticscholar

// Paper is the subset of Semantic Scholar paper fields the service requests.
type Paper struct {
	PaperID         string      `json:"paperId"`
	Title           string      `json:"title"`
	Abstract        string      `json:"abstract"`
	Year            int         `json:"year"`
	PublicationDate string      `json:"publicationDate"`
	CitationCount   int         `json:"citationCount"`
	URL             string      `json:"url"`
	Authors         []Author    `json:"authors"`
	ExternalIDs     ExternalIDs `json:"externalIds"`
}

// Author is a Semantic Scholar author record.
type Author struct {
	AuthorID string `json:"authorId"`
	Name     string `json:"name"`
}

// ExternalIDs maps a paper to identifiers in other systems.
type ExternalIDs struct {
	ArXiv string `json:"ArXiv"`
	DOI   string `json:"DOI"`
}

type recommendationsRequest struct {
	PositivePaperIDs []string `json:"positivePaperIds"`
}

type recommendationsResponse struct {
	RecommendedPapers []Paper `json:"recommendedPapers"`
}

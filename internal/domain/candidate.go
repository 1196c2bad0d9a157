package domain

import (
	"regexp"
	"time"
)

// SourceType identifies which upstream source produced a candidate paper.
type SourceType string

const (
	// SourceArxivDaily marks candidates from the arXiv recency feed.
	SourceArxivDaily SourceType = "arxiv_daily"

	// SourceSemanticScholar marks candidates from the citation-graph
	// recommendation API.
	SourceSemanticScholar SourceType = "semantic_scholar"
)

// CandidatePaper is a transient paper record flowing through the
// recommendation pipeline. Candidates are never persisted; they exist only
// between fetch, scoring, and response assembly.
type CandidatePaper struct {
	Title         string
	Authors       string
	Abstract      string
	ArxivID       string
	URL           string
	PublishedDate string
	CitationCount int
	Score         float64
	Explanation   string
	CodeURL       string
}

// RecommendedPaper is a scored candidate as it appears in a recommendation
// response. CitationCount is only populated for citation-graph results.
type RecommendedPaper struct {
	Title          string     `json:"title"`
	Authors        string     `json:"authors"`
	Abstract       string     `json:"abstract"`
	ArxivID        string     `json:"arxiv_id,omitempty"`
	ArxivURL       string     `json:"arxiv_url,omitempty"`
	PublishedDate  string     `json:"published_date,omitempty"`
	RelevanceScore float64    `json:"relevance_score"`
	Explanation    string     `json:"explanation,omitempty"`
	CodeURL        string     `json:"code_url,omitempty"`
	CitationCount  *int       `json:"citation_count,omitempty"`
	Source         SourceType `json:"source"`
}

// RecommendationResult is the full output of one aggregation run. It is both
// the API response body and the cached representation.
type RecommendationResult struct {
	NewPapers     []RecommendedPaper `json:"new_papers"`
	RelatedPapers []RecommendedPaper `json:"related_papers"`
	GeneratedAt   time.Time          `json:"generated_at"`
	Message       string             `json:"message,omitempty"`
}

// arxivIDPattern matches modern arXiv identifiers (YYMM.NNNNN), ignoring any
// version suffix.
var arxivIDPattern = regexp.MustCompile(`(\d{4}\.\d{4,5})`)

// ExtractArxivID pulls a bare arXiv identifier out of a URL or identifier
// string. Returns the empty string when no identifier is present.
func ExtractArxivID(s string) string {
	return arxivIDPattern.FindString(s)
}

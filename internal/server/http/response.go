package httpserver

import (
	"time"

	"github.com/kshitijsachan/papers/internal/domain"
)

// paperResponse is the JSON representation of a library paper.
type paperResponse struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Authors       string        `json:"authors"`
	Abstract      string        `json:"abstract"`
	URL           string        `json:"url"`
	ArxivURL      string        `json:"arxiv_url"`
	PublishedDate *string       `json:"published_date"`
	ReadStatus    bool          `json:"read_status"`
	Starred       bool          `json:"starred"`
	Notes         string        `json:"notes"`
	Experiments   string        `json:"experiments"`
	Tags          []tagResponse `json:"tags"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// tagResponse is the JSON representation of a tag.
type tagResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// notesResponse carries a paper's free-text notes and experiment ideas.
type notesResponse struct {
	Notes       string `json:"notes"`
	Experiments string `json:"experiments"`
}

// codeURLResponse holds the GitHub link extracted from a paper's abstract.
// CodeURL is null when the abstract mentions no repository.
type codeURLResponse struct {
	CodeURL *string `json:"code_url"`
}

// searchResultResponse is one search hit from the external index.
type searchResultResponse struct {
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Abstract      string `json:"abstract"`
	ArxivID       string `json:"arxiv_id,omitempty"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date,omitempty"`
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	resp := paperResponse{
		ID:          p.ID.String(),
		Title:       p.Title,
		Authors:     p.Authors,
		Abstract:    p.Abstract,
		URL:         p.URL,
		ArxivURL:    p.ArxivURL,
		ReadStatus:  p.ReadStatus,
		Starred:     p.Starred,
		Notes:       p.Notes,
		Experiments: p.Experiments,
		Tags:        domainTagsToResponse(p.Tags),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.PublishedDate != nil {
		formatted := p.PublishedDate.Format("2006-01-02")
		resp.PublishedDate = &formatted
	}
	return resp
}

func domainPapersToResponse(papers []*domain.Paper) []paperResponse {
	out := make([]paperResponse, 0, len(papers))
	for _, p := range papers {
		out = append(out, domainPaperToResponse(p))
	}
	return out
}

func domainTagToResponse(t *domain.Tag) tagResponse {
	return tagResponse{
		ID:    t.ID.String(),
		Name:  t.Name,
		Color: t.Color,
	}
}

func domainTagsToResponse(tags []*domain.Tag) []tagResponse {
	out := make([]tagResponse, 0, len(tags))
	for _, t := range tags {
		out = append(out, domainTagToResponse(t))
	}
	return out
}

func candidatesToSearchResults(candidates []domain.CandidatePaper) []searchResultResponse {
	out := make([]searchResultResponse, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, searchResultResponse{
			Title:         c.Title,
			Authors:       c.Authors,
			Abstract:      c.Abstract,
			ArxivID:       c.ArxivID,
			URL:           c.URL,
			PublishedDate: c.PublishedDate,
		})
	}
	return out
}

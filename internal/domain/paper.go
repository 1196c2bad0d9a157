// Package domain defines the core entities of the paper tracker: library
// papers, tags, and the transient candidate records that flow through the
// recommendation pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Paper is a paper saved in the user's library.
type Paper struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Authors       string     `json:"authors,omitempty"`
	Abstract      string     `json:"abstract,omitempty"`
	URL           string     `json:"url,omitempty"`
	ArxivURL      string     `json:"arxiv_url,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	ReadStatus    bool       `json:"read_status"`
	Starred       bool       `json:"starred"`
	Notes         string     `json:"notes,omitempty"`
	Experiments   string     `json:"experiments,omitempty"`
	Tags          []*Tag     `json:"tags"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Tag is a user-defined label that can be attached to library papers.
type Tag struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color string    `json:"color"`
}

// DefaultTagColor is applied when a tag is created without an explicit color.
const DefaultTagColor = "#6366f1"

// Validate checks that the paper satisfies basic domain constraints.
func (p *Paper) Validate() error {
	if p.Title == "" {
		return NewValidationError("title", "title is required")
	}
	return nil
}

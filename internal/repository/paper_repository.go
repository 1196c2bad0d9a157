package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kshitijsachan/papers/internal/domain"
)

// Sort columns accepted by PaperFilter.
const (
	SortCreatedAt     = "created_at"
	SortTitle         = "title"
	SortReadStatus    = "read_status"
	SortPublishedDate = "published_date"
)

// PaperFilter controls which papers List returns and in what order.
type PaperFilter struct {
	// Query matches title or authors case-insensitively when non-empty.
	Query string
	// Sort is one of created_at, title, read_status, published_date.
	Sort string
	// Order is "asc" or "desc".
	Order string
}

// Validate checks the filter against the sort and order whitelists.
func (f *PaperFilter) Validate() error {
	if f.Sort == "" {
		f.Sort = SortCreatedAt
	}
	switch f.Sort {
	case SortCreatedAt, SortTitle, SortReadStatus, SortPublishedDate:
	default:
		return domain.NewValidationError("sort", "must be one of created_at, title, read_status, published_date")
	}

	if f.Order == "" {
		f.Order = "desc"
	}
	switch f.Order {
	case "asc", "desc":
	default:
		return domain.NewValidationError("order", "must be asc or desc")
	}
	return nil
}

// PaperUpdate holds the patchable paper fields. Nil fields are unchanged.
type PaperUpdate struct {
	ReadStatus    *bool
	Starred       *bool
	PublishedDate *time.Time
}

// NotesUpdate holds the notes fields. Nil fields are unchanged.
type NotesUpdate struct {
	Notes       *string
	Experiments *string
}

// PaperRepository manages persistence of the user's paper library.
type PaperRepository interface {
	// Create inserts a new paper and returns it with generated fields set.
	Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// GetByID retrieves a paper by its UUID, including its tags.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// List retrieves papers matching the filter, including their tags.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, error)

	// ListPapers retrieves the whole library newest first.
	ListPapers(ctx context.Context) ([]*domain.Paper, error)

	// Update patches read status, starred flag, and published date.
	Update(ctx context.Context, id uuid.UUID, update PaperUpdate) (*domain.Paper, error)

	// UpdateNotes patches free-text notes and experiment ideas.
	UpdateNotes(ctx context.Context, id uuid.UUID, update NotesUpdate) (*domain.Paper, error)

	// Delete removes a paper and its tag associations.
	Delete(ctx context.Context, id uuid.UUID) error
}

// TagRepository manages tags and their paper associations.
type TagRepository interface {
	// List returns all tags ordered by name.
	List(ctx context.Context) ([]*domain.Tag, error)

	// Create inserts a new tag.
	Create(ctx context.Context, name, color string) (*domain.Tag, error)

	// ListForPaper returns the tags attached to one paper.
	ListForPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Tag, error)

	// ForPapers returns the tags for many papers in one query.
	ForPapers(ctx context.Context, paperIDs []uuid.UUID) (map[uuid.UUID][]*domain.Tag, error)

	// SetPaperTags replaces a paper's tag set, creating named tags that
	// do not exist yet.
	SetPaperTags(ctx context.Context, paperID uuid.UUID, names []string) ([]*domain.Tag, error)
}

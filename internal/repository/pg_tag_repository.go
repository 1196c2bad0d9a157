package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kshitijsachan/papers/internal/domain"
)

// Compile-time interface verification.
var _ TagRepository = (*PgTagRepository)(nil)

// PgTagRepository is a PostgreSQL implementation of TagRepository.
type PgTagRepository struct {
	db DBTX
}

// NewPgTagRepository creates a new PostgreSQL tag repository.
func NewPgTagRepository(db DBTX) *PgTagRepository {
	return &PgTagRepository{db: db}
}

// List returns all tags ordered by name.
func (r *PgTagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, color FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	defer rows.Close()

	tags := make([]*domain.Tag, 0)
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tags: %w", err)
	}
	return tags, nil
}

// Create inserts a new tag. An empty color gets the default.
func (r *PgTagRepository) Create(ctx context.Context, name, color string) (*domain.Tag, error) {
	if name == "" {
		return nil, domain.NewValidationError("name", "tag name is required")
	}
	if color == "" {
		color = domain.DefaultTagColor
	}

	tag := &domain.Tag{ID: uuid.New(), Name: name, Color: color}
	_, err := r.db.Exec(ctx,
		`INSERT INTO tags (id, name, color) VALUES ($1, $2, $3)`,
		tag.ID, tag.Name, tag.Color)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("tag %q: %w", name, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// ListForPaper returns the tags attached to one paper.
func (r *PgTagRepository) ListForPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Tag, error) {
	byPaper, err := tagsForPapers(ctx, r.db, []uuid.UUID{paperID})
	if err != nil {
		return nil, err
	}
	if tags, ok := byPaper[paperID]; ok {
		return tags, nil
	}
	return []*domain.Tag{}, nil
}

// ForPapers returns the tags for many papers in one query.
func (r *PgTagRepository) ForPapers(ctx context.Context, paperIDs []uuid.UUID) (map[uuid.UUID][]*domain.Tag, error) {
	return tagsForPapers(ctx, r.db, paperIDs)
}

// SetPaperTags replaces a paper's tag set. Named tags that do not exist yet
// are created with the default color. Callers needing atomicity should run
// this inside database.DB.WithTransaction with a tx-scoped repository.
func (r *PgTagRepository) SetPaperTags(ctx context.Context, paperID uuid.UUID, names []string) ([]*domain.Tag, error) {
	tags := make([]*domain.Tag, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var tag domain.Tag
		err := r.db.QueryRow(ctx, `
			INSERT INTO tags (id, name, color) VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id, name, color`,
			uuid.New(), name, domain.DefaultTagColor,
		).Scan(&tag.ID, &tag.Name, &tag.Color)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert tag %q: %w", name, err)
		}
		tags = append(tags, &tag)
	}

	if _, err := r.db.Exec(ctx, `DELETE FROM paper_tags WHERE paper_id = $1`, paperID); err != nil {
		return nil, fmt.Errorf("failed to clear paper tags: %w", err)
	}

	for _, tag := range tags {
		_, err := r.db.Exec(ctx,
			`INSERT INTO paper_tags (paper_id, tag_id) VALUES ($1, $2)`,
			paperID, tag.ID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return nil, domain.NewNotFoundError("paper", paperID.String())
			}
			return nil, fmt.Errorf("failed to attach tag %q: %w", tag.Name, err)
		}
	}
	return tags, nil
}

// tagsForPapers loads tags for a set of papers in one query. Shared by the
// paper and tag repositories.
func tagsForPapers(ctx context.Context, db DBTX, paperIDs []uuid.UUID) (map[uuid.UUID][]*domain.Tag, error) {
	byPaper := make(map[uuid.UUID][]*domain.Tag)
	if len(paperIDs) == 0 {
		return byPaper, nil
	}

	rows, err := db.Query(ctx, `
		SELECT pt.paper_id, t.id, t.name, t.color
		FROM paper_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.paper_id = ANY($1)
		ORDER BY t.name`, paperIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load paper tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var paperID uuid.UUID
		var tag domain.Tag
		if err := rows.Scan(&paperID, &tag.ID, &tag.Name, &tag.Color); err != nil {
			return nil, fmt.Errorf("failed to scan paper tag: %w", err)
		}
		byPaper[paperID] = append(byPaper[paperID], &tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating paper tags: %w", err)
	}

	return byPaper, nil
}

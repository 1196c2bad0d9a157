package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kshitijsachan/papers/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// paperColumns is the column list every paper query selects, in scan order.
const paperColumns = `id, title, authors, abstract, url, arxiv_url, published_date,
	read_status, starred, notes, experiments, created_at, updated_at`

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

// Create inserts a new paper.
func (r *PgPaperRepository) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if err := paper.Validate(); err != nil {
		return nil, err
	}

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO papers (
			id, title, authors, abstract, url, arxiv_url, published_date,
			read_status, starred, notes, experiments, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		paper.ID,
		paper.Title,
		paper.Authors,
		paper.Abstract,
		paper.URL,
		paper.ArxivURL,
		paper.PublishedDate,
		paper.ReadStatus,
		paper.Starred,
		paper.Notes,
		paper.Experiments,
		now,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert paper: %w", err)
	}

	if paper.Tags == nil {
		paper.Tags = []*domain.Tag{}
	}
	return paper, nil
}

// GetByID retrieves a paper by its UUID, including its tags.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	paper, err := scanPaper(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	if err := r.attachTags(ctx, []*domain.Paper{paper}); err != nil {
		return nil, err
	}
	return paper, nil
}

// List retrieves papers matching the filter, including their tags.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM papers`, paperColumns)
	var args []interface{}
	if filter.Query != "" {
		query += ` WHERE title ILIKE $1 OR authors ILIKE $1`
		args = append(args, "%"+filter.Query+"%")
	}
	// Sort and Order are validated against whitelists above.
	query += fmt.Sprintf(` ORDER BY %s %s`, filter.Sort, filter.Order)
	if filter.Sort == SortPublishedDate {
		query += ` NULLS LAST`
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating papers: %w", err)
	}

	if err := r.attachTags(ctx, papers); err != nil {
		return nil, err
	}
	return papers, nil
}

// ListPapers retrieves the whole library newest first.
func (r *PgPaperRepository) ListPapers(ctx context.Context) ([]*domain.Paper, error) {
	return r.List(ctx, PaperFilter{})
}

// Update patches read status, starred flag, and published date. Nil fields
// keep their current value.
func (r *PgPaperRepository) Update(ctx context.Context, id uuid.UUID, update PaperUpdate) (*domain.Paper, error) {
	query := fmt.Sprintf(`
		UPDATE papers SET
			read_status = COALESCE($2, read_status),
			starred = COALESCE($3, starred),
			published_date = COALESCE($4, published_date),
			updated_at = $5
		WHERE id = $1
		RETURNING %s`, paperColumns)

	paper, err := scanPaper(r.db.QueryRow(ctx, query,
		id, update.ReadStatus, update.Starred, update.PublishedDate, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to update paper: %w", err)
	}

	if err := r.attachTags(ctx, []*domain.Paper{paper}); err != nil {
		return nil, err
	}
	return paper, nil
}

// UpdateNotes patches free-text notes and experiment ideas. Nil fields keep
// their current value.
func (r *PgPaperRepository) UpdateNotes(ctx context.Context, id uuid.UUID, update NotesUpdate) (*domain.Paper, error) {
	query := fmt.Sprintf(`
		UPDATE papers SET
			notes = COALESCE($2, notes),
			experiments = COALESCE($3, experiments),
			updated_at = $4
		WHERE id = $1
		RETURNING %s`, paperColumns)

	paper, err := scanPaper(r.db.QueryRow(ctx, query,
		id, update.Notes, update.Experiments, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to update notes: %w", err)
	}

	if err := r.attachTags(ctx, []*domain.Paper{paper}); err != nil {
		return nil, err
	}
	return paper, nil
}

// Delete removes a paper. Tag associations go with it via ON DELETE CASCADE.
func (r *PgPaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}
	return nil
}

// attachTags loads tags for the given papers in one query.
func (r *PgPaperRepository) attachTags(ctx context.Context, papers []*domain.Paper) error {
	ids := make([]uuid.UUID, len(papers))
	for i, p := range papers {
		ids[i] = p.ID
	}

	byPaper, err := tagsForPapers(ctx, r.db, ids)
	if err != nil {
		return err
	}

	for _, p := range papers {
		if tags, ok := byPaper[p.ID]; ok {
			p.Tags = tags
		} else {
			p.Tags = []*domain.Tag{}
		}
	}
	return nil
}

// paperScanDest holds the destination pointers for scanning a paper row.
type paperScanDest struct {
	paper domain.Paper
}

// destinations returns the slice of pointers for Scan operations, matching
// paperColumns order.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.Title, &d.paper.Authors, &d.paper.Abstract,
		&d.paper.URL, &d.paper.ArxivURL, &d.paper.PublishedDate,
		&d.paper.ReadStatus, &d.paper.Starred, &d.paper.Notes, &d.paper.Experiments,
		&d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.paper, nil
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return &dest.paper, nil
}

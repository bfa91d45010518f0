package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"furniture-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var ErrImageSetNotFound = errors.New("image set not found")

// ImageSetRepository stores the homepage and mobile banner image sets
type ImageSetRepository interface {
	Create(ctx context.Context, set *domain.ImageSet) error
	Update(ctx context.Context, set *domain.ImageSet) error
	Delete(ctx context.Context, placement domain.Placement, id uuid.UUID) error
	FindByID(ctx context.Context, placement domain.Placement, id uuid.UUID) (*domain.ImageSet, error)
	List(ctx context.Context, placement domain.Placement) ([]*domain.ImageSet, error)
	ImageIDs(ctx context.Context) ([]string, error)
}

type imageSetRepository struct {
	db *sql.DB
}

// NewImageSetRepository creates a new instance of ImageSetRepository
func NewImageSetRepository(db *sql.DB) ImageSetRepository {
	return &imageSetRepository{db: db}
}

func (r *imageSetRepository) Create(ctx context.Context, set *domain.ImageSet) error {
	query := `
		INSERT INTO image_sets (id, placement, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, set.ID, set.Placement, textArray(set.Images), set.CreatedAt, set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create %s image set: %w", set.Placement, err)
	}

	return nil
}

func (r *imageSetRepository) Update(ctx context.Context, set *domain.ImageSet) error {
	query := `UPDATE image_sets SET images = $3, updated_at = $4 WHERE placement = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, set.Placement, set.ID, textArray(set.Images), set.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update %s image set: %w", set.Placement, err)
	}

	return expectAffected(result, ErrImageSetNotFound)
}

func (r *imageSetRepository) Delete(ctx context.Context, placement domain.Placement, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM image_sets WHERE placement = $1 AND id = $2`, placement, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s image set: %w", placement, err)
	}

	return expectAffected(result, ErrImageSetNotFound)
}

func (r *imageSetRepository) FindByID(ctx context.Context, placement domain.Placement, id uuid.UUID) (*domain.ImageSet, error) {
	query := `SELECT id, placement, images, created_at, updated_at FROM image_sets WHERE placement = $1 AND id = $2`

	set, err := scanImageSet(r.db.QueryRowContext(ctx, query, placement, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageSetNotFound
		}
		return nil, fmt.Errorf("failed to find %s image set: %w", placement, err)
	}

	return set, nil
}

func (r *imageSetRepository) List(ctx context.Context, placement domain.Placement) ([]*domain.ImageSet, error) {
	query := `SELECT id, placement, images, created_at, updated_at FROM image_sets WHERE placement = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, placement)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s image sets: %w", placement, err)
	}
	defer rows.Close()

	sets := []*domain.ImageSet{}
	for rows.Next() {
		set, err := scanImageSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image set: %w", err)
		}
		sets = append(sets, set)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image sets: %w", err)
	}

	return sets, nil
}

func (r *imageSetRepository) ImageIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT unnest(images) FROM image_sets`)
}

func scanImageSet(row rowScanner) (*domain.ImageSet, error) {
	set := &domain.ImageSet{}
	var images pq.StringArray
	if err := row.Scan(&set.ID, &set.Placement, &images, &set.CreatedAt, &set.UpdatedAt); err != nil {
		return nil, err
	}
	set.Images = []string(images)
	if set.Images == nil {
		set.Images = []string{}
	}
	return set, nil
}

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

var (
	ErrCatalogEntityNotFound      = errors.New("catalog entity not found")
	ErrCatalogEntityAlreadyExists = errors.New("catalog entity with this name already exists")
	ErrCatalogEntityInUse         = errors.New("catalog entity is referenced by a product")
)

// CatalogRepository defines data access for every catalog kind. All lookups
// are scoped to a kind so ids of one kind never resolve as another.
type CatalogRepository interface {
	Create(ctx context.Context, entity *domain.CatalogEntity) error
	Update(ctx context.Context, entity *domain.CatalogEntity) error
	Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error
	FindByID(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error)
	FindByName(ctx context.Context, kind domain.CatalogKind, name string) (*domain.CatalogEntity, error)
	FindByIDs(ctx context.Context, kind domain.CatalogKind, ids []uuid.UUID) ([]*domain.CatalogEntity, error)
	List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error)
	ImageIDs(ctx context.Context) ([]string, error)
}

type catalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new instance of CatalogRepository
func NewCatalogRepository(db *sql.DB) CatalogRepository {
	return &catalogRepository{db: db}
}

const catalogColumns = `id, kind, name, images, created_at, updated_at`

// Create inserts a new catalog entity
func (r *catalogRepository) Create(ctx context.Context, entity *domain.CatalogEntity) error {
	query := `
		INSERT INTO catalog_entities (id, kind, name, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		entity.ID,
		entity.Kind,
		entity.Name,
		textArray(entity.Images),
		entity.CreatedAt,
		entity.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err, "catalog_entities_kind_name_key") {
			return ErrCatalogEntityAlreadyExists
		}
		return fmt.Errorf("failed to create %s: %w", entity.Kind.Label(), err)
	}

	return nil
}

// Update rewrites the name and images of an entity
func (r *catalogRepository) Update(ctx context.Context, entity *domain.CatalogEntity) error {
	query := `
		UPDATE catalog_entities
		SET name = $3, images = $4, updated_at = $5
		WHERE kind = $1 AND id = $2
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		entity.Kind,
		entity.ID,
		entity.Name,
		textArray(entity.Images),
		entity.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "catalog_entities_kind_name_key") {
			return ErrCatalogEntityAlreadyExists
		}
		return fmt.Errorf("failed to update %s: %w", entity.Kind.Label(), err)
	}

	return expectAffected(result, ErrCatalogEntityNotFound)
}

// Delete removes an entity. Entities still referenced by a product row are
// rejected by the foreign keys on products.
func (r *catalogRepository) Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error {
	query := `DELETE FROM catalog_entities WHERE kind = $1 AND id = $2`

	result, err := r.db.ExecContext(ctx, query, kind, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCatalogEntityInUse
		}
		return fmt.Errorf("failed to delete %s: %w", kind.Label(), err)
	}

	return expectAffected(result, ErrCatalogEntityNotFound)
}

// FindByID retrieves an entity of kind by ID
func (r *catalogRepository) FindByID(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_entities WHERE kind = $1 AND id = $2`

	entity, err := scanCatalogEntity(r.db.QueryRowContext(ctx, query, kind, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCatalogEntityNotFound
		}
		return nil, fmt.Errorf("failed to find %s by ID: %w", kind.Label(), err)
	}

	return entity, nil
}

// FindByName matches names case-insensitively
func (r *catalogRepository) FindByName(ctx context.Context, kind domain.CatalogKind, name string) (*domain.CatalogEntity, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_entities WHERE kind = $1 AND lower(name) = lower($2)`

	entity, err := scanCatalogEntity(r.db.QueryRowContext(ctx, query, kind, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCatalogEntityNotFound
		}
		return nil, fmt.Errorf("failed to find %s by name: %w", kind.Label(), err)
	}

	return entity, nil
}

// FindByIDs loads every existing entity of kind among ids. Missing ids are
// silently skipped.
func (r *catalogRepository) FindByIDs(ctx context.Context, kind domain.CatalogKind, ids []uuid.UUID) ([]*domain.CatalogEntity, error) {
	if len(ids) == 0 {
		return []*domain.CatalogEntity{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + catalogColumns + ` FROM catalog_entities WHERE kind = $1 AND id = ANY($2::uuid[])`

	rows, err := r.db.QueryContext(ctx, query, kind, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s list: %w", kind.Label(), err)
	}
	defer rows.Close()

	return collectCatalogEntities(rows)
}

// List retrieves all entities of kind ordered by name
func (r *catalogRepository) List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error) {
	query := `SELECT ` + catalogColumns + ` FROM catalog_entities WHERE kind = $1 ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", kind.Label(), err)
	}
	defer rows.Close()

	return collectCatalogEntities(rows)
}

// ImageIDs returns every blob id referenced by any catalog entity
func (r *catalogRepository) ImageIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT unnest(images) FROM catalog_entities`)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCatalogEntity(row rowScanner) (*domain.CatalogEntity, error) {
	entity := &domain.CatalogEntity{}
	var images pq.StringArray
	err := row.Scan(
		&entity.ID,
		&entity.Kind,
		&entity.Name,
		&images,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entity.Images = []string(images)
	if entity.Images == nil {
		entity.Images = []string{}
	}
	return entity, nil
}

func collectCatalogEntities(rows *sql.Rows) ([]*domain.CatalogEntity, error) {
	entities := []*domain.CatalogEntity{}
	for rows.Next() {
		entity, err := scanCatalogEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entity: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog entities: %w", err)
	}

	return entities, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"furniture-catalog/internal/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this name already exists")
	ErrUnknownReference     = errors.New("product references a missing catalog entity")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ListOptions controls paging and sorting. A zero PageSize returns every row.
type ListOptions struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder SortOrder
}

// ProductFilter narrows List. Nil or empty fields are ignored.
type ProductFilter struct {
	CategoryID    *uuid.UUID
	CategoryName  string
	LegFinishID   *uuid.UUID
	LegMaterialID *uuid.UUID
	TopFinishID   *uuid.UUID
	TopMaterialID *uuid.UUID
	Featured      *bool
}

// referenceColumns maps catalog kinds to the product column holding them.
var referenceColumns = map[domain.CatalogKind]string{
	domain.KindCategory:    "category_id",
	domain.KindLegFinish:   "legfinish_id",
	domain.KindLegMaterial: "legmaterial_id",
	domain.KindTopFinish:   "topfinish_id",
	domain.KindTopMaterial: "topmaterial_id",
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByName(ctx context.Context, name string) (*domain.Product, error)
	List(ctx context.Context, filter ProductFilter, opts ListOptions) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, opts ListOptions) ([]*domain.Product, int, error)
	References(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (bool, error)
	ImageIDs(ctx context.Context) ([]string, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `p.id, p.name, p.description, p.images, p.price, p.category_id,
		p.legfinish_id, p.legmaterial_id, p.topfinish_id, p.topmaterial_id,
		p.height, p.width, p.length, p.weight, p.cbm, p.is_featured, p.created_at, p.updated_at`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, name, description, images, price, category_id,
			legfinish_id, legmaterial_id, topfinish_id, topmaterial_id,
			height, width, length, weight, cbm, is_featured, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		textArray(product.Images),
		product.Price,
		product.CategoryID,
		product.LegFinishID,
		product.LegMaterialID,
		nullUUID(product.TopFinishID),
		nullUUID(product.TopMaterialID),
		product.Height,
		product.Width,
		product.Length,
		product.Weight,
		product.CBM,
		product.IsFeatured,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return productWriteError("create", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, images = $4, price = $5, category_id = $6,
		    legfinish_id = $7, legmaterial_id = $8, topfinish_id = $9, topmaterial_id = $10,
		    height = $11, width = $12, length = $13, weight = $14, cbm = $15,
		    is_featured = $16, updated_at = $17
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		textArray(product.Images),
		product.Price,
		product.CategoryID,
		product.LegFinishID,
		product.LegMaterialID,
		nullUUID(product.TopFinishID),
		nullUUID(product.TopMaterialID),
		product.Height,
		product.Width,
		product.Length,
		product.Weight,
		product.CBM,
		product.IsFeatured,
		product.UpdatedAt,
	)

	if err != nil {
		return productWriteError("update", err)
	}

	return expectAffected(result, ErrProductNotFound)
}

func productWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err, "products_name_key"):
		return ErrProductAlreadyExists
	case isForeignKeyViolation(err):
		return ErrUnknownReference
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

// Delete removes a product. Its attachment records go with it.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM products WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return expectAffected(result, ErrProductNotFound)
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByName matches product names case-insensitively
func (r *productRepository) FindByName(ctx context.Context, name string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE lower(p.name) = lower($1)`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by name: %w", err)
	}

	return product, nil
}

// List retrieves products matching filter with optional pagination and sorting
func (r *productRepository) List(ctx context.Context, filter ProductFilter, opts ListOptions) ([]*domain.Product, int, error) {
	var (
		conditions []string
		args       []interface{}
	)

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.CategoryID != nil {
		add("p.category_id = $%d", *filter.CategoryID)
	}
	if filter.CategoryName != "" {
		add("p.category_id IN (SELECT id FROM catalog_entities WHERE kind = 'category' AND lower(name) = lower($%d))", filter.CategoryName)
	}
	if filter.LegFinishID != nil {
		add("p.legfinish_id = $%d", *filter.LegFinishID)
	}
	if filter.LegMaterialID != nil {
		add("p.legmaterial_id = $%d", *filter.LegMaterialID)
	}
	if filter.TopFinishID != nil {
		add("p.topfinish_id = $%d", *filter.TopFinishID)
	}
	if filter.TopMaterialID != nil {
		add("p.topmaterial_id = $%d", *filter.TopMaterialID)
	}
	if filter.Featured != nil {
		add("p.is_featured = $%d", *filter.Featured)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	return r.query(ctx, whereClause, args, opts)
}

// Search matches the product name or its category name as a
// case-insensitive substring
func (r *productRepository) Search(ctx context.Context, query string, opts ListOptions) ([]*domain.Product, int, error) {
	if strings.TrimSpace(query) == "" {
		return r.List(ctx, ProductFilter{}, opts)
	}

	whereClause := `
		WHERE p.name ILIKE $1 ESCAPE '\'
		   OR p.category_id IN (
				SELECT id FROM catalog_entities
				WHERE kind = 'category' AND name ILIKE $1 ESCAPE '\'
		   )`

	return r.query(ctx, whereClause, []interface{}{likePattern(strings.TrimSpace(query))}, opts)
}

func (r *productRepository) query(ctx context.Context, whereClause string, args []interface{}, opts ListOptions) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price":      true,
		"created_at": true,
	}

	sortBy := opts.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := opts.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products p %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products p %s ORDER BY p.%s %s`, productColumns, whereClause, sortBy, sortOrder)

	if opts.PageSize > 0 {
		page := opts.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, opts.PageSize, (page-1)*opts.PageSize)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

// References reports whether any product points at the entity. Kinds that
// products never reference directly always report false.
func (r *productRepository) References(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (bool, error) {
	column, ok := referenceColumns[kind]
	if !ok {
		return false, nil
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM products WHERE %s = $1)`, column)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check product references: %w", err)
	}

	return exists, nil
}

// ImageIDs returns every blob id referenced by any product
func (r *productRepository) ImageIDs(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, r.db, `SELECT unnest(images) FROM products`)
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var (
		images      pq.StringArray
		topFinish   uuid.NullUUID
		topMaterial uuid.NullUUID
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&images,
		&product.Price,
		&product.CategoryID,
		&product.LegFinishID,
		&product.LegMaterialID,
		&topFinish,
		&topMaterial,
		&product.Height,
		&product.Width,
		&product.Length,
		&product.Weight,
		&product.CBM,
		&product.IsFeatured,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Images = []string(images)
	if product.Images == nil {
		product.Images = []string{}
	}
	if topFinish.Valid {
		id := topFinish.UUID
		product.TopFinishID = &id
	}
	if topMaterial.Valid {
		id := topMaterial.UUID
		product.TopMaterialID = &id
	}

	return product, nil
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

// likePattern wraps q for a substring ILIKE match with wildcards escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

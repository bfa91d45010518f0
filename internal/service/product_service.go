package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProductInput carries the writable product attributes
type ProductInput struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	CategoryID    uuid.UUID
	LegFinishID   uuid.UUID
	LegMaterialID uuid.UUID
	TopFinishID   *uuid.UUID
	TopMaterialID *uuid.UUID
	Dimensions    domain.Dimensions
	IsFeatured    bool
}

// ProductService defines the interface for product business logic
type ProductService interface {
	Create(ctx context.Context, in ProductInput, uploads []storage.Upload) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, in ProductInput, uploads []storage.Upload) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*domain.ProductDetail, error)
	List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error)
	Featured(ctx context.Context) ([]*domain.Product, error)
	ByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error)
	Search(ctx context.Context, query string) ([]*domain.Product, error)
}

type productService struct {
	products    repository.ProductRepository
	catalog     repository.CatalogRepository
	attachments repository.AttachmentRepository
	blobs       storage.BlobStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductService creates a new instance of ProductService
func NewProductService(
	products repository.ProductRepository,
	catalog repository.CatalogRepository,
	attachments repository.AttachmentRepository,
	blobs storage.BlobStore,
	logger *zap.Logger,
) ProductService {
	return &productService{
		products:    products,
		catalog:     catalog,
		attachments: attachments,
		blobs:       blobs,
		logger:      logger,
		now:         time.Now,
	}
}

func (in *ProductInput) validate() error {
	in.Name = domain.NormalizeName(in.Name)
	switch {
	case in.Name == "":
		return domain.Invalid("product name is required")
	case in.CategoryID == uuid.Nil:
		return domain.Invalid("category is required")
	case in.LegFinishID == uuid.Nil:
		return domain.Invalid("leg finish is required")
	case in.LegMaterialID == uuid.Nil:
		return domain.Invalid("leg material is required")
	case in.Price.IsNegative():
		return domain.Invalid("price cannot be negative")
	}
	return nil
}

func (in *ProductInput) apply(p *domain.Product) {
	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.CategoryID = in.CategoryID
	p.LegFinishID = in.LegFinishID
	p.LegMaterialID = in.LegMaterialID
	p.TopFinishID = in.TopFinishID
	p.TopMaterialID = in.TopMaterialID
	p.Dimensions = in.Dimensions
	p.IsFeatured = in.IsFeatured
}

// Create validates the product, checks its references concurrently, stores
// the images and inserts the row. Stored images are removed on failure.
func (s *productService) Create(ctx context.Context, in ProductInput, uploads []storage.Upload) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if len(uploads) == 0 {
		return nil, domain.Invalid("at least one product image is required")
	}

	if err := s.ensureNameFree(ctx, in.Name, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	product := &domain.Product{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	in.apply(product)

	if err := s.checkReferences(ctx, product); err != nil {
		return nil, err
	}

	images, err := stageUploads(ctx, s.blobs, s.logger, uploads)
	if err != nil {
		return nil, err
	}
	product.Images = images

	if err := s.products.Create(ctx, product); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, images)
		return nil, s.writeError("create", product.Name, err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("name", product.Name),
		zap.Int("images", len(images)))

	return product, nil
}

// Update replaces the product attributes. Supplied uploads replace the
// existing images, whose blobs are removed once the update is stored.
func (s *productService) Update(ctx context.Context, id uuid.UUID, in ProductInput, uploads []storage.Upload) (*domain.Product, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, in.Name, id); err != nil {
		return nil, err
	}

	in.apply(product)
	if err := s.checkReferences(ctx, product); err != nil {
		return nil, err
	}

	var oldImages, newImages []string
	if len(uploads) > 0 {
		newImages, err = stageUploads(ctx, s.blobs, s.logger, uploads)
		if err != nil {
			return nil, err
		}
		oldImages = product.Images
		product.Images = newImages
	}

	product.UpdatedAt = s.now().UTC()
	if err := s.products.Update(ctx, product); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, newImages)
		return nil, s.writeError("update", product.Name, err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, oldImages)

	s.logger.Info("Product updated",
		zap.String("product_id", product.ID.String()),
		zap.Bool("images_replaced", newImages != nil))

	return product, nil
}

// Delete removes the product together with its attachment records of every
// kind. Blobs are removed after the rows are gone.
func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	product, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	records, err := s.attachments.ListByProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load product attachments: %w", err)
	}

	blobs := append([]string{}, product.Images...)
	for _, record := range records {
		if err := s.attachments.Delete(ctx, record.Kind, id); err != nil && !errors.Is(err, repository.ErrAttachmentNotFound) {
			return fmt.Errorf("failed to delete %s record: %w", record.Kind, err)
		}
		blobs = append(blobs, record.Images()...)
	}

	if err := s.products.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return domain.NotFound(domain.KindProduct)
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, blobs)

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.Int("attachment_records", len(records)),
		zap.Int("blobs", len(blobs)))

	return nil
}

// Get returns the product with its catalog references resolved. References
// that no longer exist are left empty.
func (s *productService) Get(ctx context.Context, id uuid.UUID) (*domain.ProductDetail, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.ProductDetail{Product: product}
	slots := map[domain.CatalogKind]**domain.CatalogEntity{
		domain.KindCategory:    &detail.Category,
		domain.KindLegFinish:   &detail.LegFinish,
		domain.KindLegMaterial: &detail.LegMaterial,
		domain.KindTopFinish:   &detail.TopFinish,
		domain.KindTopMaterial: &detail.TopMaterial,
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for kind, refID := range product.References() {
		g.Go(func() error {
			entity, err := s.catalog.FindByID(gctx, kind, refID)
			if errors.Is(err, repository.ErrCatalogEntityNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", kind.Label(), err)
			}
			mu.Lock()
			*slots[kind] = entity
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return detail, nil
}

func (s *productService) List(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	products, _, err := s.products.List(ctx, filter, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func (s *productService) Featured(ctx context.Context) ([]*domain.Product, error) {
	featured := true
	return s.List(ctx, repository.ProductFilter{Featured: &featured})
}

func (s *productService) ByCategory(ctx context.Context, categoryID uuid.UUID) ([]*domain.Product, error) {
	return s.List(ctx, repository.ProductFilter{CategoryID: &categoryID})
}

// Search matches product names and category names case-insensitively
func (s *productService) Search(ctx context.Context, query string) ([]*domain.Product, error) {
	products, _, err := s.products.Search(ctx, query, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	return products, nil
}

func (s *productService) find(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound(domain.KindProduct)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func (s *productService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, err := s.products.FindByName(ctx, name)
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check product name: %w", err)
	case existing.ID != self:
		return duplicateName("product", name)
	}
	return nil
}

// checkReferences resolves every catalog reference of p concurrently and
// reports the first missing one by kind.
func (s *productService) checkReferences(ctx context.Context, p *domain.Product) error {
	refs := p.References()

	var (
		mu      sync.Mutex
		missing []domain.CatalogKind
	)

	g, gctx := errgroup.WithContext(ctx)
	for kind, id := range refs {
		g.Go(func() error {
			_, err := s.catalog.FindByID(gctx, kind, id)
			if errors.Is(err, repository.ErrCatalogEntityNotFound) {
				mu.Lock()
				missing = append(missing, kind)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", kind.Label(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// report in a stable order
	for _, kind := range domain.CatalogKinds {
		for _, m := range missing {
			if m == kind {
				return domain.NotFound(kind.Label())
			}
		}
	}
	return nil
}

func (s *productService) writeError(op, name string, err error) error {
	switch {
	case errors.Is(err, repository.ErrProductAlreadyExists):
		return duplicateName("product", name)
	case errors.Is(err, repository.ErrUnknownReference):
		return domain.Invalid("product references a catalog entry that no longer exists")
	case errors.Is(err, repository.ErrProductNotFound):
		return domain.NotFound(domain.KindProduct)
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

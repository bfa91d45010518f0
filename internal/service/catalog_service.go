package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/repository"
	"furniture-catalog/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CatalogService manages the named reference entities of every catalog kind
type CatalogService interface {
	Create(ctx context.Context, kind domain.CatalogKind, name string, uploads []storage.Upload) (*domain.CatalogEntity, error)
	List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error)
	Get(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error)
	Update(ctx context.Context, kind domain.CatalogKind, id uuid.UUID, name *string, uploads []storage.Upload) (*domain.CatalogEntity, error)
	Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error
}

type catalogService struct {
	catalog     repository.CatalogRepository
	products    repository.ProductRepository
	attachments repository.AttachmentRepository
	blobs       storage.BlobStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	catalog repository.CatalogRepository,
	products repository.ProductRepository,
	attachments repository.AttachmentRepository,
	blobs storage.BlobStore,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		catalog:     catalog,
		products:    products,
		attachments: attachments,
		blobs:       blobs,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *catalogService) Create(ctx context.Context, kind domain.CatalogKind, name string, uploads []storage.Upload) (*domain.CatalogEntity, error) {
	if !kind.Valid() {
		return nil, domain.Invalid("unknown catalog kind %q", kind)
	}

	name = domain.NormalizeName(name)
	if name == "" {
		return nil, domain.Invalid("%s name is required", kind.Label())
	}

	if err := s.ensureNameFree(ctx, kind, name, uuid.Nil); err != nil {
		return nil, err
	}

	images, err := stageUploads(ctx, s.blobs, s.logger, uploads)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	entity := &domain.CatalogEntity{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      name,
		Images:    images,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.catalog.Create(ctx, entity); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, images)
		if errors.Is(err, repository.ErrCatalogEntityAlreadyExists) {
			return nil, duplicateName(kind.Label(), name)
		}
		return nil, fmt.Errorf("failed to create %s: %w", kind.Label(), err)
	}

	s.logger.Info("Catalog entity created",
		zap.String("kind", string(kind)),
		zap.String("id", entity.ID.String()),
		zap.Int("images", len(images)))

	return entity, nil
}

func (s *catalogService) List(ctx context.Context, kind domain.CatalogKind) ([]*domain.CatalogEntity, error) {
	entities, err := s.catalog.List(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s entries: %w", kind.Label(), err)
	}
	return entities, nil
}

func (s *catalogService) Get(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) (*domain.CatalogEntity, error) {
	entity, err := s.catalog.FindByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, repository.ErrCatalogEntityNotFound) {
			return nil, domain.NotFound(kind.Label())
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind.Label(), err)
	}
	return entity, nil
}

// Update renames a category and/or replaces its images. Old blobs are
// removed only after the new list is stored.
func (s *catalogService) Update(ctx context.Context, kind domain.CatalogKind, id uuid.UUID, name *string, uploads []storage.Upload) (*domain.CatalogEntity, error) {
	if kind != domain.KindCategory {
		return nil, domain.Invalid("%s entries cannot be modified", kind.Label())
	}

	entity, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		newName := domain.NormalizeName(*name)
		if newName == "" {
			return nil, domain.Invalid("%s name is required", kind.Label())
		}
		if err := s.ensureNameFree(ctx, kind, newName, id); err != nil {
			return nil, err
		}
		entity.Name = newName
	}

	var oldImages, newImages []string
	if len(uploads) > 0 {
		newImages, err = stageUploads(ctx, s.blobs, s.logger, uploads)
		if err != nil {
			return nil, err
		}
		oldImages = entity.Images
		entity.Images = newImages
	}

	entity.UpdatedAt = s.now().UTC()
	if err := s.catalog.Update(ctx, entity); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, newImages)
		switch {
		case errors.Is(err, repository.ErrCatalogEntityAlreadyExists):
			return nil, duplicateName(kind.Label(), entity.Name)
		case errors.Is(err, repository.ErrCatalogEntityNotFound):
			return nil, domain.NotFound(kind.Label())
		}
		return nil, fmt.Errorf("failed to update %s: %w", kind.Label(), err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, oldImages)

	return entity, nil
}

// Delete removes an entity no product or attachment entry refers to
func (s *catalogService) Delete(ctx context.Context, kind domain.CatalogKind, id uuid.UUID) error {
	entity, err := s.Get(ctx, kind, id)
	if err != nil {
		return err
	}

	inUse, err := s.products.References(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("failed to check %s usage: %w", kind.Label(), err)
	}
	if !inUse {
		if attachmentKind, ok := domain.AttachmentKindFor(kind); ok {
			inUse, err = s.attachments.ReferencesChild(ctx, attachmentKind, id)
			if err != nil {
				return fmt.Errorf("failed to check %s usage: %w", kind.Label(), err)
			}
		}
	}
	if inUse {
		return entityInUse(kind)
	}

	if err := s.catalog.Delete(ctx, kind, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrCatalogEntityInUse):
			return entityInUse(kind)
		case errors.Is(err, repository.ErrCatalogEntityNotFound):
			return domain.NotFound(kind.Label())
		}
		return fmt.Errorf("failed to delete %s: %w", kind.Label(), err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, entity.Images)

	s.logger.Info("Catalog entity deleted", zap.String("kind", string(kind)), zap.String("id", id.String()))
	return nil
}

// ensureNameFree fails when another entity of kind already uses name
func (s *catalogService) ensureNameFree(ctx context.Context, kind domain.CatalogKind, name string, self uuid.UUID) error {
	existing, err := s.catalog.FindByName(ctx, kind, name)
	switch {
	case errors.Is(err, repository.ErrCatalogEntityNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check %s name: %w", kind.Label(), err)
	case existing.ID != self:
		return duplicateName(kind.Label(), name)
	}
	return nil
}

func duplicateName(label, name string) error {
	return domain.Conflict(domain.ConflictDuplicateName, "%s %q already exists", label, name)
}

func entityInUse(kind domain.CatalogKind) error {
	return domain.Conflict(domain.ConflictEntityInUse, "%s is still used by a product", kind.Label())
}

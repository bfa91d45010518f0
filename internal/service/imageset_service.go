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

// ImageSetService manages the banner image sets of one placement
type ImageSetService interface {
	Placement() domain.Placement
	Create(ctx context.Context, uploads []storage.Upload) (*domain.ImageSet, error)
	List(ctx context.Context) ([]*domain.ImageSet, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.ImageSet, error)
	Replace(ctx context.Context, id uuid.UUID, uploads []storage.Upload) (*domain.ImageSet, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type imageSetService struct {
	placement domain.Placement
	sets      repository.ImageSetRepository
	blobs     storage.BlobStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewImageSetService creates the banner service for placement
func NewImageSetService(placement domain.Placement, sets repository.ImageSetRepository, blobs storage.BlobStore, logger *zap.Logger) ImageSetService {
	return &imageSetService{
		placement: placement,
		sets:      sets,
		blobs:     blobs,
		logger:    logger.With(zap.String("placement", string(placement))),
		now:       time.Now,
	}
}

func (s *imageSetService) Placement() domain.Placement {
	return s.placement
}

func (s *imageSetService) Create(ctx context.Context, uploads []storage.Upload) (*domain.ImageSet, error) {
	if len(uploads) == 0 {
		return nil, domain.Invalid("at least one image is required")
	}

	images, err := stageUploads(ctx, s.blobs, s.logger, uploads)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	set := &domain.ImageSet{
		ID:        uuid.New(),
		Placement: s.placement,
		Images:    images,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sets.Create(ctx, set); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, images)
		return nil, fmt.Errorf("failed to create image set: %w", err)
	}

	return set, nil
}

func (s *imageSetService) List(ctx context.Context) ([]*domain.ImageSet, error) {
	sets, err := s.sets.List(ctx, s.placement)
	if err != nil {
		return nil, fmt.Errorf("failed to list image sets: %w", err)
	}
	return sets, nil
}

func (s *imageSetService) Get(ctx context.Context, id uuid.UUID) (*domain.ImageSet, error) {
	set, err := s.sets.FindByID(ctx, s.placement, id)
	if err != nil {
		if errors.Is(err, repository.ErrImageSetNotFound) {
			return nil, domain.NotFound(domain.KindImageSet)
		}
		return nil, fmt.Errorf("failed to get image set: %w", err)
	}
	return set, nil
}

// Replace swaps the images of a set. The previous blobs are removed after
// the new list is stored.
func (s *imageSetService) Replace(ctx context.Context, id uuid.UUID, uploads []storage.Upload) (*domain.ImageSet, error) {
	if len(uploads) == 0 {
		return nil, domain.Invalid("at least one image is required")
	}

	set, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	images, err := stageUploads(ctx, s.blobs, s.logger, uploads)
	if err != nil {
		return nil, err
	}

	old := set.Images
	set.Images = images
	set.UpdatedAt = s.now().UTC()

	if err := s.sets.Update(ctx, set); err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, images)
		if errors.Is(err, repository.ErrImageSetNotFound) {
			return nil, domain.NotFound(domain.KindImageSet)
		}
		return nil, fmt.Errorf("failed to update image set: %w", err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, old)
	return set, nil
}

func (s *imageSetService) Delete(ctx context.Context, id uuid.UUID) error {
	set, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.sets.Delete(ctx, s.placement, id); err != nil {
		if errors.Is(err, repository.ErrImageSetNotFound) {
			return domain.NotFound(domain.KindImageSet)
		}
		return fmt.Errorf("failed to delete image set: %w", err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, set.Images)
	return nil
}

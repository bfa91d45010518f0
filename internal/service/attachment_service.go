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
	"golang.org/x/sync/errgroup"
)

// AttachmentService composes per-product lists of child entities with their
// own images. One instance serves one attachment kind.
type AttachmentService interface {
	Kind() domain.AttachmentKind
	StageUpload(ctx context.Context, uploads []storage.Upload) ([]string, error)
	Attach(ctx context.Context, productID, childID uuid.UUID, imageIDs []string) (*domain.AttachmentRecord, error)
	AttachStaged(ctx context.Context, productID, childID uuid.UUID, imageIDs []string) (*domain.AttachmentRecord, error)
	AttachWithImages(ctx context.Context, productID, childID uuid.UUID, uploads []storage.Upload) (*domain.AttachmentRecord, error)
	ListForProduct(ctx context.Context, productID uuid.UUID) (*domain.ResolvedRecord, error)
	ListAll(ctx context.Context) ([]*domain.ResolvedRecord, error)
	Detach(ctx context.Context, productID, childID uuid.UUID) (*domain.AttachmentRecord, error)
	DetachAll(ctx context.Context, productID uuid.UUID) error
	DeleteBlobByURL(ctx context.Context, url string) error
}

type attachmentService struct {
	kind        domain.AttachmentKind
	attachments repository.AttachmentRepository
	products    repository.ProductRepository
	catalog     repository.CatalogRepository
	blobs       storage.BlobStore
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttachmentService creates the composition service for kind
func NewAttachmentService(
	kind domain.AttachmentKind,
	attachments repository.AttachmentRepository,
	products repository.ProductRepository,
	catalog repository.CatalogRepository,
	blobs storage.BlobStore,
	logger *zap.Logger,
) AttachmentService {
	return &attachmentService{
		kind:        kind,
		attachments: attachments,
		products:    products,
		catalog:     catalog,
		blobs:       blobs,
		logger:      logger.With(zap.String("attachment_kind", string(kind))),
		now:         time.Now,
	}
}

func (s *attachmentService) Kind() domain.AttachmentKind {
	return s.kind
}

// StageUpload stores the uploaded files and hands their ids back to the caller
func (s *attachmentService) StageUpload(ctx context.Context, uploads []storage.Upload) ([]string, error) {
	if len(uploads) == 0 {
		return nil, domain.Invalid("no images were uploaded")
	}
	return stageUploads(ctx, s.blobs, s.logger, uploads)
}

// Attach appends childID with its images to the product's record, creating
// the record on first use
func (s *attachmentService) Attach(ctx context.Context, productID, childID uuid.UUID, imageIDs []string) (*domain.AttachmentRecord, error) {
	images, err := normalizeImageIDs(imageIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, domain.NotFound(domain.KindProduct)
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	childKind := s.kind.ChildKind()
	if _, err := s.catalog.FindByID(ctx, childKind, childID); err != nil {
		if errors.Is(err, repository.ErrCatalogEntityNotFound) {
			return nil, domain.NotFound(childKind.Label())
		}
		return nil, fmt.Errorf("failed to load %s: %w", childKind.Label(), err)
	}

	entry := domain.AttachmentEntry{ChildID: childID, Images: images}

	// A concurrent first attach may create the record between our lookup and
	// insert; the second pass appends to that record instead.
	for attempt := 0; attempt < 2; attempt++ {
		record, err := s.attachments.FindByProduct(ctx, s.kind, productID)
		switch {
		case errors.Is(err, repository.ErrAttachmentNotFound):
			now := s.now().UTC()
			record = &domain.AttachmentRecord{
				ID:        uuid.New(),
				ProductID: productID,
				Kind:      s.kind,
				Entries:   []domain.AttachmentEntry{entry},
				CreatedAt: now,
				UpdatedAt: now,
			}
			err = s.attachments.Create(ctx, record)
			if errors.Is(err, repository.ErrAttachmentAlreadyExists) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to create %s record: %w", s.kind, err)
			}
			s.logger.Info("Attachment record created",
				zap.String("product_id", productID.String()),
				zap.String("child_id", childID.String()))
			return record, nil

		case err != nil:
			return nil, fmt.Errorf("failed to load %s record: %w", s.kind, err)
		}

		if record.EntryIndex(childID) >= 0 {
			return nil, domain.Conflict(domain.ConflictDuplicateAttachment,
				"%s is already attached to this product", childKind.Label())
		}

		record.Entries = append(record.Entries, entry)
		record.UpdatedAt = s.now().UTC()
		if err := s.attachments.UpdateEntries(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to update %s record: %w", s.kind, err)
		}

		s.logger.Info("Entry attached",
			zap.String("product_id", productID.String()),
			zap.String("child_id", childID.String()),
			zap.Int("entries", len(record.Entries)))
		return record, nil
	}

	return nil, domain.Conflict(domain.ConflictDuplicateAttachment, "%s record is being modified concurrently", s.kind)
}

// AttachWithImages stages uploads then attaches them. Staged blobs are
// removed again when the attach fails.
func (s *attachmentService) AttachWithImages(ctx context.Context, productID, childID uuid.UUID, uploads []storage.Upload) (*domain.AttachmentRecord, error) {
	ids, err := stageUploads(ctx, s.blobs, s.logger, uploads)
	if err != nil {
		return nil, err
	}

	record, err := s.Attach(ctx, productID, childID, ids)
	if err != nil {
		deleteBlobs(ctx, s.blobs, s.logger, ids)
		return nil, err
	}

	return record, nil
}

// AttachStaged attaches images handed out earlier by StageUpload. When the
// attach is rejected the staged blobs are removed, except any the product's
// record already references.
func (s *attachmentService) AttachStaged(ctx context.Context, productID, childID uuid.UUID, imageIDs []string) (*domain.AttachmentRecord, error) {
	record, err := s.Attach(ctx, productID, childID, imageIDs)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
			s.discardStaged(ctx, productID, imageIDs)
		}
		return nil, err
	}
	return record, nil
}

func (s *attachmentService) discardStaged(ctx context.Context, productID uuid.UUID, imageIDs []string) {
	ids, err := normalizeImageIDs(imageIDs)
	if err != nil || len(ids) == 0 {
		return
	}

	inUse := make(map[string]bool)
	record, err := s.attachments.FindByProduct(ctx, s.kind, productID)
	switch {
	case err == nil:
		for _, id := range record.Images() {
			inUse[id] = true
		}
	case !errors.Is(err, repository.ErrAttachmentNotFound):
		s.logger.Warn("Keeping staged images, record lookup failed", zap.Error(err))
		return
	}

	var discard []string
	for _, id := range ids {
		if !inUse[id] {
			discard = append(discard, id)
		}
	}
	deleteBlobs(ctx, s.blobs, s.logger, discard)
}

func (s *attachmentService) ListForProduct(ctx context.Context, productID uuid.UUID) (*domain.ResolvedRecord, error) {
	record, err := s.attachments.FindByProduct(ctx, s.kind, productID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return nil, domain.NotFound(domain.KindAttachment)
		}
		return nil, fmt.Errorf("failed to load %s record: %w", s.kind, err)
	}

	children, err := s.loadChildren(ctx, []*domain.AttachmentRecord{record})
	if err != nil {
		return nil, err
	}

	return s.resolve(ctx, record, children)
}

// ListAll resolves every record of the kind. Records load their product
// concurrently.
func (s *attachmentService) ListAll(ctx context.Context) ([]*domain.ResolvedRecord, error) {
	records, err := s.attachments.List(ctx, s.kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", s.kind, err)
	}

	children, err := s.loadChildren(ctx, records)
	if err != nil {
		return nil, err
	}

	resolved := make([]*domain.ResolvedRecord, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, record := range records {
		g.Go(func() error {
			r, err := s.resolve(gctx, record, children)
			if err != nil {
				return err
			}
			resolved[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return resolved, nil
}

func (s *attachmentService) loadChildren(ctx context.Context, records []*domain.AttachmentRecord) (map[uuid.UUID]*domain.CatalogEntity, error) {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, r := range records {
		for _, e := range r.Entries {
			if !seen[e.ChildID] {
				seen[e.ChildID] = true
				ids = append(ids, e.ChildID)
			}
		}
	}

	childKind := s.kind.ChildKind()
	entities, err := s.catalog.FindByIDs(ctx, childKind, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s entries: %w", childKind.Label(), err)
	}

	children := make(map[uuid.UUID]*domain.CatalogEntity, len(entities))
	for _, e := range entities {
		children[e.ID] = e
	}
	return children, nil
}

func (s *attachmentService) resolve(ctx context.Context, record *domain.AttachmentRecord, children map[uuid.UUID]*domain.CatalogEntity) (*domain.ResolvedRecord, error) {
	product, err := s.products.FindByID(ctx, record.ProductID)
	if err != nil && !errors.Is(err, repository.ErrProductNotFound) {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	entries := make([]domain.ResolvedEntry, len(record.Entries))
	for i, e := range record.Entries {
		entries[i] = domain.ResolvedEntry{ChildID: e.ChildID, Child: children[e.ChildID], Images: e.Images}
	}

	return &domain.ResolvedRecord{
		ID:        record.ID,
		Kind:      record.Kind,
		ProductID: record.ProductID,
		Product:   product,
		Entries:   entries,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

// Detach removes one entry and its blobs. An emptied record is kept.
func (s *attachmentService) Detach(ctx context.Context, productID, childID uuid.UUID) (*domain.AttachmentRecord, error) {
	record, err := s.attachments.FindByProduct(ctx, s.kind, productID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return nil, domain.NotFound(domain.KindAttachment)
		}
		return nil, fmt.Errorf("failed to load %s record: %w", s.kind, err)
	}

	idx := record.EntryIndex(childID)
	if idx < 0 {
		return nil, domain.NotFound(domain.KindEntry)
	}

	deleteBlobs(ctx, s.blobs, s.logger, record.Entries[idx].Images)

	record.Entries = append(record.Entries[:idx:idx], record.Entries[idx+1:]...)
	record.UpdatedAt = s.now().UTC()
	if err := s.attachments.UpdateEntries(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to update %s record: %w", s.kind, err)
	}

	s.logger.Info("Entry detached",
		zap.String("product_id", productID.String()),
		zap.String("child_id", childID.String()))
	return record, nil
}

// DetachAll deletes the record and the blobs of every entry
func (s *attachmentService) DetachAll(ctx context.Context, productID uuid.UUID) error {
	record, err := s.attachments.FindByProduct(ctx, s.kind, productID)
	if err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return domain.NotFound(domain.KindAttachment)
		}
		return fmt.Errorf("failed to load %s record: %w", s.kind, err)
	}

	deleteBlobs(ctx, s.blobs, s.logger, record.Images())

	if err := s.attachments.Delete(ctx, s.kind, productID); err != nil {
		if errors.Is(err, repository.ErrAttachmentNotFound) {
			return domain.NotFound(domain.KindAttachment)
		}
		return fmt.Errorf("failed to delete %s record: %w", s.kind, err)
	}

	s.logger.Info("Attachment record deleted", zap.String("product_id", productID.String()))
	return nil
}

// DeleteBlobByURL removes the blob named by the last path segment of url
func (s *attachmentService) DeleteBlobByURL(ctx context.Context, url string) error {
	return deleteBlobByURL(ctx, s.blobs, url)
}

func deleteBlobByURL(ctx context.Context, blobs storage.BlobStore, url string) error {
	id := storage.IDFromURL(url)
	if id == "" {
		return domain.Invalid("image url is required")
	}

	deleted, err := blobs.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidID) {
			return domain.Invalid("invalid image reference %q", id)
		}
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if !deleted {
		return domain.NotFound(domain.KindBlob)
	}

	return nil
}

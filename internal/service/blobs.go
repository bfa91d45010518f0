package service

import (
	"context"
	"errors"
	"fmt"

	"furniture-catalog/internal/domain"
	"furniture-catalog/internal/storage"

	"go.uber.org/zap"
)

// stageUploads stores uploads in order. When any write fails the blobs
// stored so far are removed again.
func stageUploads(ctx context.Context, store storage.BlobStore, logger *zap.Logger, uploads []storage.Upload) ([]string, error) {
	ids := make([]string, 0, len(uploads))
	for _, u := range uploads {
		id, err := store.Put(ctx, u.Content, u.Filename)
		if err != nil {
			deleteBlobs(ctx, store, logger, ids)
			if errors.Is(err, storage.ErrUnsupportedType) {
				return nil, domain.Invalid("%s is not an image", u.Filename)
			}
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrUpload, u.Filename, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// deleteBlobs removes blobs best effort. Failures are logged, never returned.
func deleteBlobs(ctx context.Context, store storage.BlobStore, logger *zap.Logger, ids []string) {
	for _, id := range ids {
		if _, err := store.Delete(ctx, id); err != nil {
			logger.Warn("Failed to delete blob", zap.String("blob", id), zap.Error(err))
		}
	}
}

// normalizeImageIDs accepts blob ids or URLs ending in one.
func normalizeImageIDs(images []string) ([]string, error) {
	ids := make([]string, 0, len(images))
	for _, img := range images {
		id := storage.IDFromURL(img)
		if id == "" {
			return nil, domain.Invalid("image reference %q is empty", img)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

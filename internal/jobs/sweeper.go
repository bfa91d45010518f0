package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"furniture-catalog/internal/storage"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// sweepTimeout bounds a single scheduled run
const sweepTimeout = 5 * time.Minute

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ImageSource reports every blob id a table still references
type ImageSource interface {
	ImageIDs(ctx context.Context) ([]string, error)
}

// OrphanSweeper removes stored blobs that no record references anymore.
// Blobs younger than the grace period are kept so in-flight uploads survive.
type OrphanSweeper struct {
	blobs   storage.BlobStore
	sources []ImageSource
	grace   time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu    sync.Mutex
	sched *cron.Cron
}

// NewOrphanSweeper creates a sweeper over blobs checking the given sources
func NewOrphanSweeper(blobs storage.BlobStore, grace time.Duration, logger *zap.Logger, sources ...ImageSource) *OrphanSweeper {
	return &OrphanSweeper{
		blobs:   blobs,
		sources: sources,
		grace:   grace,
		logger:  logger,
		now:     time.Now,
	}
}

// Sweep deletes unreferenced blobs older than the grace period and returns how many were removed.
// References are read after listing so an image attached while the sweep
// lists the store is still seen as referenced.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.grace)
	var candidates []string
	for _, blob := range blobs {
		if !blob.ModTime.After(cutoff) {
			candidates = append(candidates, blob.ID)
		}
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	referenced, err := s.referenced(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range candidates {
		if _, ok := referenced[id]; ok {
			continue
		}
		deleted, err := s.blobs.Delete(ctx, id)
		if err != nil {
			s.logger.Warn("Failed to delete orphaned blob", zap.String("blob", id), zap.Error(err))
			continue
		}
		if deleted {
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Orphaned blobs removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *OrphanSweeper) referenced(ctx context.Context) (map[string]struct{}, error) {
	results := make([][]string, len(s.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range s.sources {
		g.Go(func() error {
			ids, err := src.ImageIDs(gctx)
			if err != nil {
				return err
			}
			results[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to collect referenced images: %w", err)
	}

	referenced := make(map[string]struct{})
	for _, ids := range results {
		for _, id := range ids {
			referenced[storage.IDFromURL(id)] = struct{}{}
		}
	}
	return referenced, nil
}

// Start schedules Sweep. An empty schedule leaves the sweeper disabled.
func (s *OrphanSweeper) Start(schedule string) error {
	if schedule == "" {
		s.logger.Info("Orphan sweeper disabled")
		return nil
	}

	sched := cron.New(cron.WithParser(cronParser))
	_, err := sched.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Orphan sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	s.sched = sched
	s.mu.Unlock()

	sched.Start()
	s.logger.Info("Orphan sweeper started", zap.String("schedule", schedule), zap.Duration("grace", s.grace))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *OrphanSweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	if sched == nil {
		return
	}
	select {
	case <-sched.Stop().Done():
	case <-ctx.Done():
	}
}

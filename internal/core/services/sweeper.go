package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	ports "scan-prediction-service/internal/core/ports/output"
)

const sweepLockKey = "scan-prediction:artifact-sweep"

// ArtifactSweeper deletes expired explainability artifacts and their blobs.
type ArtifactSweeper struct {
	artifacts ports.ArtifactRepository
	store     ports.ArtifactStore
	locker    ports.Locker
	metrics   ports.PipelineMetrics
	now       func() time.Time
}

// NewArtifactSweeper builds a sweeper. store and locker may be nil.
func NewArtifactSweeper(artifacts ports.ArtifactRepository, store ports.ArtifactStore, locker ports.Locker, metrics ports.PipelineMetrics) *ArtifactSweeper {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &ArtifactSweeper{
		artifacts: artifacts,
		store:     store,
		locker:    locker,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Sweep deletes artifacts that expired before now and returns how many rows
// were removed. Blob deletion is best effort.
func (s *ArtifactSweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.artifacts.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired artifacts: %w", err)
	}

	if s.store != nil {
		for _, a := range expired {
			if err := s.store.Delete(ctx, a.Ref); err != nil {
				log.WithError(err).WithField("artifact_id", a.ID).Warn("Failed to delete artifact blob")
			}
		}
	}

	s.metrics.AddArtifactsSwept(len(expired))
	if len(expired) > 0 {
		log.WithField("count", len(expired)).Info("Expired artifacts swept")
	}
	return len(expired), nil
}

// Run sweeps every interval until ctx is done. With a locker configured only
// the replica holding the lock sweeps on a given tick.
func (s *ArtifactSweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick(ctx, interval)
		}
	}
}

func (s *ArtifactSweeper) tick(ctx context.Context, interval time.Duration) {
	if s.locker != nil {
		acquired, release, err := s.locker.TryLock(ctx, sweepLockKey, interval)
		if err != nil {
			log.WithError(err).Warn("Sweep lock unavailable, skipping tick")
			return
		}
		if !acquired {
			log.Debug("Another replica holds the sweep lock")
			return
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("Failed to release sweep lock")
			}
		}()
	}

	if _, err := s.Sweep(ctx, s.now()); err != nil {
		log.WithError(err).Error("Artifact sweep failed")
	}
}

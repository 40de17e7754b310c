package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

// outboxPruner prunes published outbox rows older than a cutoff.
type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxRetentionJob deletes published feed events past the retention window.
// Unpublished rows are never touched, regardless of age.
type OutboxRetentionJob struct {
	db            *gorm.DB
	repo          outboxPruner
	retentionDays int
	logg          *logger.Logger
	now           func() time.Time
}

// NewOutboxRetentionJob builds the outbox retention job.
func NewOutboxRetentionJob(db *gorm.DB, repo outboxPruner, retentionDays int, logg *logger.Logger) (*OutboxRetentionJob, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OutboxRetentionJob{
		db:            db,
		repo:          repo,
		retentionDays: retentionDays,
		logg:          logg,
		now:           time.Now,
	}, nil
}

func (j *OutboxRetentionJob) Name() string {
	return "outbox_retention"
}

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.repo.DeletePublishedBefore(j.db.WithContext(ctx), cutoff)
	if err != nil {
		return fmt.Errorf("prune outbox: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	})
	j.logg.Info(logCtx, "published outbox rows pruned")
	return nil
}

package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

const stockDateLayout = "2006-01-02"

// stockPruner deletes daily stock entries with a stock date before the cutoff.
type stockPruner interface {
	DeleteBefore(ctx context.Context, cutoff string) (int64, error)
}

// StockCleanupJob removes daily stock ledgers older than the retention window.
// Today's ledger is always at least retentionDays away from the cutoff, so a
// misconfigured clock can never delete live stock.
type StockCleanupJob struct {
	repo          stockPruner
	retentionDays int
	logg          *logger.Logger
	now           func() time.Time
}

// NewStockCleanupJob builds the daily stock cleanup job.
func NewStockCleanupJob(repo stockPruner, retentionDays int, logg *logger.Logger) (*StockCleanupJob, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if retentionDays <= 0 {
		return nil, fmt.Errorf("retention days must be positive, got %d", retentionDays)
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &StockCleanupJob{
		repo:          repo,
		retentionDays: retentionDays,
		logg:          logg,
		now:           time.Now,
	}, nil
}

func (j *StockCleanupJob) Name() string {
	return "daily_stock_cleanup"
}

func (j *StockCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().AddDate(0, 0, -j.retentionDays).Format(stockDateLayout)
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune daily stock: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"deleted": deleted,
		"cutoff":  cutoff,
	})
	j.logg.Info(logCtx, "stale stock ledgers pruned")
	return nil
}

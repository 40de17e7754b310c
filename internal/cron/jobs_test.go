package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeOutboxPruner struct {
	lastCutoff time.Time
	called     int
	err        error
}

func (f *fakeOutboxPruner) DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 4, nil
}

type fakeStockPruner struct {
	lastCutoff string
	called     int
	err        error
}

func (f *fakeStockPruner) DeleteBefore(ctx context.Context, cutoff string) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 9, nil
}

func openJobTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestOutboxRetentionJobUsesConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job, err := NewOutboxRetentionJob(openJobTestDB(t), repo, 30, testCronLogger())
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.called != 1 {
		t.Fatalf("expected one prune call, got %d", repo.called)
	}
	expected := now.AddDate(0, 0, -30)
	if !repo.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, repo.lastCutoff)
	}
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxPruner{err: errors.New("boom")}
	job, err := NewOutboxRetentionJob(openJobTestDB(t), repo, 30, testCronLogger())
	if err != nil {
		t.Fatalf("NewOutboxRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewOutboxRetentionJobRejectsBadWindow(t *testing.T) {
	if _, err := NewOutboxRetentionJob(openJobTestDB(t), &fakeOutboxPruner{}, 0, testCronLogger()); err == nil {
		t.Fatal("expected error for zero retention window")
	}
}

func TestStockCleanupJobFormatsDateCutoff(t *testing.T) {
	repo := &fakeStockPruner{}
	job, err := NewStockCleanupJob(repo, 14, testCronLogger())
	if err != nil {
		t.Fatalf("NewStockCleanupJob: %v", err)
	}
	job.now = func() time.Time {
		return time.Date(2026, 3, 15, 23, 45, 0, 0, time.UTC)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if repo.called != 1 {
		t.Fatalf("expected one prune call, got %d", repo.called)
	}
	if repo.lastCutoff != "2026-03-01" {
		t.Fatalf("expected cutoff 2026-03-01, got %s", repo.lastCutoff)
	}
}

func TestStockCleanupJobPropagatesError(t *testing.T) {
	repo := &fakeStockPruner{err: errors.New("boom")}
	job, err := NewStockCleanupJob(repo, 14, testCronLogger())
	if err != nil {
		t.Fatalf("NewStockCleanupJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

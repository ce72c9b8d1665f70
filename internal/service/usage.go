package service

import (
	"fmt"
	"time"

	"uploadfast/storage-api/internal/model"
	"uploadfast/storage-api/internal/plan"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// snapshotMaxAge is how old a cached metrics snapshot may get before a
// read recomputes it from the file ledger.
const snapshotMaxAge = time.Hour

const gbInKB = 1 << 20

// Usage computes and reconciles per-app storage counters. The file
// table is the system of record, the snapshot on the app row is only a
// cache of it.
type Usage struct {
	DB *gorm.DB
}

func NewUsage(db *gorm.DB) *Usage {
	return &Usage{DB: db}
}

// CurrentStats aggregates the app's file rows. A full scan per call,
// which is fine for the file counts a single app carries, but it's the
// first thing to revisit if tenants grow.
func (u *Usage) CurrentStats(appID string) (*model.StorageMetrics, error) {
	var agg struct {
		TotalSize float64
		Count     int64
	}

	err := u.DB.
		Model(model.File{}).
		Where("app_id = ?", appID).
		Select("COALESCE(SUM(size), 0) AS total_size, COUNT(*) AS count").
		Scan(&agg).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate file ledger, %w", err)
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := monthStart.AddDate(0, 1, 0)

	var monthly int64

	err = u.DB.
		Model(model.File{}).
		Where("app_id = ? AND created_at >= ? AND created_at < ?", appID, monthStart.Unix(), nextMonth.Unix()).
		Count(&monthly).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to count monthly uploads, %w", err)
	}

	return &model.StorageMetrics{
		TotalUsed:      agg.TotalSize,
		FilesCount:     agg.Count,
		MonthlyUploads: monthly,
		LastCalculated: now,
	}, nil
}

// Enforce decides whether a batch of the given total size may be
// admitted. Stats are recomputed from the ledger here rather than read
// from the snapshot, an enforcement decision must not trust a counter
// that may have skewed.
func (u *Usage) Enforce(app *model.App, batchSizeKB float64) error {
	stats, err := u.CurrentStats(app.ID)
	if err != nil {
		return err
	}

	storageCap, uploadCap := capsFor(app)

	if stats.TotalUsed+batchSizeKB > float64(storageCap) {
		return &QuotaExceededError{
			Kind: QuotaStorage,
			Detail: fmt.Sprintf("Storage limit exceeded. You have used %s out of your %.2fGB storage limit",
				formatKB(stats.TotalUsed), float64(storageCap)/gbInKB),
		}
	}

	if !plan.Unmetered(app.Plan.PlanType) && stats.MonthlyUploads >= uploadCap {
		return &QuotaExceededError{
			Kind: QuotaMonthlyUploads,
			Detail: fmt.Sprintf("Monthly upload limit reached. Uploads this month: %d, Limit: %d",
				stats.MonthlyUploads, uploadCap),
		}
	}

	return nil
}

// ApplyDelta is the cheap path that keeps the snapshot roughly in sync
// after a successful upload or delete. Counters clamp at zero, the
// periodic recomputation in Snapshot fixes any drift.
func (u *Usage) ApplyDelta(tx *gorm.DB, appID string, sizeKB float64, addition bool) error {
	var app model.App

	if err := tx.Select("metrics_total_used", "metrics_files_count", "metrics_monthly_uploads").
		Where("id = ?", appID).
		First(&app).
		Error; err != nil {
		return fmt.Errorf("failed to load usage snapshot, %w", err)
	}

	m := app.Metrics

	if addition {
		m.TotalUsed += sizeKB
		m.FilesCount++
		m.MonthlyUploads++
	} else {
		m.TotalUsed -= sizeKB
		if m.TotalUsed < 0 {
			m.TotalUsed = 0
		}

		m.FilesCount--
		if m.FilesCount < 0 {
			m.FilesCount = 0
		}
	}

	err := tx.
		Model(model.App{}).
		Where("id = ?", appID).
		Updates(map[string]any{
			"metrics_total_used":      m.TotalUsed,
			"metrics_files_count":     m.FilesCount,
			"metrics_monthly_uploads": m.MonthlyUploads,
			"metrics_last_calculated": time.Now(),
		}).
		Error
	if err != nil {
		return fmt.Errorf("failed to update usage snapshot, %w", err)
	}

	return nil
}

// Snapshot returns the cached metrics, recomputing and persisting them
// first when the cache is older than snapshotMaxAge.
func (u *Usage) Snapshot(app *model.App) (*model.StorageMetrics, error) {
	if time.Since(app.Metrics.LastCalculated) <= snapshotMaxAge {
		return &app.Metrics, nil
	}

	stats, err := u.CurrentStats(app.ID)
	if err != nil {
		return nil, err
	}

	err = u.DB.
		Model(model.App{}).
		Where("id = ?", app.ID).
		Updates(map[string]any{
			"metrics_total_used":      stats.TotalUsed,
			"metrics_files_count":     stats.FilesCount,
			"metrics_monthly_uploads": stats.MonthlyUploads,
			"metrics_last_calculated": stats.LastCalculated,
		}).
		Error
	if err != nil {
		zap.L().Error("Failed to persist recalculated usage snapshot", zap.String("appID", app.ID), zap.Error(err))
	}

	app.Metrics = *stats

	return stats, nil
}

// capsFor prefers the caps frozen on the app row and falls back to the
// plan policy table for rows written before caps were denormalized.
func capsFor(app *model.App) (storageCapKB, uploadCap int64) {
	l := plan.LimitsFor(app.Plan.PlanType)

	storageCapKB = l.StorageCapKB
	if app.Plan.StorageCap > 0 {
		storageCapKB = app.Plan.StorageCap
	}

	uploadCap = l.UploadCapPerMonth
	if app.Plan.UploadCap > 0 {
		uploadCap = app.Plan.UploadCap
	}

	return storageCapKB, uploadCap
}

func formatKB(kb float64) string {
	if kb >= gbInKB {
		return fmt.Sprintf("%.2fGB", kb/gbInKB)
	}

	return fmt.Sprintf("%.2fMB", kb/1024)
}

// Package model defines database models
package model

import "time"

// Plan is embedded in App. Cap values are denormalized from the plan
// policy table when the app is created or its plan is switched, so old
// rows keep the caps they were sold with.
type Plan struct {
	PlanType   string `json:"plan_type"`
	Active     bool   `json:"active"`
	Paid       bool   `json:"paid"`
	StorageCap int64  `json:"storage_cap"` // KB
	UploadCap  int64  `json:"upload_cap"`  // uploads per calendar month
}

// StorageMetrics is a cached aggregate over the app's file rows. The
// file table is the source of truth, these counters only avoid a full
// scan on every read. Never negative.
type StorageMetrics struct {
	TotalUsed      float64   `json:"total_used"` // KB, two decimal places
	FilesCount     int64     `json:"files_count"`
	MonthlyUploads int64     `json:"monthly_uploads"`
	LastCalculated time.Time `json:"last_calculated"`
}

type App struct {
	ID          string         `gorm:"primaryKey" json:"id"`
	UserID      string         `gorm:"index" json:"-"`
	Name        string         `json:"name"` // Unique per owner
	Description string         `json:"description"`
	Plan        Plan           `gorm:"embedded;embeddedPrefix:plan_" json:"plan"`
	Metrics     StorageMetrics `gorm:"embedded;embeddedPrefix:metrics_" json:"storage"`
	CreatedAt   int64          `gorm:"not null" json:"created_at"`
}

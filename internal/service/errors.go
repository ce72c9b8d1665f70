package service

import "errors"

var (
	// ErrNotFound covers both a missing file and a file owned by a
	// different app. Lookups are scoped to the calling app so the two
	// cases are indistinguishable on purpose.
	ErrNotFound = errors.New("file not found")

	ErrStorageWrite  = errors.New("storage write failed")
	ErrStorageDelete = errors.New("storage delete failed")
	ErrLedgerWrite   = errors.New("ledger write failed")
)

type QuotaKind string

const (
	QuotaStorage        QuotaKind = "storage"
	QuotaMonthlyUploads QuotaKind = "monthly_uploads"
)

// QuotaExceededError is raised before any side effect. Detail carries a
// human-readable reason with current usage vs the cap that was hit.
type QuotaExceededError struct {
	Kind   QuotaKind
	Detail string
}

func (e *QuotaExceededError) Error() string {
	return e.Detail
}

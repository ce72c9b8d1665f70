// Package plan maps a plan tier to its enforcement limits
package plan

const gbInKB = 1 << 20 // 1GB in kilobytes

const (
	Trial = "Trial"
	Tier1 = "Tier 1"
	Tier2 = "Tier 2"
)

type Limits struct {
	StorageCapKB      int64
	UploadCapPerMonth int64
	MaxFileSizeMB     int64
}

// Every tier accepts the same content types, plans only differ in caps.
var allowedTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/jpg":       {},
	"image/png":       {},
	"image/webp":      {},
	"image/gif":       {},
	"image/svg+xml":   {},
	"image/heic":      {},
	"image/heif":      {},
	"application/pdf": {},
}

// TypeAllowed reports whether a content type may be uploaded
func TypeAllowed(mime string) bool {
	_, ok := allowedTypes[mime]
	return ok
}

var limits = map[string]Limits{
	Trial: {
		StorageCapKB:      gbInKB,
		UploadCapPerMonth: 500,
		MaxFileSizeMB:     500,
	},
	Tier1: {
		StorageCapKB:      15 * gbInKB,
		UploadCapPerMonth: 5000,
		MaxFileSizeMB:     1024,
	},
	Tier2: {
		StorageCapKB:      120 * gbInKB,
		UploadCapPerMonth: 1000, // Nominal only, Tier 2 uploads are unmetered
		MaxFileSizeMB:     5120,
	},
}

// LimitsFor never fails. Unknown or legacy tiers fall back to the Trial
// limits so a bad plan value can't grant unlimited storage.
func LimitsFor(planType string) Limits {
	l, ok := limits[planType]
	if !ok {
		return limits[Trial]
	}

	return l
}

// Unmetered reports whether the tier is exempt from the monthly upload
// ceiling
func Unmetered(planType string) bool {
	return planType == Tier2
}

package model

// File is the durable record of one stored object. Created exactly once
// per successful PUT, deleted exactly once per successful delete, never
// mutated in between. Usage metrics are derived from these rows.
type File struct {
	ID           uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	AppID        string  `gorm:"index" json:"-"`
	FileKey      string  `json:"file_key"` // Avoids file name conflicts
	OriginalName string  `json:"name"`     // Original file name before turning it into a storage key
	MimeType     string  `json:"mime_type"`
	Size         float64 `json:"size"` // KB, two decimal places
	Bucket       string  `json:"bucket"`
	URL          string  `gorm:"index" json:"url"`
	CreatedAt    int64   `gorm:"not null" json:"created_at"`
}

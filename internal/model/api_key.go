package model

// APIKey stores only the SHA-256 digest of the issued key. The plain
// value is returned to the caller once at creation and never persisted.
type APIKey struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string `gorm:"index" json:"-"`
	AppID     string `gorm:"index" json:"-"`
	Digest    string `gorm:"uniqueIndex;not null" json:"-"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
}

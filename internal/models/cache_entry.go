package models

import "time"

// CacheEntry is a previously computed answer keyed by question fingerprint and
// the asking user. Entries are never shared between users. Key is the hashed
// (user, fingerprint) pair, so fingerprints of any length fit the index.
type CacheEntry struct {
	Key         string    `gorm:"column:cache_key;primaryKey;size:64" json:"-"`
	Fingerprint string    `gorm:"type:text;not null" json:"fingerprint"`
	UserID      string    `gorm:"size:128;not null;index" json:"userId"`
	Answer      string    `gorm:"type:text;not null" json:"answer"`
	Score       int       `json:"score"`
	Category    Category  `gorm:"size:16" json:"category"`
	HitCount    int       `json:"hitCount"`
	StoredAt    time.Time `json:"storedAt"`
	LastUsedAt  time.Time `json:"lastUsedAt"`
}

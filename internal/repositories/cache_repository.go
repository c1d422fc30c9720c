package repositories

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mvamarnath1/interview/internal/models"
)

// CacheRepository persists answer cache entries in the relational store.
type CacheRepository struct {
	DB *gorm.DB
}

// CacheKey derives the primary key for a (fingerprint, user) pair.
func CacheKey(fingerprint, userID string) string {
	sum := sha256.Sum256([]byte(userID + "\x00" + fingerprint))
	return hex.EncodeToString(sum[:])
}

func (r *CacheRepository) Get(ctx context.Context, fingerprint, userID string) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := r.DB.WithContext(ctx).
		Where("cache_key = ?", CacheKey(fingerprint, userID)).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}
	return &entry, nil
}

// Put upserts the entry; last write wins.
func (r *CacheRepository) Put(ctx context.Context, entry *models.CacheEntry) error {
	entry.Key = CacheKey(entry.Fingerprint, entry.UserID)
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

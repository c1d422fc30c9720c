package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/mvamarnath1/interview/internal/models"
)

type TurnRepository struct {
	DB *gorm.DB
}

// Append stores a turn. Turns are never updated once written.
func (r *TurnRepository) Append(ctx context.Context, turn *models.Turn) error {
	if err := r.DB.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("append turn for session %s: %w", turn.SessionID, err)
	}
	return nil
}

// Recent returns up to limit most recent turns of a session in arrival order.
func (r *TurnRepository) Recent(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	turns := []models.Turn{}
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("recent turns for session %s: %w", sessionID, err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListBySession returns the full persisted history of a session.
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Turn, error) {
	turns := []models.Turn{}
	err := r.DB.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("list turns for session %s: %w", sessionID, err)
	}
	return turns, nil
}

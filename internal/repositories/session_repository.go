package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mvamarnath1/interview/internal/models"
)

type SessionRepository struct {
	DB *gorm.DB
}

// Save inserts the session or overwrites the stored copy.
func (r *SessionRepository) Save(ctx context.Context, session *models.Session) error {
	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var session models.Session
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &session, nil
}

// ListActive returns sessions still holding a join code, oldest first.
func (r *SessionRepository) ListActive(ctx context.Context) ([]models.Session, error) {
	sessions := []models.Session{}
	err := r.DB.WithContext(ctx).
		Where("state IN ?", []models.SessionState{models.SessionOpen, models.SessionJoined}).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

package models

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryBehavioral Category = "behavioral"
	CategoryTechnical  Category = "technical"
	CategoryGeneral    Category = "general"
)

// ParseCategory maps free-form model output onto the closed category set.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryBehavioral:
		return CategoryBehavioral, true
	case CategoryTechnical:
		return CategoryTechnical, true
	case CategoryGeneral:
		return CategoryGeneral, true
	}
	return "", false
}

// Turn is one question/answer exchange owned by a session.
type Turn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"sessionId"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text" json:"answer"`
	Score     int       `json:"score"`
	Category  Category  `gorm:"size:16" json:"category"`
	CreatedAt time.Time `gorm:"index" json:"timestamp"`
}

// Answer is the scored suggestion handed back to the relay.
type Answer struct {
	Question string   `json:"question"`
	Text     string   `json:"answer"`
	Score    int      `json:"score"`
	Category Category `json:"category"`
	Cached   bool     `json:"cached"`
	Fallback bool     `json:"fallback,omitempty"`
}

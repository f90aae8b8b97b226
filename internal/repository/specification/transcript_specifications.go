package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByTranscriptOwner struct {
	UserID string
}

func (s ByTranscriptOwner) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type BySessionID struct {
	SessionID uuid.UUID
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatTranscript struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	UserId    string         `gorm:"type:text;not null;index:idx_transcript_owner"`
	SessionId *uuid.UUID     `gorm:"type:uuid;index:idx_transcript_owner"`
	EventId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role      string         `gorm:"type:varchar(16);not null"`
	Content   string         `gorm:"type:text;not null"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (ChatTranscript) TableName() string {
	return "chat_transcripts"
}

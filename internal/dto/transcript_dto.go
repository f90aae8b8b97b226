package dto

import (
	"time"

	"github.com/google/uuid"
)

type TranscriptResponse struct {
	Id        uuid.UUID  `json:"id"`
	SessionId *uuid.UUID `json:"session_id,omitempty"`
	EventId   uuid.UUID  `json:"event_id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

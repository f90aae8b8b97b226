package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	TranscriptRoleUser      = "user"
	TranscriptRoleAssistant = "assistant"
)

// Transcript is one persisted line of a chat exchange, keyed by the owning
// user and the realtime session it happened in.
type Transcript struct {
	Id        uuid.UUID
	UserId    string
	SessionId *uuid.UUID
	EventId   uuid.UUID
	Role      string
	Content   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

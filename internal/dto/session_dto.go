package dto

import (
	"time"

	"github.com/google/uuid"
)

type SessionInfo struct {
	SessionId    uuid.UUID `json:"session_id"`
	EntityId     string    `json:"entity_id"`
	EntityType   string    `json:"entity_type"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

type SessionStatsResponse struct {
	TotalSessions  int           `json:"total_sessions"`
	UniqueEntities int           `json:"unique_entities"`
	Sessions       []SessionInfo `json:"sessions"`
}

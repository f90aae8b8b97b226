package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityTypeUser   EntityType = "USER"
	EntityTypeDevice EntityType = "DEVICE"
)

// Opposite is the room that receives cross-routed results: device traffic
// notifies users and user traffic notifies devices.
func (t EntityType) Opposite() EntityType {
	if t == EntityTypeDevice {
		return EntityTypeUser
	}
	return EntityTypeDevice
}

func (t EntityType) Valid() bool {
	return t == EntityTypeUser || t == EntityTypeDevice
}

func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Session binds one live realtime connection to a logical entity.
type Session struct {
	Id           uuid.UUID
	EntityId     string
	EntityType   EntityType
	ConnectionId string
	Metadata     map[string]interface{}
	CreatedAt    time.Time
	LastActivity time.Time
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

type SessionStats struct {
	TotalSessions  int
	UniqueEntities int
	Sessions       []*Session
}

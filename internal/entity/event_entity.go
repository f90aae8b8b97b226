package entity

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusFailed     EventStatus = "FAILED"
)

func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusFailed
}

// CanTransitionTo reports whether next is reachable from s. Terminal states
// may be overwritten by another terminal state (concurrent processing of the
// same event is last-writer-wins) but never reopened.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch s {
	case EventStatusPending:
		return next == EventStatusProcessing
	case EventStatusProcessing:
		return next == EventStatusProcessing || next.IsTerminal()
	case EventStatusCompleted, EventStatusFailed:
		return next.IsTerminal()
	}
	return false
}

// EventMetadata carries the optional correlation fields set at creation.
type EventMetadata struct {
	SessionId   *uuid.UUID
	CreatedBy   string
	CreatorType EntityType
}

type Event struct {
	Id          uuid.UUID
	Type        string
	Source      string
	Data        map[string]interface{}
	Status      EventStatus
	SessionId   *uuid.UUID
	CreatedBy   string
	CreatorType EntityType
	Response    map[string]interface{}
	Error       *string
	Timestamp   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
	FailedAt    *time.Time
}

// Clone returns a copy safe to hand out of the registry. Data and Response are
// never mutated after being set, so the maps are shared.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	if e.SessionId != nil {
		sid := *e.SessionId
		c.SessionId = &sid
	}
	if e.Error != nil {
		msg := *e.Error
		c.Error = &msg
	}
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.FailedAt != nil {
		t := *e.FailedAt
		c.FailedAt = &t
	}
	return &c
}

// EventSummary is the trimmed record kept in the history ring.
type EventSummary struct {
	Id        uuid.UUID
	Type      string
	Source    string
	Status    EventStatus
	CreatedBy string
	Timestamp time.Time
}

func (e *Event) Summary() EventSummary {
	return EventSummary{
		Id:        e.Id,
		Type:      e.Type,
		Source:    e.Source,
		Status:    e.Status,
		CreatedBy: e.CreatedBy,
		Timestamp: e.Timestamp,
	}
}

type EventStats struct {
	Total       int
	ByStatus    map[EventStatus]int
	HistorySize int
}

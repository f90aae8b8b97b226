package dto

import (
	"time"

	"github.com/google/uuid"
)

type SubmitEventRequest struct {
	Type      string                 `json:"type" validate:"required,max=64"`
	Source    string                 `json:"source" validate:"required,max=128"`
	Data      map[string]interface{} `json:"data" validate:"required"`
	SessionId *uuid.UUID             `json:"session_id,omitempty"`
}

type SubmitEventResponse struct {
	EventId uuid.UUID `json:"event_id"`
	Status  string    `json:"status"`
}

// SyncEventResponse carries exactly one of Response or Error.
type SyncEventResponse struct {
	EventId  uuid.UUID              `json:"event_id"`
	Status   string                 `json:"status"`
	Response map[string]interface{} `json:"response,omitempty"`
	Error    *string                `json:"error,omitempty"`
}

type EventStatusResponse struct {
	EventId     uuid.UUID  `json:"event_id"`
	Type        string     `json:"type"`
	Source      string     `json:"source"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`
}

type EventHistoryItem struct {
	EventId   uuid.UUID `json:"event_id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	CreatedBy string    `json:"created_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventStatsResponse struct {
	TotalEvents int            `json:"total_events"`
	ByStatus    map[string]int `json:"by_status"`
	HistorySize int            `json:"history_size"`
}

// PublishProcessEventMessage is the payload put on the processing queue.
type PublishProcessEventMessage struct {
	EventId uuid.UUID `json:"event_id"`
}

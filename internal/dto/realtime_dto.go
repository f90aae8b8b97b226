package dto

import (
	"encoding/json"
	"time"
)

// Realtime frame types.
const (
	MessageSubmitEvent = "submit_event"
	MessagePing        = "ping"

	MessageAuthenticated   = "authenticated"
	MessageEventReceived   = "event_received"
	MessageEventProcessing = "event_processing"
	MessageEventCompleted  = "event_completed"
	MessageEventFailed     = "event_failed"
	MessageEventBroadcast  = "event_broadcast"
	MessagePong            = "pong"
	MessageError           = "error"
)

// InboundMessage is a frame read from a realtime connection. Data is decoded
// once the type is known.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutboundMessage is the {"type", "data"} envelope written to connections.
type OutboundMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type SubmitEventPayload struct {
	Type      string                 `json:"type" validate:"required"`
	Source    string                 `json:"source" validate:"required"`
	EventData map[string]interface{} `json:"eventData" validate:"required"`
	RequestId string                 `json:"requestId,omitempty"`
}

type AuthenticatedPayload struct {
	SessionId  string `json:"sessionId"`
	EntityId   string `json:"entityId"`
	EntityType string `json:"entityType"`
	Role       string `json:"role,omitempty"`
}

// EventReceivedPayload acknowledges a submission. A rejected submission has
// Success false and no EventId.
type EventReceivedPayload struct {
	Success   bool   `json:"success"`
	EventId   string `json:"eventId,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestId string `json:"requestId,omitempty"`
}

type EventProcessingPayload struct {
	EventId   string `json:"eventId"`
	RequestId string `json:"requestId,omitempty"`
}

type EventCompletedPayload struct {
	EventId   string                 `json:"eventId"`
	Response  map[string]interface{} `json:"response"`
	RequestId string                 `json:"requestId,omitempty"`
}

type EventFailedPayload struct {
	EventId   string `json:"eventId"`
	Error     string `json:"error"`
	RequestId string `json:"requestId,omitempty"`
}

type EventBroadcastPayload struct {
	EventId        string                 `json:"eventId"`
	FromEntityId   string                 `json:"fromEntityId"`
	FromEntityType string                 `json:"fromEntityType"`
	Status         string                 `json:"status"`
	Response       map[string]interface{} `json:"response,omitempty"`
	Error          string                 `json:"error,omitempty"`
}

type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}

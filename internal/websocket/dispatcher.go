package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/metrics"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/internal/service"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/ratelimit"
)

// EntityRoom is the room of every connection of one entity.
func EntityRoom(entityType entity.EntityType, entityId string) string {
	return string(entityType) + ":" + entityId
}

// TypeRoom is the room of every connection of one entity type.
func TypeRoom(entityType entity.EntityType) string {
	return string(entityType)
}

// Dispatcher routes realtime traffic between connections, the session
// registry and the event lifecycle.
type Dispatcher struct {
	hub         *Hub
	sessions    *memory.SessionRepository
	events      service.IEventService
	transcripts service.ITranscriptService
	limiter     ratelimit.Limiter
	logger      logger.ILogger

	inflight sync.WaitGroup
}

func NewDispatcher(
	hub *Hub,
	sessions *memory.SessionRepository,
	events service.IEventService,
	transcripts service.ITranscriptService,
	limiter ratelimit.Limiter,
	log logger.ILogger,
) *Dispatcher {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Dispatcher{
		hub:         hub,
		sessions:    sessions,
		events:      events,
		transcripts: transcripts,
		limiter:     limiter,
		logger:      log,
	}
}

// OnConnect registers an authenticated client: session, rooms and the
// authenticated acknowledgment.
func (d *Dispatcher) OnConnect(c *Client) {
	entityType := entity.EntityType(c.Identity.EntityType)

	meta := map[string]interface{}{"role": c.Identity.Role}
	if c.Identity.DeviceType != "" {
		meta["device_type"] = c.Identity.DeviceType
	}
	session := d.sessions.CreateSession(c.Identity.Id, entityType, c.Id, meta)

	d.hub.Register(c)
	d.hub.Join(c, EntityRoom(entityType, c.Identity.Id))
	d.hub.Join(c, TypeRoom(entityType))
	metrics.ActiveSessions.Set(float64(d.sessions.GetStats().TotalSessions))

	d.hub.SendTo(c, dto.MessageAuthenticated, dto.AuthenticatedPayload{
		SessionId:  session.Id.String(),
		EntityId:   c.Identity.Id,
		EntityType: string(entityType),
		Role:       c.Identity.Role,
	})

	d.logger.Info("Dispatcher", "Client connected", map[string]interface{}{
		"client_id":   c.Id,
		"entity_id":   c.Identity.Id,
		"entity_type": entityType,
		"session_id":  session.Id,
	})
}

// OnDisconnect ends the session and drops the client. It never panics.
func (d *Dispatcher) OnDisconnect(c *Client) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatcher", "Recovered during disconnect", map[string]interface{}{"client_id": c.Id, "panic": r})
		}
	}()

	d.sessions.EndSessionByConnection(c.Id)
	d.hub.Unregister(c)
	metrics.ActiveSessions.Set(float64(d.sessions.GetStats().TotalSessions))

	d.logger.Info("Dispatcher", "Client disconnected", map[string]interface{}{"client_id": c.Id, "entity_id": c.Identity.Id})
}

// HandleMessage processes one inbound frame.
func (d *Dispatcher) HandleMessage(c *Client, raw []byte) {
	var msg dto.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Type == "" {
		metrics.RealtimeMessages.WithLabelValues("in", "invalid").Inc()
		d.hub.SendTo(c, dto.MessageError, dto.ErrorPayload{Message: "malformed frame", Kind: string(apperror.KindValidation)})
		return
	}
	metrics.RealtimeMessages.WithLabelValues("in", msg.Type).Inc()

	switch msg.Type {
	case dto.MessageSubmitEvent:
		d.handleSubmit(c, msg.Data)
	case dto.MessagePing:
		d.handlePing(c)
	default:
		d.hub.SendTo(c, dto.MessageError, dto.ErrorPayload{Message: "unknown message type: " + msg.Type, Kind: string(apperror.KindValidation)})
	}
}

func (d *Dispatcher) handlePing(c *Client) {
	if session, ok := d.sessions.GetSessionByConnection(c.Id); ok {
		d.sessions.UpdateActivity(session.Id)
	}
	d.hub.SendTo(c, dto.MessagePong, dto.PongPayload{Timestamp: time.Now()})
}

func (d *Dispatcher) handleSubmit(c *Client, data json.RawMessage) {
	var payload dto.SubmitEventPayload
	if len(data) == 0 {
		d.reject(c, "", apperror.NewValidation("missing submission payload", nil))
		return
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		d.reject(c, "", apperror.NewValidation("malformed submission payload", err))
		return
	}
	if err := serverutils.ValidateRequest(payload); err != nil {
		d.reject(c, payload.RequestId, err)
		return
	}

	entityType := entity.EntityType(c.Identity.EntityType)
	decision := d.limiter.Allow(context.Background(), string(entityType)+":"+c.Identity.Id)
	if !decision.Allowed {
		d.reject(c, payload.RequestId, apperror.NewRateLimited("submission rate limit exceeded"))
		return
	}

	meta := entity.EventMetadata{
		CreatedBy:   c.Identity.Id,
		CreatorType: entityType,
	}
	if session, ok := d.sessions.GetSessionByConnection(c.Id); ok {
		sid := session.Id
		meta.SessionId = &sid
		d.sessions.UpdateActivity(session.Id)
	}

	ev := d.events.CreateEvent(context.Background(), payload.Type, payload.Source, payload.EventData, meta)

	d.hub.SendTo(c, dto.MessageEventReceived, dto.EventReceivedPayload{
		Success:   true,
		EventId:   ev.Id.String(),
		Status:    string(ev.Status),
		RequestId: payload.RequestId,
	})
	d.hub.SendTo(c, dto.MessageEventProcessing, dto.EventProcessingPayload{
		EventId:   ev.Id.String(),
		RequestId: payload.RequestId,
	})

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.process(c, ev, payload.RequestId)
	}()
}

// process runs to completion even if c disconnects meanwhile; frames to a
// gone client are dropped by the hub.
func (d *Dispatcher) process(c *Client, ev *entity.Event, requestId string) {
	settled, err := d.events.ProcessEvent(context.Background(), ev.Id)
	if err != nil && !errors.Is(err, engine.ErrProcessingFailed) {
		d.hub.SendTo(c, dto.MessageError, dto.ErrorPayload{Message: err.Error(), Kind: string(apperror.KindOf(err))})
		return
	}

	d.notifySubmitter(c, settled, requestId)
	d.crossRoute(settled)

	if settled.Status == entity.EventStatusCompleted {
		if recErr := d.transcripts.Record(context.Background(), settled); recErr != nil {
			d.logger.Warn("Dispatcher", "Transcript not persisted", map[string]interface{}{"event_id": settled.Id, "error": recErr.Error()})
		}
	}
}

// NotifySettled announces an event settled outside a realtime submission
// (queued HTTP submissions) to its creator's room and cross-routes it.
func (d *Dispatcher) NotifySettled(ev *entity.Event) {
	if ev == nil || !ev.CreatorType.Valid() || ev.CreatedBy == "" {
		return
	}
	room := EntityRoom(ev.CreatorType, ev.CreatedBy)
	if ev.Status == entity.EventStatusCompleted {
		d.hub.EmitToRoom(room, dto.MessageEventCompleted, dto.EventCompletedPayload{EventId: ev.Id.String(), Response: ev.Response})
	} else {
		d.hub.EmitToRoom(room, dto.MessageEventFailed, dto.EventFailedPayload{EventId: ev.Id.String(), Error: errorText(ev)})
	}
	d.crossRoute(ev)
}

func (d *Dispatcher) notifySubmitter(c *Client, ev *entity.Event, requestId string) {
	if ev.Status == entity.EventStatusCompleted {
		d.hub.SendTo(c, dto.MessageEventCompleted, dto.EventCompletedPayload{
			EventId:   ev.Id.String(),
			Response:  ev.Response,
			RequestId: requestId,
		})
		return
	}
	d.hub.SendTo(c, dto.MessageEventFailed, dto.EventFailedPayload{
		EventId:   ev.Id.String(),
		Error:     errorText(ev),
		RequestId: requestId,
	})
}

// crossRoute delivers a settled event to every connection of the opposite
// entity type.
func (d *Dispatcher) crossRoute(ev *entity.Event) {
	if !ev.CreatorType.Valid() {
		return
	}
	payload := dto.EventBroadcastPayload{
		EventId:        ev.Id.String(),
		FromEntityId:   ev.CreatedBy,
		FromEntityType: string(ev.CreatorType),
		Status:         string(ev.Status),
	}
	if ev.Status == entity.EventStatusCompleted {
		payload.Response = ev.Response
	} else {
		payload.Error = errorText(ev)
	}
	d.hub.EmitToRoom(TypeRoom(ev.CreatorType.Opposite()), dto.MessageEventBroadcast, payload)
}

func (d *Dispatcher) reject(c *Client, requestId string, err error) {
	kind := apperror.KindOf(err)
	message := err.Error()
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	metrics.SubmissionsRejected.WithLabelValues(string(kind)).Inc()
	d.hub.SendTo(c, dto.MessageEventReceived, dto.EventReceivedPayload{
		Success:   false,
		Error:     message,
		Kind:      string(kind),
		RequestId: requestId,
	})
}

// Wait blocks until every in-flight realtime submission has settled.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func errorText(ev *entity.Event) string {
	if ev.Error != nil {
		return *ev.Error
	}
	return ""
}

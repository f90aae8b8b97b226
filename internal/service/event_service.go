package service

import (
	"context"
	"errors"
	"time"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/mapper"
	"shyra-hub-be/internal/metrics"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/events"

	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit   = 10
	DefaultEventRetention = 1000

	publishTimeout = 5 * time.Second
)

// EventProcessor is the retrying boundary to the inference engine.
type EventProcessor interface {
	ProcessEventWithRetry(ctx context.Context, payload engine.EventPayload, maxRetries int) (*engine.Result, error)
}

// LifecyclePublisher receives best-effort lifecycle notifications.
type LifecyclePublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type IEventService interface {
	CreateEvent(ctx context.Context, eventType, source string, data map[string]interface{}, meta entity.EventMetadata) *entity.Event
	ProcessEvent(ctx context.Context, eventId uuid.UUID) (*entity.Event, error)
	GetEvent(ctx context.Context, eventId uuid.UUID) (*entity.Event, error)
	GetEventStatus(ctx context.Context, eventId uuid.UUID) (*dto.EventStatusResponse, error)
	GetHistory(ctx context.Context, limit int) []dto.EventHistoryItem
	GetStats(ctx context.Context) *dto.EventStatsResponse
	Cleanup(ctx context.Context) int
}

type EventServiceConfig struct {
	MaxRetries      int
	Retention       int
	HistoryCapacity int
}

type eventService struct {
	repo      *memory.EventRepository
	processor EventProcessor
	publisher LifecyclePublisher
	mapper    *mapper.EventMapper
	logger    logger.ILogger
	cfg       EventServiceConfig
	now       func() time.Time
}

func NewEventService(
	repo *memory.EventRepository,
	processor EventProcessor,
	publisher LifecyclePublisher,
	log logger.ILogger,
	cfg EventServiceConfig,
) IEventService {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = engine.DefaultMaxRetries
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultEventRetention
	}
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = memory.DefaultHistoryCapacity
	}
	return &eventService{
		repo:      repo,
		processor: processor,
		publisher: publisher,
		mapper:    mapper.NewEventMapper(),
		logger:    log,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *eventService) CreateEvent(ctx context.Context, eventType, source string, data map[string]interface{}, meta entity.EventMetadata) *entity.Event {
	now := s.now()
	ev := &entity.Event{
		Id:          uuid.New(),
		Type:        eventType,
		Source:      source,
		Data:        data,
		Status:      entity.EventStatusPending,
		SessionId:   meta.SessionId,
		CreatedBy:   meta.CreatedBy,
		CreatorType: meta.CreatorType,
		Timestamp:   now,
		UpdatedAt:   now,
	}
	s.repo.Insert(ev)
	metrics.EventsCreated.Inc()

	s.logger.Info("EventService", "Event created", map[string]interface{}{
		"event_id":   ev.Id,
		"type":       eventType,
		"source":     source,
		"created_by": meta.CreatedBy,
	})
	s.publish(ctx, events.EventCreated, ev, nil)

	return ev.Clone()
}

// ProcessEvent drives the event through PROCESSING to a terminal state. The
// record is settled before any engine failure is returned, and processing is
// detached from ctx cancellation so it always finishes.
func (s *eventService) ProcessEvent(ctx context.Context, eventId uuid.UUID) (*entity.Event, error) {
	ctx = context.WithoutCancel(ctx)

	startedAt := s.now()
	ev, err := s.repo.Transition(eventId, entity.EventStatusProcessing, func(e *entity.Event) {
		e.UpdatedAt = startedAt
	})
	if err != nil {
		if errors.Is(err, memory.ErrEventNotFound) {
			return nil, apperror.NewNotFound("event not found")
		}
		return ev, apperror.NewConflict("event " + eventId.String() + " already settled as " + string(ev.Status))
	}

	s.logger.Info("EventService", "Processing event", map[string]interface{}{"event_id": eventId, "type": ev.Type})

	result, procErr := s.processor.ProcessEventWithRetry(ctx, s.payloadFor(ev), s.cfg.MaxRetries)
	settledAt := s.now()
	metrics.EventProcessingDuration.Observe(float64(settledAt.Sub(startedAt).Milliseconds()))

	if procErr != nil {
		msg := procErr.Error()
		settled := s.settle(ev, entity.EventStatusFailed, func(e *entity.Event) {
			e.Error = &msg
			e.Response = nil
			e.CompletedAt = nil
			e.FailedAt = &settledAt
			e.UpdatedAt = settledAt
		})
		s.logger.Error("EventService", "Event processing failed", map[string]interface{}{
			"event_id": eventId,
			"error":    procErr,
		})
		s.publish(ctx, events.EventFailed, settled, map[string]interface{}{"error": msg})
		return settled, procErr
	}

	response := result.Data
	settled := s.settle(ev, entity.EventStatusCompleted, func(e *entity.Event) {
		e.Response = response
		e.Error = nil
		e.FailedAt = nil
		e.CompletedAt = &settledAt
		e.UpdatedAt = settledAt
	})
	s.logger.Info("EventService", "Event completed", map[string]interface{}{"event_id": eventId})
	s.publish(ctx, events.EventCompleted, settled, nil)

	return settled, nil
}

// settle records the terminal status. If the retention sweep evicted the
// record mid-flight the outcome is still returned to the caller.
func (s *eventService) settle(ev *entity.Event, status entity.EventStatus, mutate func(*entity.Event)) *entity.Event {
	metrics.EventsSettled.WithLabelValues(string(status)).Inc()

	settled, err := s.repo.Transition(ev.Id, status, mutate)
	if err == nil {
		return settled
	}

	s.logger.Warn("EventService", "Settled event no longer tracked", map[string]interface{}{
		"event_id": ev.Id,
		"status":   status,
		"error":    err.Error(),
	})
	detached := ev.Clone()
	detached.Status = status
	mutate(detached)
	return detached
}

func (s *eventService) payloadFor(ev *entity.Event) engine.EventPayload {
	payload := engine.EventPayload{
		EventType: ev.Type,
		Source:    ev.Source,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	}
	if ev.SessionId != nil {
		sid := ev.SessionId.String()
		payload.SessionID = &sid
	}
	return payload
}

func (s *eventService) GetEvent(ctx context.Context, eventId uuid.UUID) (*entity.Event, error) {
	ev, ok := s.repo.Get(eventId)
	if !ok {
		return nil, apperror.NewNotFound("event not found")
	}
	return ev, nil
}

func (s *eventService) GetEventStatus(ctx context.Context, eventId uuid.UUID) (*dto.EventStatusResponse, error) {
	ev, err := s.GetEvent(ctx, eventId)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToStatusResponse(ev), nil
}

func (s *eventService) GetHistory(ctx context.Context, limit int) []dto.EventHistoryItem {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > s.cfg.HistoryCapacity {
		limit = s.cfg.HistoryCapacity
	}
	return s.mapper.ToHistory(s.repo.History(limit))
}

func (s *eventService) GetStats(ctx context.Context) *dto.EventStatsResponse {
	return s.mapper.ToStatsResponse(s.repo.Stats())
}

func (s *eventService) Cleanup(ctx context.Context) int {
	removed := s.repo.RetainNewest(s.cfg.Retention)
	if removed > 0 {
		metrics.EventsEvicted.Add(float64(removed))
		s.logger.Info("EventService", "Event retention sweep", map[string]interface{}{
			"removed":   removed,
			"retention": s.cfg.Retention,
		})
	}
	return removed
}

func (s *eventService) publish(ctx context.Context, code string, ev *entity.Event, extra map[string]interface{}) {
	if s.publisher == nil {
		return
	}

	data := map[string]interface{}{
		"event_id":     ev.Id.String(),
		"type":         ev.Type,
		"source":       ev.Source,
		"status":       string(ev.Status),
		"created_by":   ev.CreatedBy,
		"creator_type": string(ev.CreatorType),
	}
	for k, v := range extra {
		data[k] = v
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := events.BaseEvent{Type: code, Data: data, OccurredAt: s.now()}
	if err := s.publisher.Publish(pubCtx, evt); err != nil {
		s.logger.Warn("EventService", "Failed to publish lifecycle event", map[string]interface{}{
			"code":     code,
			"event_id": ev.Id,
			"error":    err.Error(),
		})
	}
}

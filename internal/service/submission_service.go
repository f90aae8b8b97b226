package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/mapper"
	"shyra-hub-be/internal/metrics"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/pkg/auth"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/ratelimit"

	"github.com/google/uuid"
)

// EventRunner settles an already created event in the background.
type EventRunner interface {
	Process(eventId uuid.UUID)
}

// ISubmissionService is the HTTP-facing entry point for event submission.
type ISubmissionService interface {
	SubmitAsync(ctx context.Context, identity auth.Identity, req *dto.SubmitEventRequest) (*dto.SubmitEventResponse, error)
	SubmitSync(ctx context.Context, identity auth.Identity, req *dto.SubmitEventRequest) (*dto.SyncEventResponse, error)
}

type submissionService struct {
	eventService      IEventService
	publisherService  IPublisherService
	runner            EventRunner
	transcriptService ITranscriptService
	limiter           ratelimit.Limiter
	mapper            *mapper.EventMapper
	logger            logger.ILogger
}

func NewSubmissionService(
	eventService IEventService,
	publisherService IPublisherService,
	runner EventRunner,
	transcriptService ITranscriptService,
	limiter ratelimit.Limiter,
	log logger.ILogger,
) ISubmissionService {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &submissionService{
		eventService:      eventService,
		publisherService:  publisherService,
		runner:            runner,
		transcriptService: transcriptService,
		limiter:           limiter,
		mapper:            mapper.NewEventMapper(),
		logger:            log,
	}
}

// SubmitAsync creates the event and queues it for processing. If the queue
// rejects it the runner processes it directly, so the event still settles. The
// outcome is only observable through the event status and realtime notices.
func (s *submissionService) SubmitAsync(ctx context.Context, identity auth.Identity, req *dto.SubmitEventRequest) (*dto.SubmitEventResponse, error) {
	if err := s.checkRate(ctx, identity); err != nil {
		return nil, err
	}

	ev := s.eventService.CreateEvent(ctx, req.Type, req.Source, req.Data, metadataFor(identity, req))

	payload, err := json.Marshal(dto.PublishProcessEventMessage{EventId: ev.Id})
	if err == nil {
		err = s.publisherService.Publish(ctx, payload)
	}
	if err != nil {
		s.logger.Warn("SubmissionService", "Failed to queue event, processing directly", map[string]interface{}{
			"event_id": ev.Id,
			"error":    err.Error(),
		})
		s.runner.Process(ev.Id)
	}

	return &dto.SubmitEventResponse{
		EventId: ev.Id,
		Status:  string(ev.Status),
	}, nil
}

// SubmitSync waits for the full retry cycle. An engine failure is a normal
// FAILED response, not an error.
func (s *submissionService) SubmitSync(ctx context.Context, identity auth.Identity, req *dto.SubmitEventRequest) (*dto.SyncEventResponse, error) {
	if err := s.checkRate(ctx, identity); err != nil {
		return nil, err
	}

	ev := s.eventService.CreateEvent(ctx, req.Type, req.Source, req.Data, metadataFor(identity, req))

	settled, err := s.eventService.ProcessEvent(ctx, ev.Id)
	if err != nil && !errors.Is(err, engine.ErrProcessingFailed) {
		return nil, err
	}

	if err == nil {
		if recErr := s.transcriptService.Record(context.WithoutCancel(ctx), settled); recErr != nil {
			s.logger.Warn("SubmissionService", "Transcript not persisted", map[string]interface{}{
				"event_id": settled.Id,
				"error":    recErr.Error(),
			})
		}
	}

	return s.mapper.ToSyncResponse(settled), nil
}

func (s *submissionService) checkRate(ctx context.Context, identity auth.Identity) error {
	decision := s.limiter.Allow(ctx, identity.EntityType+":"+identity.Id)
	if decision.Allowed {
		return nil
	}
	metrics.SubmissionsRejected.WithLabelValues("rate_limited").Inc()
	return apperror.NewRateLimited(fmt.Sprintf("submission limit of %d per window reached", decision.Limit))
}

func metadataFor(identity auth.Identity, req *dto.SubmitEventRequest) entity.EventMetadata {
	return entity.EventMetadata{
		SessionId:   req.SessionId,
		CreatedBy:   identity.Id,
		CreatorType: entity.EntityType(identity.EntityType),
	}
}

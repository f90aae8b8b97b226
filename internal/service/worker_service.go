package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/pkg/engine"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// SettlementNotifier is told about every event the worker settles.
// Typically implemented by the realtime dispatcher.
type SettlementNotifier interface {
	NotifySettled(ev *entity.Event)
}

type IWorkerService interface {
	Consume(ctx context.Context) error
	Process(eventId uuid.UUID)
	Wait()
}

type workerService struct {
	subscriber   message.Subscriber
	topicName    string
	eventService IEventService
	notifier     SettlementNotifier
	logger       logger.ILogger

	inflight sync.WaitGroup
}

func NewWorkerService(
	subscriber message.Subscriber,
	topicName string,
	eventService IEventService,
	notifier SettlementNotifier,
	log logger.ILogger,
) IWorkerService {
	return &workerService{
		subscriber:   subscriber,
		topicName:    topicName,
		eventService: eventService,
		notifier:     notifier,
		logger:       log,
	}
}

// Consume subscribes and returns; messages are handled until ctx is done.
func (w *workerService) Consume(ctx context.Context) error {
	messages, err := w.subscriber.Subscribe(ctx, w.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			w.processMessage(msg)
		}
	}()

	w.logger.Info("WorkerService", "Processing queue consumer started", map[string]interface{}{"topic": w.topicName})
	return nil
}

func (w *workerService) processMessage(msg *message.Message) {
	var payload dto.PublishProcessEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		w.logger.Error("WorkerService", "Failed to unmarshal message", map[string]interface{}{"error": err})
		msg.Ack() // never redeliver garbage
		return
	}

	// gochannel holds the next message until this one is acked.
	msg.Ack()

	w.Process(payload.EventId)
}

// Process settles eventId in the background and hands the outcome to the
// notifier. Wait blocks until every such run has finished.
func (w *workerService) Process(eventId uuid.UUID) {
	w.inflight.Add(1)
	go func() {
		defer w.inflight.Done()

		ev, err := w.eventService.ProcessEvent(context.Background(), eventId)
		if err != nil && !errors.Is(err, engine.ErrProcessingFailed) {
			w.logger.Warn("WorkerService", "Queued event could not be processed", map[string]interface{}{
				"event_id": eventId,
				"error":    err.Error(),
			})
			return
		}
		if w.notifier != nil {
			w.notifier.NotifySettled(ev)
		}
	}()
}

func (w *workerService) Wait() {
	w.inflight.Wait()
}

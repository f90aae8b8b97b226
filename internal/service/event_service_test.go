package service

import (
	"context"
	"testing"
	"time"

	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/pkg/apperror"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEventService(proc EventProcessor, pub LifecyclePublisher, cfg EventServiceConfig) IEventService {
	return NewEventService(memory.NewEventRepository(cfg.HistoryCapacity), proc, pub, logger.NewNopLogger(), cfg)
}

func TestCreateEventStartsPending(t *testing.T) {
	svc := newTestEventService(&fakeProcessor{}, nil, EventServiceConfig{})
	sid := uuid.New()

	ev := svc.CreateEvent(context.Background(), "chat", "dev1", map[string]interface{}{"query": "hi"}, entity.EventMetadata{
		SessionId:   &sid,
		CreatedBy:   "dev1",
		CreatorType: entity.EntityTypeDevice,
	})

	assert.NotEqual(t, uuid.Nil, ev.Id)
	assert.Equal(t, entity.EventStatusPending, ev.Status)
	assert.Nil(t, ev.Response)
	assert.Nil(t, ev.Error)

	history := svc.GetHistory(context.Background(), 0)
	require.Len(t, history, 1)
	assert.Equal(t, ev.Id, history[0].EventId)
	assert.Equal(t, "PENDING", history[0].Status)
}

func TestProcessEventCompletes(t *testing.T) {
	proc := &fakeProcessor{result: &engine.Result{Success: true, Data: map[string]interface{}{"response_text": "hello"}}}
	svc := newTestEventService(proc, nil, EventServiceConfig{MaxRetries: 3})
	sid := uuid.New()
	ev := svc.CreateEvent(context.Background(), "chat", "dev1", map[string]interface{}{"query": "hi"}, entity.EventMetadata{SessionId: &sid})

	settled, err := svc.ProcessEvent(context.Background(), ev.Id)
	require.NoError(t, err)

	assert.Equal(t, entity.EventStatusCompleted, settled.Status)
	assert.Equal(t, "hello", settled.Response["response_text"])
	assert.Nil(t, settled.Error)
	assert.NotNil(t, settled.CompletedAt)
	assert.Nil(t, settled.FailedAt)

	require.Len(t, proc.calls, 1)
	assert.Equal(t, "chat", proc.calls[0].EventType)
	assert.Equal(t, "dev1", proc.calls[0].Source)
	require.NotNil(t, proc.calls[0].SessionID)
	assert.Equal(t, sid.String(), *proc.calls[0].SessionID)
	assert.Equal(t, []int{3}, proc.retries)

	status, err := svc.GetEventStatus(context.Background(), ev.Id)
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status.Status)
}

func TestProcessEventFailureSettlesBeforeReturning(t *testing.T) {
	svc := newTestEventService(&fakeProcessor{err: unreachable()}, nil, EventServiceConfig{})
	ev := svc.CreateEvent(context.Background(), "chat", "dev1", map[string]interface{}{}, entity.EventMetadata{})

	settled, err := svc.ProcessEvent(context.Background(), ev.Id)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrProcessingFailed)

	require.NotNil(t, settled)
	assert.Equal(t, entity.EventStatusFailed, settled.Status)
	require.NotNil(t, settled.Error)
	assert.Equal(t, "inference engine unreachable at http://engine/process", *settled.Error)
	assert.Nil(t, settled.Response)

	status, err := svc.GetEventStatus(context.Background(), ev.Id)
	require.NoError(t, err)
	assert.Equal(t, "FAILED", status.Status)
	assert.NotNil(t, status.FailedAt)
}

func TestProcessEventRejectsSettledEvent(t *testing.T) {
	proc := &fakeProcessor{result: &engine.Result{Success: true, Data: map[string]interface{}{}}}
	svc := newTestEventService(proc, nil, EventServiceConfig{})
	ev := svc.CreateEvent(context.Background(), "chat", "dev1", nil, entity.EventMetadata{})

	_, err := svc.ProcessEvent(context.Background(), ev.Id)
	require.NoError(t, err)

	again, err := svc.ProcessEvent(context.Background(), ev.Id)
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, entity.EventStatusCompleted, again.Status)
	assert.Len(t, proc.calls, 1)
}

func TestProcessEventUnknownId(t *testing.T) {
	svc := newTestEventService(&fakeProcessor{}, nil, EventServiceConfig{})

	_, err := svc.ProcessEvent(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.GetEventStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestProcessEventIgnoresCallerCancellation(t *testing.T) {
	proc := &fakeProcessor{result: &engine.Result{Success: true, Data: map[string]interface{}{"ok": true}}}
	svc := newTestEventService(proc, nil, EventServiceConfig{})
	ev := svc.CreateEvent(context.Background(), "chat", "dev1", nil, entity.EventMetadata{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	settled, err := svc.ProcessEvent(ctx, ev.Id)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatusCompleted, settled.Status)
}

func TestLifecycleEventsArePublished(t *testing.T) {
	pub := &recordingPublisher{}
	svc := newTestEventService(&fakeProcessor{err: unreachable()}, pub, EventServiceConfig{})
	ev := svc.CreateEvent(context.Background(), "chat", "user1", nil, entity.EventMetadata{CreatedBy: "user1", CreatorType: entity.EntityTypeUser})

	_, _ = svc.ProcessEvent(context.Background(), ev.Id)

	assert.Equal(t, []string{events.EventCreated, events.EventFailed}, pub.codes)
	assert.Equal(t, ev.Id.String(), pub.data[1]["event_id"])
	assert.Equal(t, "USER", pub.data[1]["creator_type"])
	assert.Contains(t, pub.data[1]["error"], "unreachable")
}

func TestCleanupKeepsNewestEvents(t *testing.T) {
	svc := newTestEventService(&fakeProcessor{}, nil, EventServiceConfig{Retention: 2}).(*eventService)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		ids = append(ids, svc.CreateEvent(context.Background(), "chat", "dev1", nil, entity.EventMetadata{}).Id)
	}

	assert.Equal(t, 2, svc.Cleanup(context.Background()))

	for i, id := range ids {
		_, err := svc.GetEvent(context.Background(), id)
		if i < 2 {
			assert.ErrorIs(t, err, apperror.ErrNotFound)
		} else {
			assert.NoError(t, err)
		}
	}
	assert.Equal(t, 2, svc.GetStats(context.Background()).TotalEvents)
}

func TestGetHistoryClampsLimit(t *testing.T) {
	svc := newTestEventService(&fakeProcessor{}, nil, EventServiceConfig{HistoryCapacity: 20})
	for i := 0; i < 30; i++ {
		svc.CreateEvent(context.Background(), "chat", "dev1", nil, entity.EventMetadata{})
	}

	assert.Len(t, svc.GetHistory(context.Background(), 0), DefaultHistoryLimit)
	assert.Len(t, svc.GetHistory(context.Background(), 5), 5)
	assert.Len(t, svc.GetHistory(context.Background(), 500), 20)
}

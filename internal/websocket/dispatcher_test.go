package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/internal/service"
	"shyra-hub-be/pkg/auth"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/ratelimit"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	mu     sync.Mutex
	result *engine.Result
	err    error
}

func (s *stubEngine) ProcessEventWithRetry(ctx context.Context, payload engine.EventPayload, maxRetries int) (*engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

type denyAll struct{}

func (denyAll) Allow(ctx context.Context, key string) ratelimit.Decision {
	return ratelimit.Decision{Allowed: false, Limit: 1}
}

type frame struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type fixture struct {
	hub        *Hub
	sessions   *memory.SessionRepository
	events     service.IEventService
	dispatcher *Dispatcher
}

func newFixture(t *testing.T, eng *stubEngine, limiter ratelimit.Limiter) *fixture {
	t.Helper()
	log := logger.NewNopLogger()
	hub := NewHub(nil, log)
	sessions := memory.NewSessionRepository()
	events := service.NewEventService(memory.NewEventRepository(0), eng, nil, log, service.EventServiceConfig{MaxRetries: 1})
	transcripts := service.NewTranscriptService(nil, log)
	return &fixture{
		hub:        hub,
		sessions:   sessions,
		events:     events,
		dispatcher: NewDispatcher(hub, sessions, events, transcripts, limiter, log),
	}
}

func (f *fixture) connect(id, entityId string, entityType entity.EntityType) *Client {
	c := NewClient(id, auth.Identity{Id: entityId, EntityType: string(entityType), Role: "member"}, nil)
	f.dispatcher.OnConnect(c)
	return c
}

func submit(t *testing.T, f *fixture, c *Client, payload map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]interface{}{"type": dto.MessageSubmitEvent, "data": json.RawMessage(data)})
	require.NoError(t, err)
	f.dispatcher.HandleMessage(c, raw)
}

// drain returns every frame queued for c so far.
func drain(t *testing.T, c *Client) []frame {
	t.Helper()
	var frames []frame
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return frames
			}
			var fr frame
			require.NoError(t, json.Unmarshal(raw, &fr))
			frames = append(frames, fr)
		default:
			return frames
		}
	}
}

func types(frames []frame) []string {
	out := make([]string, 0, len(frames))
	for _, fr := range frames {
		out = append(out, fr.Type)
	}
	return out
}

func TestOnConnectSendsAuthenticated(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	c := f.connect("conn-1", "dev-1", entity.EntityTypeDevice)

	frames := drain(t, c)
	require.Len(t, frames, 1)
	assert.Equal(t, dto.MessageAuthenticated, frames[0].Type)
	assert.Equal(t, "dev-1", frames[0].Data["entityId"])
	assert.Equal(t, "DEVICE", frames[0].Data["entityType"])

	session, ok := f.sessions.GetSessionByConnection("conn-1")
	require.True(t, ok)
	assert.Equal(t, session.Id.String(), frames[0].Data["sessionId"])
	assert.Equal(t, 1, f.hub.RoomSize(EntityRoom(entity.EntityTypeDevice, "dev-1")))
	assert.Equal(t, 1, f.hub.RoomSize(TypeRoom(entity.EntityTypeDevice)))
}

func TestDeviceSubmissionIsCrossRoutedToUsers(t *testing.T) {
	eng := &stubEngine{result: &engine.Result{Success: true, Data: map[string]interface{}{"response_text": "lights on"}}}
	f := newFixture(t, eng, nil)

	device := f.connect("conn-d1", "dev-1", entity.EntityTypeDevice)
	otherDevice := f.connect("conn-d2", "dev-2", entity.EntityTypeDevice)
	user := f.connect("conn-u1", "user-1", entity.EntityTypeUser)
	drain(t, device)
	drain(t, otherDevice)
	drain(t, user)

	submit(t, f, device, map[string]interface{}{
		"type":      "command",
		"source":    "dev-1",
		"eventData": map[string]interface{}{"action": "lights"},
		"requestId": "req-1",
	})
	f.dispatcher.Wait()

	got := drain(t, device)
	require.Equal(t, []string{dto.MessageEventReceived, dto.MessageEventProcessing, dto.MessageEventCompleted}, types(got))
	assert.Equal(t, true, got[0].Data["success"])
	assert.Equal(t, "PENDING", got[0].Data["status"])
	assert.Equal(t, "req-1", got[0].Data["requestId"])
	eventId := got[0].Data["eventId"]
	assert.Equal(t, eventId, got[1].Data["eventId"])
	assert.Equal(t, eventId, got[2].Data["eventId"])
	assert.Equal(t, "lights on", got[2].Data["response"].(map[string]interface{})["response_text"])

	broadcast := drain(t, user)
	require.Len(t, broadcast, 1)
	assert.Equal(t, dto.MessageEventBroadcast, broadcast[0].Type)
	assert.Equal(t, eventId, broadcast[0].Data["eventId"])
	assert.Equal(t, "dev-1", broadcast[0].Data["fromEntityId"])
	assert.Equal(t, "DEVICE", broadcast[0].Data["fromEntityType"])
	assert.Equal(t, "COMPLETED", broadcast[0].Data["status"])

	assert.Empty(t, drain(t, otherDevice))

	id, err := uuid.Parse(eventId.(string))
	require.NoError(t, err)
	ev, err := f.events.GetEvent(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, entity.EventStatusCompleted, ev.Status)
	require.NotNil(t, ev.SessionId)
	session, _ := f.sessions.GetSessionByConnection("conn-d1")
	assert.Equal(t, session.Id, *ev.SessionId)
}

func TestUserSubmissionFailureReachesDevices(t *testing.T) {
	eng := &stubEngine{err: &engine.Error{Kind: engine.KindTimeout, Message: "inference engine timed out after 30s"}}
	f := newFixture(t, eng, nil)

	user := f.connect("conn-u1", "user-1", entity.EntityTypeUser)
	device := f.connect("conn-d1", "dev-1", entity.EntityTypeDevice)
	drain(t, user)
	drain(t, device)

	submit(t, f, user, map[string]interface{}{"type": "chat", "source": "app", "eventData": map[string]interface{}{"query": "hi"}})
	f.dispatcher.Wait()

	got := drain(t, user)
	require.Equal(t, []string{dto.MessageEventReceived, dto.MessageEventProcessing, dto.MessageEventFailed}, types(got))
	assert.Equal(t, "inference engine timed out after 30s", got[2].Data["error"])

	broadcast := drain(t, device)
	require.Len(t, broadcast, 1)
	assert.Equal(t, "FAILED", broadcast[0].Data["status"])
	assert.Equal(t, "inference engine timed out after 30s", broadcast[0].Data["error"])
}

func TestSubmissionRejections(t *testing.T) {
	tests := []struct {
		name     string
		limiter  ratelimit.Limiter
		payload  map[string]interface{}
		wantKind string
	}{
		{
			name:     "missing event data",
			payload:  map[string]interface{}{"type": "chat", "source": "app", "requestId": "r1"},
			wantKind: "VALIDATION",
		},
		{
			name:     "missing type",
			payload:  map[string]interface{}{"source": "app", "eventData": map[string]interface{}{}, "requestId": "r1"},
			wantKind: "VALIDATION",
		},
		{
			name:     "rate limited",
			limiter:  denyAll{},
			payload:  map[string]interface{}{"type": "chat", "source": "app", "eventData": map[string]interface{}{}, "requestId": "r1"},
			wantKind: "RATE_LIMITED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &stubEngine{}, tt.limiter)
			c := f.connect("conn-1", "user-1", entity.EntityTypeUser)
			drain(t, c)

			submit(t, f, c, tt.payload)
			f.dispatcher.Wait()

			got := drain(t, c)
			require.Len(t, got, 1)
			assert.Equal(t, dto.MessageEventReceived, got[0].Type)
			assert.Equal(t, false, got[0].Data["success"])
			assert.Equal(t, tt.wantKind, got[0].Data["kind"])
			assert.Equal(t, "r1", got[0].Data["requestId"])
			assert.NotEmpty(t, got[0].Data["error"])
			assert.Nil(t, got[0].Data["eventId"])

			assert.Equal(t, 0, f.events.GetStats(context.Background()).TotalEvents)
		})
	}
}

func TestMalformedAndUnknownFrames(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	c := f.connect("conn-1", "user-1", entity.EntityTypeUser)
	drain(t, c)

	f.dispatcher.HandleMessage(c, []byte("{not json"))
	f.dispatcher.HandleMessage(c, []byte(`{"type":"dance"}`))

	got := drain(t, c)
	require.Equal(t, []string{dto.MessageError, dto.MessageError}, types(got))
	assert.Equal(t, "malformed frame", got[0].Data["message"])
	assert.Equal(t, "unknown message type: dance", got[1].Data["message"])
}

func TestPingAnswersPong(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	c := f.connect("conn-1", "dev-1", entity.EntityTypeDevice)
	drain(t, c)

	f.dispatcher.HandleMessage(c, []byte(`{"type":"ping"}`))

	got := drain(t, c)
	require.Len(t, got, 1)
	assert.Equal(t, dto.MessagePong, got[0].Type)
	assert.NotEmpty(t, got[0].Data["timestamp"])
}

func TestOnDisconnectEndsSession(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	c := f.connect("conn-1", "dev-1", entity.EntityTypeDevice)

	f.dispatcher.OnDisconnect(c)

	_, ok := f.sessions.GetSessionByConnection("conn-1")
	assert.False(t, ok)
	assert.Equal(t, 0, f.hub.RoomSize(TypeRoom(entity.EntityTypeDevice)))
	assert.Equal(t, 0, f.hub.RoomSize(EntityRoom(entity.EntityTypeDevice, "dev-1")))

	assert.NotPanics(t, func() { f.dispatcher.OnDisconnect(c) })
	assert.False(t, c.enqueue([]byte("late")))
}

func TestProcessingOutlivesDisconnect(t *testing.T) {
	eng := &stubEngine{result: &engine.Result{Success: true, Data: map[string]interface{}{}}}
	f := newFixture(t, eng, nil)
	device := f.connect("conn-d1", "dev-1", entity.EntityTypeDevice)
	user := f.connect("conn-u1", "user-1", entity.EntityTypeUser)
	drain(t, user)

	eng.mu.Lock()
	submit(t, f, device, map[string]interface{}{"type": "command", "source": "dev-1", "eventData": map[string]interface{}{}})
	f.dispatcher.OnDisconnect(device)
	eng.mu.Unlock()
	f.dispatcher.Wait()

	broadcast := drain(t, user)
	require.Len(t, broadcast, 1)
	assert.Equal(t, "COMPLETED", broadcast[0].Data["status"])
}

func TestNotifySettledReachesCreatorAndOppositeType(t *testing.T) {
	f := newFixture(t, &stubEngine{}, nil)
	user := f.connect("conn-u1", "user-1", entity.EntityTypeUser)
	otherUser := f.connect("conn-u2", "user-2", entity.EntityTypeUser)
	device := f.connect("conn-d1", "dev-1", entity.EntityTypeDevice)
	drain(t, user)
	drain(t, otherUser)
	drain(t, device)

	ev := &entity.Event{
		Id:          uuid.New(),
		Status:      entity.EventStatusCompleted,
		CreatedBy:   "user-1",
		CreatorType: entity.EntityTypeUser,
		Response:    map[string]interface{}{"ok": true},
	}
	f.dispatcher.NotifySettled(ev)

	assert.Equal(t, []string{dto.MessageEventCompleted}, types(drain(t, user)))
	assert.Empty(t, drain(t, otherUser))
	assert.Equal(t, []string{dto.MessageEventBroadcast}, types(drain(t, device)))

	f.dispatcher.NotifySettled(&entity.Event{Id: uuid.New(), Status: entity.EventStatusFailed})
	assert.Empty(t, drain(t, device))
}

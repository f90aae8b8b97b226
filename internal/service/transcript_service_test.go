package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completedChat(creatorType entity.EntityType, eventType string) *entity.Event {
	sid := uuid.New()
	done := time.Now()
	return &entity.Event{
		Id:          uuid.New(),
		Type:        eventType,
		Source:      "web",
		Data:        map[string]interface{}{"query": "what time is it"},
		Status:      entity.EventStatusCompleted,
		SessionId:   &sid,
		CreatedBy:   "user-1",
		CreatorType: creatorType,
		Response:    map[string]interface{}{"response_text": "noon", "confidence": 0.9},
		Timestamp:   done.Add(-time.Second),
		CompletedAt: &done,
	}
}

func TestTranscriptRecordPolicy(t *testing.T) {
	failed := completedChat(entity.EntityTypeUser, "chat")
	failed.Status = entity.EventStatusFailed

	tests := []struct {
		name      string
		event     *entity.Event
		wantLines int
	}{
		{"user chat", completedChat(entity.EntityTypeUser, "chat"), 2},
		{"type is case insensitive", completedChat(entity.EntityTypeUser, "Message"), 2},
		{"device event skipped", completedChat(entity.EntityTypeDevice, "chat"), 0},
		{"non chat type skipped", completedChat(entity.EntityTypeUser, "sensor_reading"), 0},
		{"failed event skipped", failed, 0},
		{"nil event", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeTranscriptRepo{}
			svc := NewTranscriptService(repo, logger.NewNopLogger())

			require.NoError(t, svc.Record(context.Background(), tt.event))
			assert.Len(t, repo.lines, tt.wantLines)
		})
	}
}

func TestTranscriptRecordLines(t *testing.T) {
	repo := &fakeTranscriptRepo{}
	svc := NewTranscriptService(repo, logger.NewNopLogger())
	ev := completedChat(entity.EntityTypeUser, "chat")

	require.NoError(t, svc.Record(context.Background(), ev))
	require.Len(t, repo.lines, 2)

	assert.Equal(t, entity.TranscriptRoleUser, repo.lines[0].Role)
	assert.Equal(t, "what time is it", repo.lines[0].Content)
	assert.Equal(t, entity.TranscriptRoleAssistant, repo.lines[1].Role)
	assert.Equal(t, "noon", repo.lines[1].Content)
	assert.Equal(t, ev.Response, repo.lines[1].Metadata)
	for _, line := range repo.lines {
		assert.Equal(t, "user-1", line.UserId)
		assert.Equal(t, ev.Id, line.EventId)
		assert.Equal(t, ev.SessionId, line.SessionId)
	}
}

func TestTranscriptRecordWrapsStoreError(t *testing.T) {
	svc := NewTranscriptService(&fakeTranscriptRepo{err: errors.New("db down")}, logger.NewNopLogger())

	err := svc.Record(context.Background(), completedChat(entity.EntityTypeUser, "chat"))
	assert.ErrorContains(t, err, "failed to persist transcript")
	assert.ErrorContains(t, err, "db down")
}

func TestTranscriptDisabledWithoutStore(t *testing.T) {
	svc := NewTranscriptService(nil, logger.NewNopLogger())

	assert.False(t, svc.Enabled())
	assert.NoError(t, svc.Record(context.Background(), completedChat(entity.EntityTypeUser, "chat")))

	lines, err := svc.History(context.Background(), "user-1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTranscriptHistorySpecs(t *testing.T) {
	repo := &fakeTranscriptRepo{}
	svc := NewTranscriptService(repo, logger.NewNopLogger())
	sid := uuid.New()

	_, err := svc.History(context.Background(), "user-1", &sid, 10_000)
	require.NoError(t, err)

	require.Len(t, repo.specs, 4)
	assert.Equal(t, specification.ByTranscriptOwner{UserID: "user-1"}, repo.specs[0])
	assert.Equal(t, specification.BySessionID{SessionID: sid}, repo.specs[1])
	assert.Equal(t, specification.Pagination{Limit: MaxTranscriptLimit}, repo.specs[3])

	_, err = svc.History(context.Background(), "user-1", nil, 0)
	require.NoError(t, err)
	require.Len(t, repo.specs, 3)
	assert.Equal(t, specification.Pagination{Limit: DefaultTranscriptLimit}, repo.specs[2])
}

func TestPickText(t *testing.T) {
	assert.Equal(t, "b", pickText(map[string]interface{}{"text": "b", "message": "c"}, "query", "text", "message"))
	assert.Equal(t, `{"n":1}`, pickText(map[string]interface{}{"n": 1}, "text"))
	assert.Equal(t, "", pickText(nil, "text"))
}

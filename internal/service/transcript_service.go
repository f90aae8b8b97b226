package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/mapper"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/repository/contract"
	"shyra-hub-be/internal/repository/specification"

	"github.com/google/uuid"
)

const (
	DefaultTranscriptLimit = 50
	MaxTranscriptLimit     = 500
)

// Event types whose exchanges are kept as chat transcripts.
var transcriptEventTypes = map[string]bool{
	"chat":    true,
	"text":    true,
	"message": true,
}

type ITranscriptService interface {
	Enabled() bool
	Record(ctx context.Context, ev *entity.Event) error
	History(ctx context.Context, userId string, sessionId *uuid.UUID, limit int) ([]dto.TranscriptResponse, error)
}

type transcriptService struct {
	repo   contract.TranscriptRepository
	mapper *mapper.TranscriptMapper
	logger logger.ILogger
}

// NewTranscriptService accepts a nil repository, in which case nothing is
// persisted.
func NewTranscriptService(repo contract.TranscriptRepository, log logger.ILogger) ITranscriptService {
	return &transcriptService{
		repo:   repo,
		mapper: mapper.NewTranscriptMapper(),
		logger: log,
	}
}

func (s *transcriptService) Enabled() bool {
	return s.repo != nil
}

// Record stores the user line and the assistant reply of a completed chat
// event submitted by a USER. Anything else is ignored.
func (s *transcriptService) Record(ctx context.Context, ev *entity.Event) error {
	if s.repo == nil || ev == nil {
		return nil
	}
	if ev.Status != entity.EventStatusCompleted || ev.CreatorType != entity.EntityTypeUser || ev.CreatedBy == "" {
		return nil
	}
	if !transcriptEventTypes[strings.ToLower(ev.Type)] {
		return nil
	}

	now := time.Now()
	lines := []*entity.Transcript{
		{
			Id:        uuid.New(),
			UserId:    ev.CreatedBy,
			SessionId: ev.SessionId,
			EventId:   ev.Id,
			Role:      entity.TranscriptRoleUser,
			Content:   pickText(ev.Data, "query", "text", "message"),
			CreatedAt: ev.Timestamp,
		},
		{
			Id:        uuid.New(),
			UserId:    ev.CreatedBy,
			SessionId: ev.SessionId,
			EventId:   ev.Id,
			Role:      entity.TranscriptRoleAssistant,
			Content:   pickText(ev.Response, "response_text", "text", "response", "message"),
			Metadata:  ev.Response,
			CreatedAt: now,
		},
	}

	if err := s.repo.CreateBulk(ctx, lines); err != nil {
		return fmt.Errorf("failed to persist transcript for event %s: %w", ev.Id, err)
	}
	s.logger.Debug("TranscriptService", "Transcript recorded", map[string]interface{}{"event_id": ev.Id, "user_id": ev.CreatedBy})
	return nil
}

func (s *transcriptService) History(ctx context.Context, userId string, sessionId *uuid.UUID, limit int) ([]dto.TranscriptResponse, error) {
	if s.repo == nil {
		return []dto.TranscriptResponse{}, nil
	}
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	if limit > MaxTranscriptLimit {
		limit = MaxTranscriptLimit
	}

	specs := []specification.Specification{specification.ByTranscriptOwner{UserID: userId}}
	if sessionId != nil {
		specs = append(specs, specification.BySessionID{SessionID: *sessionId})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)

	lines, err := s.repo.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	return s.mapper.ToResponses(lines), nil
}

// pickText returns the first non-empty string under keys, or the JSON of m.
func pickText(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	if len(m) == 0 {
		return ""
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(raw)
}

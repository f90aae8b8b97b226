package mapper

import (
	"encoding/json"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/model"

	"gorm.io/datatypes"
)

type TranscriptMapper struct{}

func NewTranscriptMapper() *TranscriptMapper {
	return &TranscriptMapper{}
}

func (m *TranscriptMapper) ToModel(t *entity.Transcript) *model.ChatTranscript {
	if t == nil {
		return nil
	}
	var meta datatypes.JSON
	if t.Metadata != nil {
		if raw, err := json.Marshal(t.Metadata); err == nil {
			meta = datatypes.JSON(raw)
		}
	}
	return &model.ChatTranscript{
		Id:        t.Id,
		UserId:    t.UserId,
		SessionId: t.SessionId,
		EventId:   t.EventId,
		Role:      t.Role,
		Content:   t.Content,
		Metadata:  meta,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TranscriptMapper) ToEntity(t *model.ChatTranscript) *entity.Transcript {
	if t == nil {
		return nil
	}
	var meta map[string]interface{}
	if len(t.Metadata) > 0 {
		_ = json.Unmarshal(t.Metadata, &meta)
	}
	return &entity.Transcript{
		Id:        t.Id,
		UserId:    t.UserId,
		SessionId: t.SessionId,
		EventId:   t.EventId,
		Role:      t.Role,
		Content:   t.Content,
		Metadata:  meta,
		CreatedAt: t.CreatedAt,
	}
}

func (m *TranscriptMapper) ToEntities(models []*model.ChatTranscript) []*entity.Transcript {
	out := make([]*entity.Transcript, len(models))
	for i, t := range models {
		out[i] = m.ToEntity(t)
	}
	return out
}

func (m *TranscriptMapper) ToResponses(items []*entity.Transcript) []dto.TranscriptResponse {
	out := make([]dto.TranscriptResponse, 0, len(items))
	for _, t := range items {
		out = append(out, dto.TranscriptResponse{
			Id:        t.Id,
			SessionId: t.SessionId,
			EventId:   t.EventId,
			Role:      t.Role,
			Content:   t.Content,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}

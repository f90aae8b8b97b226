package mapper

import (
	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
)

type EventMapper struct{}

func NewEventMapper() *EventMapper {
	return &EventMapper{}
}

func (m *EventMapper) ToStatusResponse(e *entity.Event) *dto.EventStatusResponse {
	if e == nil {
		return nil
	}
	return &dto.EventStatusResponse{
		EventId:     e.Id,
		Type:        e.Type,
		Source:      e.Source,
		Status:      string(e.Status),
		Error:       e.Error,
		Timestamp:   e.Timestamp,
		UpdatedAt:   e.UpdatedAt,
		CompletedAt: e.CompletedAt,
		FailedAt:    e.FailedAt,
	}
}

func (m *EventMapper) ToSyncResponse(e *entity.Event) *dto.SyncEventResponse {
	if e == nil {
		return nil
	}
	res := &dto.SyncEventResponse{
		EventId: e.Id,
		Status:  string(e.Status),
	}
	switch e.Status {
	case entity.EventStatusCompleted:
		res.Response = e.Response
	case entity.EventStatusFailed:
		res.Error = e.Error
	}
	return res
}

func (m *EventMapper) ToHistory(items []entity.EventSummary) []dto.EventHistoryItem {
	out := make([]dto.EventHistoryItem, 0, len(items))
	for _, s := range items {
		out = append(out, dto.EventHistoryItem{
			EventId:   s.Id,
			Type:      s.Type,
			Source:    s.Source,
			Status:    string(s.Status),
			CreatedBy: s.CreatedBy,
			Timestamp: s.Timestamp,
		})
	}
	return out
}

func (m *EventMapper) ToStatsResponse(s entity.EventStats) *dto.EventStatsResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return &dto.EventStatsResponse{
		TotalEvents: s.Total,
		ByStatus:    byStatus,
		HistorySize: s.HistorySize,
	}
}

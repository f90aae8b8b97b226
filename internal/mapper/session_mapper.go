package mapper

import (
	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/entity"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

func (m *SessionMapper) ToStatsResponse(s entity.SessionStats) *dto.SessionStatsResponse {
	sessions := make([]dto.SessionInfo, 0, len(s.Sessions))
	for _, sess := range s.Sessions {
		sessions = append(sessions, dto.SessionInfo{
			SessionId:    sess.Id,
			EntityId:     sess.EntityId,
			EntityType:   string(sess.EntityType),
			CreatedAt:    sess.CreatedAt,
			LastActivity: sess.LastActivity,
		})
	}
	return &dto.SessionStatsResponse{
		TotalSessions:  s.TotalSessions,
		UniqueEntities: s.UniqueEntities,
		Sessions:       sessions,
	}
}

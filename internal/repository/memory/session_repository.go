package memory

import (
	"sync"
	"time"

	"shyra-hub-be/internal/entity"

	"github.com/google/uuid"
)

// SessionRepository indexes live sessions by id, by connection handle and by
// entity ("TYPE:id"). The three maps are only ever touched together under mu.
type SessionRepository struct {
	mu           sync.RWMutex
	byId         map[uuid.UUID]*entity.Session
	byConnection map[string]uuid.UUID
	byEntity     map[string][]uuid.UUID

	now func() time.Time
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byId:         make(map[uuid.UUID]*entity.Session),
		byConnection: make(map[string]uuid.UUID),
		byEntity:     make(map[string][]uuid.UUID),
		now:          time.Now,
	}
}

// CreateSession always succeeds. A connection handle maps to at most one
// session, so any session already bound to connectionId is ended first.
func (r *SessionRepository) CreateSession(entityId string, entityType entity.EntityType, connectionId string, metadata map[string]interface{}) *entity.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byConnection[connectionId]; ok {
		r.removeLocked(prev)
	}

	now := r.now()
	s := &entity.Session{
		Id:           uuid.New(),
		EntityId:     entityId,
		EntityType:   entityType,
		ConnectionId: connectionId,
		Metadata:     metadata,
		CreatedAt:    now,
		LastActivity: now,
	}
	r.byId[s.Id] = s
	r.byConnection[connectionId] = s.Id
	key := entityKey(entityType, entityId)
	r.byEntity[key] = append(r.byEntity[key], s.Id)

	return s.Clone()
}

func (r *SessionRepository) GetSession(id uuid.UUID) (*entity.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byId[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (r *SessionRepository) GetSessionByConnection(connectionId string) (*entity.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byConnection[connectionId]
	if !ok {
		return nil, false
	}
	return r.byId[id].Clone(), true
}

// GetSessionsForEntity lists the sessions of one entity. A USER and a DEVICE
// sharing an id are different entities.
func (r *SessionRepository) GetSessionsForEntity(entityType entity.EntityType, entityId string) []*entity.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byEntity[entityKey(entityType, entityId)]
	out := make([]*entity.Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.byId[id]; ok {
			out = append(out, s.Clone())
		}
	}
	return out
}

func (r *SessionRepository) UpdateActivity(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byId[id]; ok {
		s.LastActivity = r.now()
	}
}

// EndSession reports whether a session was actually removed.
func (r *SessionRepository) EndSession(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(id)
}

func (r *SessionRepository) EndSessionByConnection(connectionId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byConnection[connectionId]
	if !ok {
		return false
	}
	return r.removeLocked(id)
}

// CleanupInactiveSessions ends every session whose last activity is not
// after now-timeout. A zero timeout therefore ends all sessions.
func (r *SessionRepository) CleanupInactiveSessions(timeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-timeout)
	var stale []uuid.UUID
	for id, s := range r.byId {
		if !s.LastActivity.After(cutoff) {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		r.removeLocked(id)
	}
	return len(stale)
}

func (r *SessionRepository) GetStats() entity.SessionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*entity.Session, 0, len(r.byId))
	for _, s := range r.byId {
		sessions = append(sessions, s.Clone())
	}
	return entity.SessionStats{
		TotalSessions:  len(r.byId),
		UniqueEntities: len(r.byEntity),
		Sessions:       sessions,
	}
}

func (r *SessionRepository) removeLocked(id uuid.UUID) bool {
	s, ok := r.byId[id]
	if !ok {
		return false
	}
	delete(r.byId, id)
	if cur, ok := r.byConnection[s.ConnectionId]; ok && cur == id {
		delete(r.byConnection, s.ConnectionId)
	}

	key := entityKey(s.EntityType, s.EntityId)
	ids := r.byEntity[key]
	for i, sid := range ids {
		if sid == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.byEntity, key)
	} else {
		r.byEntity[key] = ids
	}
	return true
}

func entityKey(entityType entity.EntityType, entityId string) string {
	return string(entityType) + ":" + entityId
}

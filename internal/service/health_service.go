package service

import (
	"context"
	"time"

	"shyra-hub-be/internal/dto"
	"shyra-hub-be/internal/repository/memory"

	"github.com/patrickmn/go-cache"
)

const (
	engineHealthKey = "engine_healthy"
	engineHealthTTL = 10 * time.Second
)

// EngineProbe is satisfied by the engine client.
type EngineProbe interface {
	HealthCheck(ctx context.Context) bool
}

type IHealthService interface {
	Check(ctx context.Context) *dto.HealthResponse
}

type healthService struct {
	probe    EngineProbe
	sessions *memory.SessionRepository
	events   *memory.EventRepository
	cache    *cache.Cache
}

func NewHealthService(probe EngineProbe, sessions *memory.SessionRepository, events *memory.EventRepository) IHealthService {
	return &healthService{
		probe:    probe,
		sessions: sessions,
		events:   events,
		cache:    cache.New(engineHealthTTL, time.Minute),
	}
}

// Check never fails; an unhealthy engine degrades the reported status.
func (s *healthService) Check(ctx context.Context) *dto.HealthResponse {
	healthy := s.engineHealthy(ctx)

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	return &dto.HealthResponse{
		Status:         status,
		EngineHealthy:  healthy,
		ActiveSessions: s.sessions.GetStats().TotalSessions,
		TotalEvents:    s.events.Stats().Total,
		CheckedAt:      time.Now(),
	}
}

func (s *healthService) engineHealthy(ctx context.Context) bool {
	if v, found := s.cache.Get(engineHealthKey); found {
		return v.(bool)
	}
	healthy := s.probe.HealthCheck(ctx)
	s.cache.Set(engineHealthKey, healthy, cache.DefaultExpiration)
	return healthy
}

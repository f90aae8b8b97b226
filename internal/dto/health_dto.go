package dto

import "time"

type HealthResponse struct {
	Status         string    `json:"status"`
	EngineHealthy  bool      `json:"engine_healthy"`
	ActiveSessions int       `json:"active_sessions"`
	TotalEvents    int       `json:"total_events"`
	CheckedAt      time.Time `json:"checked_at"`
}

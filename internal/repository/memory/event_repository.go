package memory

import (
	"errors"
	"sort"
	"sync"

	"shyra-hub-be/internal/entity"

	"github.com/google/uuid"
)

const DefaultHistoryCapacity = 100

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrInvalidTransition = errors.New("invalid event status transition")
)

// EventRepository is the process-wide event registry. One mutex covers the
// map and the history ring so each operation is atomic as a whole.
type EventRepository struct {
	mu              sync.RWMutex
	events          map[uuid.UUID]*entity.Event
	history         []entity.EventSummary // most-recent-first
	historyCapacity int
}

func NewEventRepository(historyCapacity int) *EventRepository {
	if historyCapacity <= 0 {
		historyCapacity = DefaultHistoryCapacity
	}
	return &EventRepository{
		events:          make(map[uuid.UUID]*entity.Event),
		history:         make([]entity.EventSummary, 0, historyCapacity),
		historyCapacity: historyCapacity,
	}
}

func (r *EventRepository) Insert(event *entity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events[event.Id] = event.Clone()

	r.history = append(r.history, entity.EventSummary{})
	copy(r.history[1:], r.history)
	r.history[0] = event.Summary()
	if len(r.history) > r.historyCapacity {
		r.history = r.history[:r.historyCapacity]
	}
}

func (r *EventRepository) Get(id uuid.UUID) (*entity.Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.events[id]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Transition moves the event to next and applies mutate under the same lock.
// On an illegal transition the current record is returned untouched together
// with ErrInvalidTransition.
func (r *EventRepository) Transition(id uuid.UUID, next entity.EventStatus, mutate func(*entity.Event)) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.events[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	if !e.Status.CanTransitionTo(next) {
		return e.Clone(), ErrInvalidTransition
	}

	e.Status = next
	if mutate != nil {
		mutate(e)
	}

	for i := range r.history {
		if r.history[i].Id == id {
			r.history[i].Status = next
			break
		}
	}
	return e.Clone(), nil
}

// History returns up to limit summaries, newest first.
func (r *EventRepository) History(limit int) []entity.EventSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]entity.EventSummary, limit)
	copy(out, r.history[:limit])
	return out
}

func (r *EventRepository) Stats() entity.EventStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := entity.EventStats{
		Total: len(r.events),
		ByStatus: map[entity.EventStatus]int{
			entity.EventStatusPending:    0,
			entity.EventStatusProcessing: 0,
			entity.EventStatusCompleted:  0,
			entity.EventStatusFailed:     0,
		},
		HistorySize: len(r.history),
	}
	for _, e := range r.events {
		stats.ByStatus[e.Status]++
	}
	return stats
}

// RetainNewest keeps the keep most recently created events regardless of
// status and returns how many were discarded.
func (r *EventRepository) RetainNewest(keep int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if len(r.events) <= keep {
		return 0
	}

	all := make([]*entity.Event, 0, len(r.events))
	for _, e := range r.events {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})

	removed := 0
	for _, e := range all[keep:] {
		delete(r.events, e.Id)
		removed++
	}
	return removed
}

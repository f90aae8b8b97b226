package service

import (
	"context"
	"sync"

	"shyra-hub-be/internal/entity"
	"shyra-hub-be/internal/repository/specification"
	"shyra-hub-be/pkg/engine"
	"shyra-hub-be/pkg/events"
	"shyra-hub-be/pkg/ratelimit"
)

type fakeProcessor struct {
	mu      sync.Mutex
	result  *engine.Result
	err     error
	calls   []engine.EventPayload
	retries []int
}

func (f *fakeProcessor) ProcessEventWithRetry(ctx context.Context, payload engine.EventPayload, maxRetries int) (*engine.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, payload)
	f.retries = append(f.retries, maxRetries)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	codes []string
	data  []map[string]interface{}
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, event.EventType())
	p.data = append(p.data, event.Payload())
	return nil
}

func unreachable() error {
	return &engine.Error{Kind: engine.KindUnreachable, Message: "inference engine unreachable at http://engine/process"}
}

type fakeQueue struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (q *fakeQueue) Publish(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, payload)
	return nil
}

type denyLimiter struct{ limit int }

func (l denyLimiter) Allow(ctx context.Context, key string) ratelimit.Decision {
	return ratelimit.Decision{Allowed: false, Count: l.limit + 1, Limit: l.limit}
}

type fakeTranscriptRepo struct {
	mu    sync.Mutex
	lines []*entity.Transcript
	specs []specification.Specification
	err   error
}

func (r *fakeTranscriptRepo) CreateBulk(ctx context.Context, lines []*entity.Transcript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.lines = append(r.lines, lines...)
	return nil
}

func (r *fakeTranscriptRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Transcript, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = specs
	return r.lines, nil
}

func (r *fakeTranscriptRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.lines)), nil
}

type countingProbe struct {
	mu      sync.Mutex
	healthy bool
	calls   int
}

func (p *countingProbe) HealthCheck(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.healthy
}

type recordingNotifier struct {
	mu      sync.Mutex
	settled []*entity.Event
}

func (n *recordingNotifier) NotifySettled(ev *entity.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, ev)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.settled)
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxRetries  = 3
	DefaultTimeout     = 30 * time.Second
	HealthCheckTimeout = 5 * time.Second

	defaultProcessPath = "/process"
	healthPath         = "/health"
	maxErrorBodyLength = 512
)

// EventPayload is the body POSTed to the engine for one event.
type EventPayload struct {
	EventType string                 `json:"event_type"`
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID *string                `json:"session_id"`
}

type Result struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data"`
}

// Logger is the subset of the application logger the client needs.
type Logger interface {
	Warn(module, message string, details map[string]interface{})
}

// RetryPolicy describes the exponential schedule between attempts:
// delay(n) = min(Base * 2^(n-1), Max).
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Base: time.Second, Max: 5 * time.Second}

func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	return b
}

type Option func(*Client)

func WithProcessPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.processPath = path
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		if policy.Base > 0 && policy.Max > 0 {
			c.retry = policy
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithLogger(l Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithAttemptObserver registers a callback invoked after every attempt with
// its error, nil on success.
func WithAttemptObserver(fn func(err error)) Option {
	return func(c *Client) {
		c.observe = fn
	}
}

// Client calls the external inference engine. It holds only static configuration.
type Client struct {
	baseURL     string
	processPath string
	timeout     time.Duration
	retry       RetryPolicy
	httpClient  *http.Client
	logger      Logger
	observe     func(err error)
	tracer      trace.Tracer
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		processPath: defaultProcessPath,
		timeout:     DefaultTimeout,
		retry:       DefaultRetryPolicy,
		httpClient:  &http.Client{},
		tracer:      otel.Tracer("shyra-hub-be/engine"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) endpoint() string {
	return c.baseURL + c.processPath
}

// ProcessEvent performs exactly one request, bounded by the configured timeout.
func (c *Client) ProcessEvent(ctx context.Context, payload EventPayload) (*Result, error) {
	ctx, span := c.tracer.Start(ctx, "engine.process_event", trace.WithAttributes(
		attribute.String("event.type", payload.EventType),
		attribute.String("event.source", payload.Source),
	))
	defer span.End()

	result, err := c.doProcess(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (c *Client) doProcess(ctx context.Context, payload EventPayload) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindCommunication, Message: fmt.Sprintf("failed to encode event payload: %v", err), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, classify(err, c.endpoint(), c.timeout)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(err, c.endpoint(), c.timeout)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err, c.endpoint(), c.timeout)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newRemoteError(resp.StatusCode, remoteMessage(respBody, resp.Status))
	}

	return &Result{Success: true, Data: responseData(respBody)}, nil
}

// ProcessEventWithRetry makes up to maxRetries attempts and returns the first
// success. When every attempt fails the error of the last attempt is returned.
func (c *Client) ProcessEventWithRetry(ctx context.Context, payload EventPayload, maxRetries int) (*Result, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	attempt := 0
	operation := func() (*Result, error) {
		attempt++
		result, err := c.ProcessEvent(ctx, payload)
		if c.observe != nil {
			c.observe(err)
		}
		if err != nil && c.logger != nil {
			c.logger.Warn("EngineClient", "Engine attempt failed", map[string]interface{}{
				"attempt":     attempt,
				"max_retries": maxRetries,
				"event_type":  payload.EventType,
				"error":       err.Error(),
			})
		}
		return result, err
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.retry.newBackOff()),
		backoff.WithMaxTries(uint(maxRetries)),
		backoff.WithMaxElapsedTime(0),
	)
}

// HealthCheck reports whether GET /health answers 200 within five seconds.
func (c *Client) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// responseData unwraps {"response": {...}}; any other JSON object is returned whole.
func responseData(body []byte) map[string]interface{} {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return map[string]interface{}{}
		}
		return map[string]interface{}{"text": text}
	}
	if inner, ok := decoded["response"].(map[string]interface{}); ok {
		return inner
	}
	if decoded == nil {
		return map[string]interface{}{}
	}
	return decoded
}

func remoteMessage(body []byte, status string) string {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if msg, ok := decoded[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return status
	}
	if len(text) > maxErrorBodyLength {
		text = text[:maxErrorBodyLength]
	}
	return text
}

package bootstrap

import (
	"context"
	"log"
	"time"

	"shyra-hub-be/internal/config"
	"shyra-hub-be/internal/controller"
	"shyra-hub-be/internal/handler"
	"shyra-hub-be/internal/metrics"
	"shyra-hub-be/internal/pkg/logger"
	"shyra-hub-be/internal/pkg/serverutils"
	"shyra-hub-be/internal/repository/contract"
	"shyra-hub-be/internal/repository/implementation"
	"shyra-hub-be/internal/repository/memory"
	"shyra-hub-be/internal/service"
	"shyra-hub-be/internal/websocket"
	"shyra-hub-be/pkg/auth"
	"shyra-hub-be/pkg/engine"
	pktNats "shyra-hub-be/pkg/nats"
	"shyra-hub-be/pkg/ratelimit"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const shutdownGrace = 30 * time.Second

type Container struct {
	// Controllers
	EventController      controller.IEventController
	SessionController    controller.ISessionController
	TranscriptController controller.ITranscriptController
	HealthController     controller.IHealthController

	// Realtime
	RealtimeHandler *handler.RealtimeHandler
	Dispatcher      *websocket.Dispatcher
	Hub             *websocket.Hub

	JwtMiddleware fiber.Handler

	// Core services (exposed for main.go and tests)
	EventService   service.IEventService
	WorkerService  service.IWorkerService
	SessionRepo    *memory.SessionRepository
	EngineClient   *engine.Client
	TokenManager   *auth.JWTManager
	Logger         logger.ILogger
	RealtimeLogger logger.ILogger

	cfg     *config.Config
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	rdb     *redis.Client
}

// NewContainer wires every component. db may be nil, which disables the
// transcript store; NATS and Redis are optional in the same way.
func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	rtLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogPath)

	// Processing queue
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// Lifecycle bus
	var lifecycle service.LifecyclePublisher
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		pub, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = pub
			lifecycle = pub
		}
	}

	// Redis
	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if rdb != nil && cfg.Hub.SubmitRateLimit > 0 {
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.Hub.SubmitRateLimit, cfg.Hub.SubmitRateWindow, sysLogger)
	}

	tokenManager := auth.NewJWTManager(cfg.App.JwtSecret)
	jwtMiddleware := serverutils.NewJwtMiddleware(tokenManager)

	engineClient := engine.NewClient(cfg.Engine.BaseURL,
		engine.WithProcessPath(cfg.Engine.ProcessPath),
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithRetryPolicy(engine.RetryPolicy{Base: cfg.Engine.BackoffBase, Max: cfg.Engine.BackoffMax}),
		engine.WithLogger(sysLogger),
		engine.WithAttemptObserver(observeEngineAttempt),
	)

	// In-memory registries
	eventRepo := memory.NewEventRepository(cfg.Hub.HistoryCapacity)
	sessionRepo := memory.NewSessionRepository()

	var transcriptRepo contract.TranscriptRepository
	if db != nil {
		transcriptRepo = implementation.NewTranscriptRepository(db)
	}

	// Services
	eventService := service.NewEventService(eventRepo, engineClient, lifecycle, sysLogger, service.EventServiceConfig{
		MaxRetries:      cfg.Engine.MaxRetries,
		Retention:       cfg.Hub.EventRetention,
		HistoryCapacity: cfg.Hub.HistoryCapacity,
	})
	transcriptService := service.NewTranscriptService(transcriptRepo, sysLogger)
	publisherService := service.NewPublisherService(cfg.Hub.ProcessTopic, pubSub)
	healthService := service.NewHealthService(engineClient, sessionRepo, eventRepo)

	// Realtime
	hub := websocket.NewHub(rdb, rtLogger)
	dispatcher := websocket.NewDispatcher(hub, sessionRepo, eventService, transcriptService, limiter, rtLogger)
	workerService := service.NewWorkerService(pubSub, cfg.Hub.ProcessTopic, eventService, dispatcher, sysLogger)
	submissionService := service.NewSubmissionService(eventService, publisherService, workerService, transcriptService, limiter, sysLogger)

	return &Container{
		EventController:      controller.NewEventController(eventService, submissionService),
		SessionController:    controller.NewSessionController(sessionRepo),
		TranscriptController: controller.NewTranscriptController(transcriptService),
		HealthController:     controller.NewHealthController(healthService),

		RealtimeHandler: handler.NewRealtimeHandler(dispatcher, tokenManager, rtLogger),
		Dispatcher:      dispatcher,
		Hub:             hub,

		JwtMiddleware: jwtMiddleware,

		EventService:   eventService,
		WorkerService:  workerService,
		SessionRepo:    sessionRepo,
		EngineClient:   engineClient,
		TokenManager:   tokenManager,
		Logger:         sysLogger,
		RealtimeLogger: rtLogger,

		cfg:     cfg,
		pubSub:  pubSub,
		natsPub: natsPub,
		rdb:     rdb,
	}
}

func observeEngineAttempt(err error) {
	outcome := "success"
	if err != nil {
		outcome = string(engine.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	metrics.EngineAttempts.WithLabelValues(outcome).Inc()
}

// StartBackground subscribes the processing worker and starts the hub's
// cluster relay. Both stop when ctx is done.
func (c *Container) StartBackground(ctx context.Context) error {
	if err := c.WorkerService.Consume(ctx); err != nil {
		return err
	}
	go c.Hub.Run(ctx)
	return nil
}

// StartMaintenance runs the retention and inactivity sweeps every
// SweepInterval until ctx is done.
func (c *Container) StartMaintenance(ctx context.Context) {
	interval := c.cfg.Hub.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunMaintenance(ctx)
			}
		}
	}()
}

// RunMaintenance performs one sweep. Results are only logged.
func (c *Container) RunMaintenance(ctx context.Context) {
	evicted := c.EventService.Cleanup(ctx)
	expired := c.SessionRepo.CleanupInactiveSessions(c.cfg.Hub.SessionTimeout)
	if expired > 0 {
		metrics.SessionsExpired.Add(float64(expired))
	}
	metrics.ActiveSessions.Set(float64(c.SessionRepo.GetStats().TotalSessions))

	c.Logger.Info("Maintenance", "Sweep finished", map[string]interface{}{
		"events_evicted":   evicted,
		"sessions_expired": expired,
	})
}

// Close releases external connections. In-flight realtime and queued
// submissions get up to shutdownGrace to settle first.
func (c *Container) Close() {
	done := make(chan struct{})
	go func() {
		c.Dispatcher.Wait()
		c.WorkerService.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.Printf("[WARN] Submissions still in flight after %s", shutdownGrace)
	}

	if err := c.pubSub.Close(); err != nil {
		log.Printf("[WARN] Failed to close processing queue: %v", err)
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		if err := c.rdb.Close(); err != nil {
			log.Printf("[WARN] Failed to close Redis: %v", err)
		}
	}
	_ = c.RealtimeLogger.Sync()
	_ = c.Logger.Sync()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cfhttp "github.com/scrumix/scrumix/internal/adapter/http"
	cfnats "github.com/scrumix/scrumix/internal/adapter/nats"
	"github.com/scrumix/scrumix/internal/adapter/natskv"
	sxotel "github.com/scrumix/scrumix/internal/adapter/otel"
	"github.com/scrumix/scrumix/internal/adapter/ristretto"
	"github.com/scrumix/scrumix/internal/adapter/tiered"
	"github.com/scrumix/scrumix/internal/adapter/ws"
	"github.com/scrumix/scrumix/internal/config"
	"github.com/scrumix/scrumix/internal/domain/user"
	"github.com/scrumix/scrumix/internal/logger"
	"github.com/scrumix/scrumix/internal/middleware"
	"github.com/scrumix/scrumix/internal/port/cache"
	"github.com/scrumix/scrumix/internal/port/messagequeue"
	"github.com/scrumix/scrumix/internal/resilience"
	"github.com/scrumix/scrumix/internal/service"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

func runServer(parent context.Context, cfg *config.Config) error {
	log, closer := logger.New(cfg.Logging)
	defer closer.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"store", cfg.Store.Backend,
		"log_level", cfg.Logging.Level,
		"auth_enabled", cfg.Auth.Enabled,
		"nats_enabled", cfg.NATS.Enabled,
	)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// --- Infrastructure ---

	otelShutdown, err := sxotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := sxotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	sh, err := openStore(ctx, cfg, cfg.Postgres.AutoMigrate)
	if err != nil {
		return err
	}
	defer sh.close()
	store := sh.store

	// NATS is optional: without it events are delivered in-process.
	var queue *cfnats.Queue
	if cfg.NATS.Enabled {
		queue, err = retryConnect(ctx, "nats", natsRetryWindow, func() (*cfnats.Queue, error) {
			return cfnats.Connect(ctx, cfg.NATS.URL, cfg.NATS.Stream)
		})
		if err != nil {
			slog.Warn("nats unavailable, falling back to in-process events", "error", err)
			queue = nil
		} else {
			defer func() {
				if err := queue.Drain(); err != nil {
					slog.Warn("nats drain", "error", err)
				}
			}()
		}
	}

	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB)
	if err != nil {
		return fmt.Errorf("l1 cache: %w", err)
	}
	defer func() {
		hits, misses := l1.Stats()
		log.Info("l1 cache closed", "hits", hits, "misses", misses)
		l1.Close()
	}()

	var l2 cache.Cache
	if queue != nil {
		kv, err := queue.KeyValue(ctx, cfg.Cache.L2Bucket, cfg.Cache.L2TTL)
		if err != nil {
			slog.Warn("l2 cache unavailable, using l1 only", "error", err)
		} else {
			l2 = natskv.New(kv)
		}
	}
	sharedCache := tiered.New(l1, l2, time.Minute)

	// --- Services ---

	hub := ws.NewHub(wsUser, strings.Split(cfg.Server.CORSOrigin, ","))
	defer func() {
		hub.BroadcastEvent(context.Background(), ws.EventServerShutdown, map[string]string{"reason": "shutdown"})
		hub.Close()
	}()

	var mq messagequeue.Queue
	if queue != nil {
		mq = queue
	}
	breaker := resilience.NewBreaker("event-publisher", cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	events := service.NewEventPublisher(mq, breaker, metrics)
	relay := service.NewEventRelay(store, hub)
	if mq != nil {
		cancelRelay, err := relay.Subscribe(ctx, mq)
		if err != nil {
			return fmt.Errorf("event relay: %w", err)
		}
		defer cancelRelay()
	} else {
		events.SetLocalHandler(relay.Handle)
	}

	authSvc := service.NewAuthService(store, &cfg.Auth)
	notifySvc := service.NewNotificationService(store, events, cfg.Notifications, metrics)
	velocitySvc := service.NewVelocityService(store, sharedCache, events, cfg.Velocity, metrics)
	backlogSvc := service.NewBacklogService(store, velocitySvc, metrics)
	projectSvc := service.NewProjectService(store, notifySvc)
	sprintSvc := service.NewSprintService(store, backlogSvc, velocitySvc, notifySvc)

	if cfg.Auth.Enabled {
		if err := authSvc.SeedDefaultAdmin(ctx); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	} else {
		// The synthetic admin needs an account row to own projects.
		if err := authSvc.EnsureUser(ctx, &user.User{
			ID:       middleware.DefaultUserID,
			Email:    "admin@localhost",
			Username: "admin",
			FullName: "Admin",
			Role:     user.RoleAdmin,
			Enabled:  true,
		}); err != nil {
			return fmt.Errorf("ensure default user: %w", err)
		}
		slog.Warn("authentication disabled, all requests act as the default admin")
	}

	// --- Background loops ---

	authSvc.StartTokenCleanup(ctx, cfg.Auth.TokenPurgeInterval)
	notifySvc.StartPurge(ctx, cfg.Notifications.PurgeInterval)

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst).WithKeyFunc(middleware.ByUserOrIP)
	authLimiter := middleware.NewRateLimiter(cfg.Rate.AuthRequestsPerSecond, cfg.Rate.AuthBurst)
	limiter.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	authLimiter.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)

	// --- HTTP ---

	handlers := &cfhttp.Handlers{
		Auth:          authSvc,
		Projects:      projectSvc,
		Sprints:       sprintSvc,
		Backlogs:      backlogSvc,
		Velocity:      velocitySvc,
		Tasks:         service.NewTaskService(store),
		Meetings:      service.NewMeetingService(store),
		Docs:          service.NewDocumentationService(store),
		Tags:          service.NewTagService(store),
		Notifications: notifySvc,
		DB:            store,
		Queue:         mq,
		EventBreaker:  breaker,
		Cookies:       cfg.Auth.Cookie,
		AccessExpiry:  cfg.Auth.AccessTokenExpiry,
		RefreshExpiry: cfg.Auth.RefreshTokenExpiry,
		BodyLimit:     cfg.Server.BodyLimit,
	}
	if mq != nil {
		handlers.Queue = mq
	}

	serviceName := ""
	if cfg.OTEL.Enabled {
		serviceName = cfg.OTEL.ServiceName
	}
	router := cfhttp.NewRouter(handlers, cfhttp.RouterConfig{
		CORSOrigin:       cfg.Server.CORSOrigin,
		RequestTimeout:   cfg.Server.RequestTimeout,
		AuthEnabled:      cfg.Auth.Enabled,
		Validator:        authSvc,
		RateLimiter:      limiter,
		AuthLimiter:      authLimiter,
		IdempotencyCache: sharedCache,
		IdempotencyTTL:   cfg.Idempotency.TTL,
		ServiceName:      serviceName,
		WebSocket:        hub.HandleWS,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(done)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}
	slog.Info("shutting down server")

	shutdownCtx, c := context.WithTimeout(context.Background(), 10*time.Second)
	defer c()
	cancel()
	return srv.Shutdown(shutdownCtx)
}

// wsUser resolves the websocket client from the auth middleware context.
func wsUser(r *http.Request) (string, bool) {
	u := middleware.UserFromContext(r.Context())
	if u == nil {
		return "", false
	}
	return u.ID, true
}

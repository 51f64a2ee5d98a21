package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"

	"github.com/Tonic56/coinfolio/adapters/kaffka"
	"github.com/Tonic56/coinfolio/internal/config"
	httphandler "github.com/Tonic56/coinfolio/internal/handler/http"
	"github.com/Tonic56/coinfolio/internal/identity"
	"github.com/Tonic56/coinfolio/internal/market"
	"github.com/Tonic56/coinfolio/internal/repository"
	"github.com/Tonic56/coinfolio/internal/service"
	"github.com/Tonic56/coinfolio/internal/session"
	"github.com/Tonic56/coinfolio/internal/websocket"
	"github.com/Tonic56/coinfolio/storage/postgres"
	"github.com/Tonic56/coinfolio/storage/redis"
	"github.com/gin-gonic/gin"
)

type App struct {
	cfg         *config.Config
	log         *slog.Logger
	httpServer  *http.Server
	storage     *postgres.Storage
	redisClient *redis.Client
	wsManager   *websocket.Manager
	producer    *kaffka.Producer

	wg       sync.WaitGroup
	stopOnce sync.Once
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(log *slog.Logger, cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.New(log, cfg.Database)
	if err != nil {
		panic(fmt.Errorf("failed to init storage: %w", err))
	}

	redisClient := redis.New(log, cfg.Redis)
	if err := redisClient.Ping(ctx); err != nil {
		log.Warn("redis is unreachable, market cache and live scores are degraded", "error", err)
	}

	var (
		activity service.ActivityRecorder = service.NopRecorder()
		producer *kaffka.Producer
	)
	if len(cfg.Kafka.Brokers) > 0 {
		producer = kaffka.NewProducer(log, cfg.Kafka)
		activity = producer
	} else {
		log.Info("kafka brokers not configured, activity stream disabled")
	}

	marketClient := market.NewClient(cfg.Market)
	feed := market.NewFeed(log, marketClient, redisClient, cfg.Redis.CacheTTL)

	transactionsRepo := repository.NewTransactionsRepository(storage.DB)
	profilesRepo := repository.NewProfilesRepository(storage.DB)
	postsRepo := repository.NewPostsRepository(storage.DB)
	reactionsRepo := repository.NewReactionsRepository(storage.DB)

	transactionsService := service.NewTransactionsService(transactionsRepo, marketClient, feed, activity, cfg.Location())
	profilesService := service.NewProfilesService(profilesRepo, activity)
	reactionsService := service.NewReactionsService(log, reactionsRepo, postsRepo, redisClient, activity)
	postsService := service.NewPostsService(postsRepo, reactionsRepo, reactionsService, activity)

	wsManager := websocket.NewManager(log, redisClient.Messages)

	provider := identity.NewSupabaseProvider(cfg.Identity.URL, cfg.Identity.AnonKey)
	sessions := session.NewManager(log, profilesService, provider, cfg.Identity.RedirectURL)
	sessions.OnChange(wsManager.NotifySession)

	ginEngine := gin.New()
	ginEngine.Use(gin.Logger(), gin.Recovery())

	httpHandler := httphandler.NewHandler(httphandler.Deps{
		Market:       feed,
		Transactions: transactionsService,
		Posts:        postsService,
		Reactions:    reactionsService,
		Profiles:     profilesService,
		Sessions:     sessions,
		Streamer:     wsManager,
	}, log, cfg.Identity.JWTSecret)
	httpHandler.RegisterRoutes(ginEngine)

	httpServer := &http.Server{
		Addr:    net.JoinHostPort("", strconv.FormatUint(uint64(cfg.HTTP.Port), 10)),
		Handler: ginEngine,
	}

	return &App{
		cfg:         cfg,
		log:         log,
		httpServer:  httpServer,
		storage:     storage,
		redisClient: redisClient,
		wsManager:   wsManager,
		producer:    producer,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (a *App) Run() error {
	errChan := make(chan error, 1)
	a.log.Info("starting application components...")

	if err := a.redisClient.SubscribeScores(a.ctx); err != nil {
		a.log.Warn("score subscription failed, live scores disabled", "error", err)
	}

	go func() {
		a.log.Info("websocket manager started")
		a.wsManager.Run(a.ctx)
		a.log.Info("websocket manager stopped")
	}()

	if a.producer != nil {
		a.wg.Add(1)
		go a.producer.Start(a.ctx, &a.wg)
	}

	go func() {
		if err := a.runHTTP(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	err := <-errChan
	a.log.Warn("shutting down application due to an error", "error", err)

	a.Stop()
	return err
}

func (a *App) Stop() {
	a.stopOnce.Do(a.stop)
}

func (a *App) stop() {
	a.log.Info("stopping application components gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.HTTP.Timeout)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("failed to gracefully shutdown HTTP server", "error", err)
	} else {
		a.log.Info("HTTP server stopped")
	}

	// handlers may still record activity until the server is down
	a.cancel()
	a.wg.Wait()

	a.redisClient.Close()

	if err := a.storage.Stop(); err != nil {
		a.log.Error("failed to stop storage", "error", err)
	} else {
		a.log.Info("database connection closed")
	}
}

func (a *App) runHTTP() error {
	const op = "app.runHTTP"

	a.log.Info("HTTP server is running", "addr", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

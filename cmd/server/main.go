package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	chatapp "github.com/nurcrm/backend/internal/application/chat"
	crmapp "github.com/nurcrm/backend/internal/application/crm"
	"github.com/nurcrm/backend/internal/infrastructure/auth"
	"github.com/nurcrm/backend/internal/infrastructure/bridge"
	"github.com/nurcrm/backend/internal/infrastructure/cache"
	"github.com/nurcrm/backend/internal/infrastructure/chatgateway"
	"github.com/nurcrm/backend/internal/infrastructure/config"
	"github.com/nurcrm/backend/internal/infrastructure/logger"
	"github.com/nurcrm/backend/internal/infrastructure/persistence"
	"github.com/nurcrm/backend/internal/infrastructure/realtime"
	"github.com/nurcrm/backend/internal/interfaces/http/handler"
	"github.com/nurcrm/backend/internal/interfaces/http/middleware"
	"github.com/nurcrm/backend/internal/interfaces/http/router"
)

// version is set at build time via -ldflags
var version = "dev"

const maxBodyBytes = 4 << 20 // webhook payloads carry QR data URLs

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting NurCRM backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Database with zap-backed gorm logging
	gormLog := logger.NewGormLogger(log,
		logger.WithGormLogLevel(logger.MapGormLogLevel(cfg.Log.Level)))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	accountRepo := persistence.NewGormAccountRepository(db.DB)
	threadRepo := persistence.NewGormThreadRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)
	bridgeSessionRepo := persistence.NewGormBridgeSessionRepository(db.DB)
	leadRepo := persistence.NewGormLeadRepository(db.DB)

	// Idempotency store: Redis when reachable, in-memory otherwise
	storeFactory := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true))
	idempotencyStore, err := storeFactory.CreateStore()
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	// Live event fanout
	hub := realtime.NewHub(
		realtime.WithHubLogger(log),
		realtime.WithBufferSize(cfg.Hub.BufferSize))
	defer hub.Shutdown()

	// Chat gateway client factory
	gatewayFactory, err := chatgateway.NewFactory(&chatgateway.Config{
		BaseURL:       cfg.Chat.GatewayURL,
		Token:         cfg.Chat.GatewayToken,
		ResumeTimeout: cfg.Chat.ResumeTimeout,
		LoginTimeout:  cfg.Chat.LoginTimeout,
		FetchTimeout:  cfg.Chat.FetchTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create chat gateway factory", zap.Error(err))
	}

	// Session pool shared by auth and thread services
	clientPool := chatapp.NewClientPool(chatapp.WithPoolLogger(log))
	defer clientPool.Shutdown()

	// Bridge supervisor. The down-callback closes over bridgeService, which
	// is created right after.
	var bridgeService *chatapp.BridgeService
	supervisor := bridge.NewSupervisor(cfg.Bridge, log,
		bridge.WithOnTenantDown(func(tenantID uuid.UUID) {
			bridgeService.MarkTenantDown(tenantID)
		}))
	supervisor.StartHealthLoop()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := supervisor.Shutdown(ctx); err != nil {
			log.Error("Error shutting down bridge supervisor", zap.Error(err))
		}
	}()

	// Application services
	authService := chatapp.NewAuthService(accountRepo, gatewayFactory, clientPool,
		cfg.Chat.ResumeTimeout, cfg.Chat.LoginTimeout, log)
	accountService := chatapp.NewAccountService(accountRepo, authService)
	autoLoginService := chatapp.NewAutoLoginService(accountRepo, authService, log)
	webhookService := chatapp.NewWebhookService(accountRepo, threadRepo, messageRepo,
		bridgeSessionRepo, idempotencyStore, hub, cfg.Event.IdempotencyTTL, log)
	threadService := chatapp.NewThreadService(accountRepo, threadRepo, messageRepo,
		gatewayFactory, clientPool, hub, cfg.Chat.FetchTimeout, cfg.Chat.ThreadAmount, log)
	bridgeService = chatapp.NewBridgeService(bridgeSessionRepo, accountRepo, supervisor, log)
	leadService := crmapp.NewLeadService(leadRepo)

	jwtService := auth.NewJWTService(cfg.JWT)

	// Gin engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSMiddleware(cfg.HTTP))
	engine.Use(middleware.BodyLimitMiddleware(maxBodyBytes))

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.Logger = log

	loginLimiter := middleware.NewLoginRateLimiter(
		cfg.HTTP.LoginRateLimitRPS, cfg.HTTP.LoginRateLimitBurst)

	// Handlers
	accountHandler := handler.NewAccountHandler(accountService, autoLoginService,
		loginLimiter.Middleware())
	threadHandler := handler.NewThreadHandler(threadService)
	webhookHandler := handler.NewWebhookHandler(webhookService,
		middleware.WebhookSecretMiddleware(cfg.Bridge.WebhookSecret, log))
	bridgeHandler := handler.NewBridgeHandler(bridgeService)
	liveHandler := handler.NewLiveHandler(hub, autoLoginService, log)
	leadHandler := handler.NewLeadHandler(leadService)
	systemHandler := handler.NewSystemHandler(db, version)

	// The JWT middleware skips health and bridge webhook paths; webhooks are
	// authenticated by the shared secret instead.
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	engine.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))
	r.Register(accountHandler).
		Register(threadHandler).
		Register(webhookHandler).
		Register(bridgeHandler).
		Register(liveHandler).
		Register(leadHandler).
		Register(systemHandler)
	r.Setup()
	systemHandler.RegisterRootRoutes(engine)

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

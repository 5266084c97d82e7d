package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/makeasinger/compute-worker/internal/config"
	"github.com/makeasinger/compute-worker/internal/executor"
	"github.com/makeasinger/compute-worker/internal/handler"
	"github.com/makeasinger/compute-worker/internal/middleware"
	"github.com/makeasinger/compute-worker/internal/service"
	ws "github.com/makeasinger/compute-worker/internal/websocket"
	"github.com/makeasinger/compute-worker/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logrus.NewEntry(config.NewLogger(cfg.Server.LogLevel, os.Stdout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.WithError(err).Warn("Redis not available")
	}

	// Initialize Asynq client
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	validate := validator.New()

	// Queued tasks share one executor whose responses fan out through the hub
	hub := ws.NewHub(log)
	go hub.Run(ctx)

	tracker := worker.NewTracker(hub)
	exec, err := executor.New(tracker,
		executor.WithLogger(log.WithField("component", "executor")),
		executor.WithInboxSize(cfg.Executor.InboxSize),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create executor")
	}
	exec.Go(func() error { return exec.Run(ctx) })

	taskService := service.NewTaskService(asynqClient, exec, cfg.Worker.Queue)
	taskHandler := handler.NewTaskHandler(taskService, validate)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // 10MB
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis": redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	tasks := api.Group("/tasks")
	tasks.Get("/commands", taskHandler.Commands)
	tasks.Post("/", rateLimiter.TasksLimit(cfg.RateLimit.TasksPerMin), taskHandler.Submit)
	tasks.Delete("/:id", taskHandler.Cancel)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	sessionCfg := ws.SessionConfig{
		InboxSize: cfg.Executor.InboxSize,
		Rate:      cfg.Executor.SessionRate,
		Burst:     cfg.Executor.SessionBurst,
	}
	app.Get("/ws/executor", websocket.New(func(c *websocket.Conn) {
		session, err := ws.NewSession(c, sessionCfg, log)
		if err != nil {
			log.WithError(err).Error("Failed to open session")
			return
		}
		session.Serve()
	}))

	app.Get("/ws/tasks/:id", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("id"))
	}))

	// Start Asynq worker server
	srv := newWorkerServer(cfg, redisOpt, log)
	taskWorker := worker.NewTaskWorker(exec, tracker, log)
	go func() {
		mux := asynq.NewServeMux()
		taskWorker.Register(mux)
		if err := srv.Run(mux); err != nil {
			log.WithError(err).Error("Asynq worker error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("Shutting down server...")
		srv.Shutdown()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown error")
		}
		cancel()
	}()

	addr := ":" + cfg.Server.Port
	log.Infof("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.WithError(err).Fatal("Server error")
	}
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, log *logrus.Entry) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		asynqLogLevel = asynq.DebugLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "warn") {
		asynqLogLevel = asynq.WarnLevel
	} else if strings.EqualFold(cfg.Server.LogLevel, "error") {
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Worker.Concurrency,
			Queues: map[string]int{
				cfg.Worker.Queue: 1,
			},
			Logger:   log.WithField("component", "asynq"),
			LogLevel: asynqLogLevel,
		},
	)
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}

package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/voxdub/api/internal/client"
	"github.com/voxdub/api/internal/config"
	"github.com/voxdub/api/internal/handler"
	"github.com/voxdub/api/internal/media"
	"github.com/voxdub/api/internal/middleware"
	"github.com/voxdub/api/internal/service"
	"github.com/voxdub/api/internal/storage"
	"github.com/voxdub/api/internal/store"
	"github.com/voxdub/api/internal/worker"
	ws "github.com/voxdub/api/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Job store and media directories
	jobStore := store.New()
	mediaStore, err := media.NewStore(cfg.Dirs.Upload, cfg.Dirs.Output)
	if err != nil {
		log.Fatalf("Failed to prepare media directories: %v", err)
	}

	// Downstream service clients
	asrClient := client.NewASRClient(&cfg.Services)
	ttsClient := client.NewTTSClient(&cfg.Services)
	wav2lipClient := client.NewWav2LipClient(&cfg.Services)

	// Optional output archive
	var archiver storage.Archiver
	if r2, err := storage.NewR2Client(&cfg.Archive); err == nil {
		archiver = r2
	} else {
		log.Printf("Output archiving disabled: %v", err)
	}

	// Initialize services
	dubService := service.NewDubService(jobStore, mediaStore, asynqClient)
	healthService := service.NewHealthService(asrClient, ttsClient, wav2lipClient)

	// Initialize handlers
	uploadHandler := handler.NewUploadHandler(dubService, validate)
	jobsHandler := handler.NewJobsHandler(dubService)
	downloadHandler := handler.NewDownloadHandler(dubService)
	healthHandler := handler.NewHealthHandler(healthService)

	// Initialize middleware
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    550 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// API routes
	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)
	api.Post("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadsPerHour), uploadHandler.Upload)
	api.Get("/jobs", jobsHandler.List)
	api.Get("/jobs/:id", jobsHandler.Get)
	api.Delete("/jobs/:id", jobsHandler.Delete)
	api.Get("/download/:id", downloadHandler.Download)
	api.Get("/preview/:id", downloadHandler.Preview)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/progress/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")

		// Late subscribers get the current record as their only replay.
		var snapshot []byte
		if job, err := jobStore.Get(jobID); err == nil {
			snapshot, _ = json.Marshal(job)
		}
		hub.HandleConnection(c, jobID, snapshot)
	}))

	// Start Asynq worker server
	pipelineWorker := worker.NewPipelineWorker(jobStore, mediaStore,
		asrClient, ttsClient, wav2lipClient, hub, archiver, validate)
	go startWorkerServer(cfg, pipelineWorker)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, pipelineWorker *worker.PipelineWorker) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Bounds how many pipelines run at once; each consumes
			// downstream GPU capacity for minutes at a time.
			Concurrency: cfg.Pipeline.Concurrency,
			Queues: map[string]int{
				"pipeline": 10,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypePipeline, pipelineWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
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

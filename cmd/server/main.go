package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
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

	"github.com/RefurbishedContent/mysounds-sub002/internal/auth"
	"github.com/RefurbishedContent/mysounds-sub002/internal/client"
	"github.com/RefurbishedContent/mysounds-sub002/internal/config"
	"github.com/RefurbishedContent/mysounds-sub002/internal/handler"
	"github.com/RefurbishedContent/mysounds-sub002/internal/middleware"
	"github.com/RefurbishedContent/mysounds-sub002/internal/mixer"
	"github.com/RefurbishedContent/mysounds-sub002/internal/render"
	"github.com/RefurbishedContent/mysounds-sub002/internal/service"
	"github.com/RefurbishedContent/mysounds-sub002/internal/store"
	ws "github.com/RefurbishedContent/mysounds-sub002/internal/websocket"
	"github.com/RefurbishedContent/mysounds-sub002/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Project and credit store (optional - the worker needs it)
	var db *store.Store
	if cfg.Database.IsConfigured() {
		conn, err := store.Connect(cfg.Database)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer conn.Close()
		if err := store.Migrate(conn); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
		db = store.New(conn)
	} else {
		log.Println("Info: database not configured, project endpoints and render worker disabled")
	}

	validate := validator.New()

	hub := ws.NewHub()
	go hub.Run()

	// Artifact storage: R2 when configured, local disk otherwise
	var storage client.StorageClient
	var localStorage *client.LocalStorage
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Fatalf("Failed to initialize R2 client: %v", err)
		}
		storage = r2Client
	} else {
		localStorage, err = client.NewLocalStorage(cfg.Storage.LocalDir, cfg.Server.PublicURL+"/files")
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		storage = localStorage
		log.Printf("Info: R2 storage not configured, serving artifacts from %s", cfg.Storage.LocalDir)
	}

	transcoder := client.NewTranscoderClient(&cfg.Transcoder)

	tokenVerifier := buildVerifier(&cfg.JWT)
	authMiddleware := middleware.NewAuthMiddleware(tokenVerifier)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	renderService := service.NewRenderService(redisClient, asynqClient, cfg.Render.TaskTimeout)

	var projectStore handler.ProjectStore
	if db != nil {
		projectStore = db
	}

	renderHandler := handler.NewRenderHandler(renderService, validate)
	projectHandler := handler.NewProjectHandler(projectStore, validate)
	uploadHandler := handler.NewUploadHandler(storage)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    110 * 1024 * 1024,
	})

	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${reqHeaders}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"redis":      redisClient.Ping(c.UserContext()).Err() == nil,
				"database":   db != nil,
				"r2":         localStorage == nil,
				"transcoder": transcoder.IsConfigured(),
				"auth":       tokenVerifier != nil,
			},
		})
	})

	if localStorage != nil {
		app.Static("/files", localStorage.Dir())
	}

	api := app.Group("/api", authMiddleware.Authenticate())

	renderRoutes := api.Group("/render")
	renderRoutes.Post("/start", rateLimiter.RenderLimit(cfg.RateLimit.RenderPerHour), renderHandler.Start)
	renderRoutes.Get("/status/:jobId", renderHandler.Status)
	renderRoutes.Get("/log/:jobId", renderHandler.Log)
	renderRoutes.Get("/result/:jobId", renderHandler.Result)
	renderRoutes.Get("/presets", renderHandler.Presets)

	projects := api.Group("/projects")
	projects.Get("/:projectId", projectHandler.Get)
	projects.Put("/:projectId", projectHandler.Put)

	upload := api.Group("/upload", rateLimiter.UploadLimit(cfg.RateLimit.UploadPerHour))
	upload.Post("/track", uploadHandler.Track)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("jobId"))
	}))

	var srv *asynq.Server
	if db != nil {
		var tc render.Transcoder
		if transcoder.IsConfigured() {
			tc = transcoder
		}
		controller := render.NewController(render.Dependencies{
			Projects:        db,
			Credits:         db,
			Jobs:            renderService,
			Artifacts:       storage,
			Activity:        db,
			Transcoder:      tc,
			Mixer:           mixer.New(client.NewHTTPFetcher(cfg.Render.FetchTimeout), cfg.Render.FetchConcurrency),
			DefaultDuration: cfg.Render.DefaultDuration,
		})
		srv = newWorkerServer(cfg, redisOpt)
		renderWorker := worker.NewRenderWorker(renderService, controller, hub, cfg.Render.TaskTimeout)

		mux := asynq.NewServeMux()
		mux.HandleFunc(service.TaskTypeRender, renderWorker.ProcessTask)

		go func() {
			if err := srv.Run(mux); err != nil {
				log.Printf("Asynq worker error: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if srv != nil {
			srv.Shutdown()
		}
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// buildVerifier prefers key-set verification and falls back to the shared
// secret. It returns nil when neither is configured.
func buildVerifier(cfg *config.JWTConfig) auth.TokenVerifier {
	var chain auth.Chain
	if cfg.JWKSURL != "" || cfg.Issuer != "" {
		jwks, err := auth.NewJWKSVerifier(cfg)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			chain = append(chain, jwks)
		}
	}
	if cfg.Secret != "" {
		chain = append(chain, auth.NewHMACVerifier(cfg.Secret))
	}
	if len(chain) == 0 {
		return nil
	}
	return chain
}

func newWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt) *asynq.Server {
	asynqLogLevel := asynq.InfoLevel
	switch strings.ToLower(cfg.Server.LogLevel) {
	case "debug":
		asynqLogLevel = asynq.DebugLevel
	case "warn":
		asynqLogLevel = asynq.WarnLevel
	case "error":
		asynqLogLevel = asynq.ErrorLevel
	}

	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Render.WorkerConcurrency,
		Queues: map[string]int{
			service.QueueRender: 1,
		},
		LogLevel: asynqLogLevel,
	})
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

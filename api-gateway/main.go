package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/abhisek-1221/korai-sub001/api-gateway/config"
	"github.com/abhisek-1221/korai-sub001/api-gateway/handlers"
	"github.com/abhisek-1221/korai-sub001/api-gateway/middleware"
	"github.com/abhisek-1221/korai-sub001/api-gateway/utils"
	"github.com/abhisek-1221/korai-sub001/internal/admission"
	shared "github.com/abhisek-1221/korai-sub001/internal/config"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/internal/speakers"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (default config.yaml if present)")
	flag.Parse()

	cfg, err := shared.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	base, err := shared.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger := base.WithField("service", "api-gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := shared.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	rdb, err := shared.NewRedis(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer rdb.Close()

	ledger, err := shared.NewQuotaLedger(cfg, rdb, db)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize quota ledger")
	}
	blobs, closeBlobs, err := shared.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize blob store")
	}
	defer closeBlobs()

	auth, err := config.NewAuthenticator(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize authentication")
	}

	orchestrator := pipeline.New(pipeline.Options{
		Videos:         db,
		Transcriptions: db,
		Admission:      admission.NewController(ledger, logger),
		Jobs:           queue.NewRedisStream(rdb, cfg.StreamOptions(), logger),
		Blobs:          blobs,
		Logger:         logger,
	})
	h := handlers.NewApplicationHandler(orchestrator, speakers.NewService(db, logger), ledger, logger, cfg.Server.RequestTimeout)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return utils.RespondWithError(c, fe.Code, fe.Message)
			}
			return utils.RespondWithError(c, fiber.StatusInternalServerError, "Internal server error")
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.AllowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(middleware.RequestLogger(logger))

	h.RegisterRoutes(app, middleware.RequireUser(auth, logger))

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down API Gateway...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.WithError(err).Error("Graceful shutdown failed")
		}
	}()

	logger.Infof("Starting API Gateway on port %s...", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		logger.WithError(err).Fatal("API Gateway stopped")
	}
}

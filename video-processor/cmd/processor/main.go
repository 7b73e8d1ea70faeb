package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek-1221/korai-sub001/internal/clipapi"
	shared "github.com/abhisek-1221/korai-sub001/internal/config"
	"github.com/abhisek-1221/korai-sub001/internal/pipeline"
	"github.com/abhisek-1221/korai-sub001/internal/queue"
	"github.com/abhisek-1221/korai-sub001/video-processor/internal/db"
	"github.com/abhisek-1221/korai-sub001/video-processor/internal/jobs"
	"github.com/abhisek-1221/korai-sub001/video-processor/internal/worker"
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
	logger := base.WithField("service", "video-processor")
	logger.Info("Starting Video Processor...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := shared.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer store.Close()

	rdb, err := shared.NewRedis(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to redis")
	}
	defer rdb.Close()

	stream := queue.NewRedisStream(rdb, cfg.StreamOptions(), logger)
	if err := stream.EnsureGroup(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to prepare job stream")
	}

	blobs, closeBlobs, err := shared.NewBlobStore(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize blob store")
	}
	defer closeBlobs()

	api := shared.NewClipAPI(cfg, logger)
	factory := jobs.NewFactory(&jobs.Deps{
		Pipeline: pipeline.New(pipeline.Options{
			Videos:         store,
			Transcriptions: store,
			Logger:         logger,
		}),
		Identifier:    api,
		Renderer:      clipapi.NewRenderer(api),
		Transcriber:   api,
		Blobs:         blobs,
		Logger:        logger,
		ReportRetries: cfg.Worker.ReportRetries,
		ReportBackoff: cfg.Worker.ReportBackoff,
	})

	dispatcher := worker.NewDispatcher(cfg.Worker.Concurrency, newRecorder(cfg, logger), logger)

	g, gctx := errgroup.WithContext(ctx)
	dispatcher.Run(gctx)
	g.Go(func() error {
		return worker.NewConsumer(stream, factory, dispatcher, logger).Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down Video Processor...")
		dispatcher.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("Video Processor stopped with error")
		os.Exit(1)
	}
	logger.Info("Video Processor shut down gracefully.")
}

// newRecorder returns the job-run audit recorder, or nil when Supabase is
// not configured.
func newRecorder(cfg *shared.Config, logger logrus.FieldLogger) worker.Recorder {
	if !cfg.Supabase.Enabled() {
		logger.Info("Supabase not configured, job runs are not recorded")
		return nil
	}
	client, err := shared.NewPostgrest(cfg.Supabase)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize PostgREST client")
	}
	return db.NewRecorder(client, logger)
}

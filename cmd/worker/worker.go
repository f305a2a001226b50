package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"digital-twin-search/internal/config"
	"digital-twin-search/internal/logger"
	"digital-twin-search/internal/queue"
	"digital-twin-search/internal/telemetry"
	"digital-twin-search/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	defer shutdownTracer()
	if _, err := telemetry.InitMetrics(); err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := services.NewRuntime(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer rt.Close()

	if res := rt.Schema.CreateOrUpdateIndex(ctx); !res.Success {
		logger.Warn("Initial index reconciliation failed", "error", res.Error)
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	// Create Asynq server
	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
				queue.QueueLow:      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(rt.Indexer, rt.Deleter, rt.Schema)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	// Periodic schema reconciliation goes through the queue. The task is
	// unique while pending, so one worker runs it per tick.
	client := asynq.NewClient(redisOpt)
	defer client.Close()

	scheduler := queue.NewScheduler()
	err = scheduler.ScheduleJob(queue.TaskReconcileIndex, cfg.IndexReconcileCron, func() error {
		_, err := queue.Enqueue(context.Background(), client, queue.NewReconcileIndexTask())
		if err != nil {
			logger.Error("Failed to enqueue index reconciliation", "error", err)
		}
		return err
	})
	if err != nil {
		log.Fatal("Invalid INDEX_RECONCILE_CRON:", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("Starting search worker",
		"concurrency", cfg.WorkerConcurrency,
		"backend", cfg.SearchBackend,
		"index", cfg.SearchIndexName,
		"embeddings", rt.Embeddings.Available(),
		"reconcile_cron", cfg.IndexReconcileCron)

	if err := server.Start(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
	<-ctx.Done()
	server.Shutdown()
	logger.Info("Search worker stopped")
}

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/api"
	"github.com/aah91/bbq-buddy/internal/cache"
	"github.com/aah91/bbq-buddy/internal/clock"
	"github.com/aah91/bbq-buddy/internal/database"
	"github.com/aah91/bbq-buddy/internal/messaging"
	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/repository"
	"github.com/aah91/bbq-buddy/internal/search"
	"github.com/aah91/bbq-buddy/internal/services"
	"github.com/aah91/bbq-buddy/internal/tracing"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server for the event back office`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = tracing.NewNopTracer()
	}
	defer tracer.Close()

	// Initialize Elasticsearch indexer
	indexer, err := search.NewEventIndexer(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without indexing")
		indexer = search.NewNopIndexer()
	}

	// Initialize Service Bus notifier
	notifier, err := messaging.NewStatusNotifier(cfg.ServiceBus)
	if err != nil {
		return err
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Service Bus notifier")
		}
	}()

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize repositories
	eventRepo := repository.NewEventRepository(db, readOnlyDB)
	assignmentRepo := repository.NewAssignmentRepository(db, readOnlyDB)
	productRepo := repository.NewProductRepository(db, readOnlyDB)
	categoryRepo := repository.NewCategoryRepository(db, readOnlyDB)

	// Initialize services
	catalogService := services.NewCatalogService(productRepo, categoryRepo, redisCache)
	eventService := services.NewEventService(eventRepo, assignmentRepo, productRepo, clock.Real{}, notifier, indexer, metricsCollector)
	assignmentService := services.NewAssignmentService(assignmentRepo, eventRepo, productRepo, catalogService, eventService, metricsCollector)

	// Load the first page of each list and close anything already overdue
	if err := eventService.FetchOpenPage(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load initial open events page")
	}
	if err := eventService.FetchClosedPage(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to load initial closed events page")
	}
	eventService.AutoClosePastDeadlines(ctx)

	// Run the deadline sweep over the visible lists while the session is up
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	interval := cfg.Sweep.SessionInterval
	if interval == 0 {
		interval = time.Minute
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			eventService.AutoClosePastDeadlines(ctx)
		}),
	)
	if err != nil {
		return err
	}
	scheduler.Start()

	// Initialize and start the server
	server := api.NewServer(cfg, eventService, assignmentService, catalogService, metricsCollector, tracer)

	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown error")
	}
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}

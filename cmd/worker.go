package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aah91/bbq-buddy/config"
	"github.com/aah91/bbq-buddy/internal/clock"
	"github.com/aah91/bbq-buddy/internal/database"
	"github.com/aah91/bbq-buddy/internal/messaging"
	"github.com/aah91/bbq-buddy/internal/metrics"
	"github.com/aah91/bbq-buddy/internal/repository"
	"github.com/aah91/bbq-buddy/internal/search"
	"github.com/aah91/bbq-buddy/internal/services"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that closes overdue events while no back office session is running`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
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

	g, ctx := errgroup.WithContext(ctx)

	// Initialize database connections
	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}

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

	// Initialize services
	metricsCollector := metrics.NewMetrics()
	eventRepo := repository.NewEventRepository(db, readOnlyDB)
	assignmentRepo := repository.NewAssignmentRepository(db, readOnlyDB)
	productRepo := repository.NewProductRepository(db, readOnlyDB)
	eventService := services.NewEventService(eventRepo, assignmentRepo, productRepo, clock.Real{}, notifier, indexer, metricsCollector)

	// Run the fallback sweep on a fixed schedule. It works store-wide, so
	// deadlines that pass between operator sessions still close the event.
	g.Go(func() error {
		log.Info().Msg("Starting overdue event reconciliation job")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		interval := cfg.Sweep.FallbackInterval
		if interval == 0 {
			interval = 5 * time.Minute
		}
		batch := cfg.Sweep.FallbackBatch
		if batch == 0 {
			batch = 100
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(interval),
			gocron.NewTask(func() {
				closed, err := eventService.ReconcileOverdue(ctx, batch)
				if err != nil {
					log.Error().Err(err).Msg("Failed to reconcile overdue events")
					return
				}
				if closed > 0 {
					log.Info().Int("closed", closed).Msg("Closed overdue events")
				}
			}),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			return err
		}

		scheduler.Start()

		<-ctx.Done()
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Shutting down worker")
	return nil
}

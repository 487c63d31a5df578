package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"access-sync/core/cache"
	"access-sync/core/config"
	"access-sync/core/database"
	"access-sync/core/loader"
	"access-sync/core/lock"
	"access-sync/core/logger"
	"access-sync/core/middleware/auth"
	"access-sync/core/middleware/rayid"
	"access-sync/core/pindora"
	"access-sync/core/tasks"
	"access-sync/feature/accesscode"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the access-code synchronization server",
	Long:  `Starts the HTTP server, the task consumer, and the periodic reconciliation jobs.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		logg.Info("Connected to booking database")

		// 4. Redis backs the response cache and the job locks. When it is
		// disabled or unreachable we fall back to process-local equivalents
		// so a single instance keeps working.
		var store cache.Store
		var locker lock.Locker
		if client := cache.NewRedisClient(cfg.Redis); client != nil {
			store = cache.NewRedis(client)
			locker = lock.NewRedis(client)
			logg.Info("Connected to redis")
		} else {
			store = cache.NewMemory()
			locker = lock.NewMemory()
			logg.Warn("Redis unavailable, using in-memory cache and locks")
		}

		// 5. Pindora API Client
		pindoraClient := pindora.NewClient(cfg.Pindora, store, logg)

		// 6. Task queue. The consumer goroutine drains queued deletions;
		// with the queue disabled tasks run inline in the request.
		registry := tasks.NewRegistry()
		var dispatcher tasks.Dispatcher
		if cfg.Tasks.Enabled {
			dispatcher = tasks.NewAMQPDispatcher(cfg.Tasks, logg)
		} else {
			dispatcher = tasks.NewInlineDispatcher(cfg.Tasks, registry, logg)
		}

		var notifier accesscode.Notifier = accesscode.NopNotifier{}
		if cfg.Notifier.Enabled {
			notifier = accesscode.NewAMQPNotifier(cfg.Notifier, logg)
		}

		// 7. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 8. Initialize Feature Loader
		mgr := loader.NewManager()

		feature := accesscode.NewFeature(pindoraClient, db, dispatcher, locker, notifier, cfg.Jobs, logg)
		feature.Service().RegisterTaskHandlers(registry)
		mgr.Register(feature)

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Health (Public)
		app.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{"status": "ok"})
		})

		// 4. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 5. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// 6. Task Consumer
		if cfg.Tasks.Enabled {
			go func() {
				if err := tasks.NewConsumer(cfg.Tasks, registry, logg).Run(ctx); err != nil {
					logg.Error("Task consumer stopped", zap.Error(err))
				}
			}()
		}

		// 7. Reconciliation Job Scheduler
		go runJobScheduler(ctx, feature.Jobs(), cfg.Jobs, logg)

		// 8. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 9. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	},
}

// runJobScheduler runs both reconciliation jobs on the configured interval
// until the context is cancelled. The distributed lock keeps concurrent
// instances from doubling the work.
func runJobScheduler(ctx context.Context, jobs *accesscode.Jobs, cfg accesscode.JobsConfig, logg *zap.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.IntervalMinutes) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := jobs.CreateMissingAccessCodes(ctx); err != nil {
				logg.Error("Job failed", zap.String("job", accesscode.JobCreateMissing), zap.Error(err))
			}
			if err := jobs.UpdateAccessCodeIsActive(ctx); err != nil {
				logg.Error("Job failed", zap.String("job", accesscode.JobUpdateActive), zap.Error(err))
			}
		}
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}

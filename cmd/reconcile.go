package cmd

import (
	"context"
	"fmt"
	"time"

	"access-sync/core/cache"
	"access-sync/core/config"
	"access-sync/core/database"
	"access-sync/core/lock"
	"access-sync/core/logger"
	"access-sync/core/pindora"
	"access-sync/core/tasks"
	"access-sync/feature/accesscode"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// reconcileCmd is the parent command for one-shot reconciliation runs.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run an access-code reconciliation job once",
	Long: `Run one of the periodic reconciliation jobs a single time and exit.
The same distributed lock as the scheduler applies, so a run that overlaps
a running instance is skipped.`,
}

// createMissingCmd creates remote records for entities that should have an
// access code but have none recorded locally.
var createMissingCmd = &cobra.Command{
	Use:   "create-missing",
	Short: "Create access codes for entities missing one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobOnce(accesscode.JobCreateMissing)
	},
}

// updateActiveCmd repairs entities whose recorded activation state disagrees
// with the desired state.
var updateActiveCmd = &cobra.Command{
	Use:   "update-active",
	Short: "Repair stale access-code activation state",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runJobOnce(accesscode.JobUpdateActive)
	},
}

func init() {
	reconcileCmd.AddCommand(createMissingCmd)
	reconcileCmd.AddCommand(updateActiveCmd)
	RootCmd.AddCommand(reconcileCmd)
}

func runJobOnce(name string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	l.Info("Starting reconciliation run", zap.String("job", name))

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	var store cache.Store
	var locker lock.Locker
	if client := cache.NewRedisClient(cfg.Redis); client != nil {
		store = cache.NewRedis(client)
		locker = lock.NewRedis(client)
	} else {
		store = cache.NewMemory()
		locker = lock.NewMemory()
		l.Warn("Redis unavailable, lock is process-local for this run")
	}

	pindoraClient := pindora.NewClient(cfg.Pindora, store, l)

	// Deletions queued during the run go through the broker as usual; the
	// server's consumer picks them up. Without the broker they run inline.
	registry := tasks.NewRegistry()
	var dispatcher tasks.Dispatcher
	if cfg.Tasks.Enabled {
		dispatcher = tasks.NewAMQPDispatcher(cfg.Tasks, l)
	} else {
		dispatcher = tasks.NewInlineDispatcher(cfg.Tasks, registry, l)
	}

	var notifier accesscode.Notifier = accesscode.NopNotifier{}
	if cfg.Notifier.Enabled {
		notifier = accesscode.NewAMQPNotifier(cfg.Notifier, l)
	}

	feature := accesscode.NewFeature(pindoraClient, db, dispatcher, locker, notifier, cfg.Jobs, l)
	feature.Service().RegisterTaskHandlers(registry)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Jobs.TimeoutMinutes)*time.Minute)
	defer cancel()

	if err := feature.Jobs().RunByName(ctx, name); err != nil {
		return fmt.Errorf("reconciliation run failed: %w", err)
	}

	l.Info("Reconciliation run finished", zap.String("job", name))
	return nil
}

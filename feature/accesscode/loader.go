package accesscode

import (
	"access-sync/core/lock"
	"access-sync/core/pindora"
	"access-sync/core/tasks"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	jobs    *Jobs
	handler *Handler
}

// NewFeature creates the access-code feature.
func NewFeature(client *pindora.Client, db *gorm.DB, dispatcher tasks.Dispatcher, locker lock.Locker, notifier Notifier, jobsCfg JobsConfig, logger *zap.Logger) *Feature {
	repo := NewRepository(db)
	svc := NewService(client, repo, dispatcher, logger)
	jobs := NewJobs(svc, repo, locker, notifier, jobsCfg, logger)
	h := NewHandler(svc, jobs)
	return &Feature{service: svc, jobs: jobs, handler: h}
}

// Service exposes the synchronization service for task registration and
// programmatic use.
func (f *Feature) Service() *Service {
	return f.service
}

// Jobs exposes the reconciliation jobs for the scheduler and the one-shot
// commands.
func (f *Feature) Jobs() *Jobs {
	return f.jobs
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "accesscode"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

package accesscode

import (
	"context"
	"fmt"
	"time"

	"access-sync/core/lock"
	"access-sync/core/logger"
	"access-sync/core/pindora"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job names, used for lock keys and the operational trigger endpoint.
const (
	JobCreateMissing = "create-missing-access-codes"
	JobUpdateActive  = "update-access-code-is-active"
)

// Jobs are the two idempotent periodic reconciliation batches. Each run is
// guarded by a distributed lock, split into three passes (standalone
// reservations, root series, seasonal groups), and isolates failures per
// item: a member of the external-service error family is logged and skipped,
// anything else aborts the run so programming errors stay visible.
type Jobs struct {
	svc      *Service
	repo     *Repository
	locker   lock.Locker
	notifier Notifier
	cfg      JobsConfig
	log      *zap.Logger
	now      func() time.Time
}

// NewJobs creates the reconciliation jobs.
func NewJobs(svc *Service, repo *Repository, locker lock.Locker, notifier Notifier, cfg JobsConfig, log *zap.Logger) *Jobs {
	return &Jobs{
		svc:      svc,
		repo:     repo,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// RunByName runs the named job once. Unknown names are an error.
func (j *Jobs) RunByName(ctx context.Context, name string) error {
	switch name {
	case JobCreateMissing:
		return j.CreateMissingAccessCodes(ctx)
	case JobUpdateActive:
		return j.UpdateAccessCodeIsActive(ctx)
	default:
		return fmt.Errorf("unknown job %q", name)
	}
}

// run wraps a job body with the distributed lock and the run timeout.
func (j *Jobs) run(ctx context.Context, name string, body func(ctx context.Context, log *zap.Logger) error) error {
	log := logger.WithJob(j.log, name)

	release, ok, err := j.locker.Acquire(ctx, name, time.Duration(j.cfg.LockTTLMinutes)*time.Minute)
	if err != nil {
		return fmt.Errorf("acquire job lock: %w", err)
	}
	if !ok {
		log.Info("another instance holds the job lock, skipping run")
		return nil
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(j.cfg.TimeoutMinutes)*time.Minute)
	defer cancel()

	start := j.now()
	err = body(runCtx, log)
	log.Info("job run finished", zap.Duration("duration", time.Since(start)), zap.Error(err))
	return err
}

// skipOrFail implements per-item failure isolation: external-service errors
// are logged with the entity's identifier and the batch continues; any other
// error propagates and aborts the run.
func skipOrFail(log *zap.Logger, kind string, id uint, err error) error {
	if err == nil {
		return nil
	}
	if pindora.IsExternalServiceError(err) {
		log.Error("skipping entity after remote failure",
			zap.String("kind", kind),
			zap.Uint("id", id),
			zap.Error(err))
		return nil
	}
	return err
}

// CreateMissingAccessCodes creates remote records for every entity that
// should have a code but has none recorded locally. A Conflict response
// (the record already exists remotely) switches to reschedule-and-reconcile
// so local state converges on what the remote already holds.
func (j *Jobs) CreateMissingAccessCodes(ctx context.Context) error {
	return j.run(ctx, JobCreateMissing, func(ctx context.Context, log *zap.Logger) error {
		now := j.now()

		reservations, err := j.repo.ReservationsMissingAccessCode(ctx, now, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range reservations {
			r := &reservations[i]
			if err := skipOrFail(log, kindReservation, r.ID, j.createFor(ctx, r, kindReservation, r.ExtUUID, r.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}

		series, err := j.repo.SeriesMissingAccessCode(ctx, now, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range series {
			s := &series[i]
			if err := skipOrFail(log, kindSeries, s.ID, j.createFor(ctx, s, kindSeries, s.ExtUUID, s.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}

		groups, err := j.repo.GroupsMissingAccessCode(ctx, now, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range groups {
			g := &groups[i]
			if err := skipOrFail(log, kindSeasonalGroup, g.ID, j.createFor(ctx, g, kindSeasonalGroup, g.ExtUUID, g.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}
		return nil
	})
}

// createFor creates one entity's remote record, converging on Conflict, and
// notifies the user when the code comes up active for the first time.
func (j *Jobs) createFor(ctx context.Context, e Entity, kind string, extUUID uuid.UUID, desiredActive bool) error {
	err := j.svc.CreateAccessCode(ctx, e, desiredActive)
	if pindora.IsConflict(err) {
		err = j.svc.SyncAccessCode(ctx, e)
	}
	if err != nil {
		return err
	}
	if desiredActive {
		// The entity had no code recorded locally before this run.
		j.notifier.AccessCodeAvailable(ctx, kind, extUUID)
	}
	return nil
}

// UpdateAccessCodeIsActive repairs entities whose recorded activation state
// disagrees with the desired state: reschedule first (access-type changes
// can shift validity windows), then flip activation. A Not-found response
// clears local state instead; the next CreateMissingAccessCodes run
// recreates the record.
func (j *Jobs) UpdateAccessCodeIsActive(ctx context.Context) error {
	return j.run(ctx, JobUpdateActive, func(ctx context.Context, log *zap.Logger) error {
		reservations, err := j.repo.ReservationsWithStaleActivation(ctx, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range reservations {
			r := &reservations[i]
			if err := skipOrFail(log, kindReservation, r.ID, j.updateFor(ctx, r, r.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}

		series, err := j.repo.SeriesWithStaleActivation(ctx, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range series {
			s := &series[i]
			if err := skipOrFail(log, kindSeries, s.ID, j.updateFor(ctx, s, s.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}

		groups, err := j.repo.GroupsWithStaleActivation(ctx, j.cfg.BatchSize)
		if err != nil {
			return err
		}
		for i := range groups {
			g := &groups[i]
			if err := skipOrFail(log, kindSeasonalGroup, g.ID, j.updateFor(ctx, g, g.AccessCodeShouldBeActive)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *Jobs) updateFor(ctx context.Context, e Entity, desiredActive bool) error {
	err := j.svc.RescheduleAccessCode(ctx, e)
	if pindora.IsNotFound(err) {
		// Remote record is gone; self-heal by clearing local state.
		root, resolveErr := j.svc.resolveRoot(ctx, e)
		if resolveErr != nil {
			return resolveErr
		}
		return j.svc.clearLocalState(ctx, root)
	}
	if err != nil {
		return err
	}

	if desiredActive {
		return j.svc.ActivateAccessCode(ctx, e)
	}
	return j.svc.DeactivateAccessCode(ctx, e)
}

package accesscode

import (
	"context"
	"encoding/json"
	"fmt"

	"access-sync/core/pindora"
	"access-sync/core/tasks"
	"access-sync/feature/accesscode/models"

	"go.uber.org/zap"
)

// TaskDeleteAccessCode is the background task removing a remote record.
// Deletion is the one operation deferred to a retryable task when invoked
// from the hot path.
const TaskDeleteAccessCode = "delete-access-code"

const (
	kindReservation   = "reservation"
	kindSeries        = "series"
	kindSeasonalGroup = "seasonal_group"
)

type deleteTaskPayload struct {
	Kind string `json:"kind"`
	ID   uint   `json:"id"`
}

// DeleteAccessCode removes the entity's access code. For a hierarchy root
// the remote record is deleted and local state cleared on all constituents.
// For a non-root entity the parent's remote record is rescheduled instead,
// so its group description no longer includes the removed member; deleting
// the parent outright would destroy the code for the other members.
func (s *Service) DeleteAccessCode(ctx context.Context, e Entity) error {
	switch v := e.(type) {
	case *models.Reservation:
		if v.IsRoot() {
			return s.deleteRoot(ctx, v)
		}
	case *models.Series:
		if v.IsRoot() {
			root, err := s.resolveRoot(ctx, v)
			if err != nil {
				return err
			}
			return s.deleteRoot(ctx, root)
		}
	case *models.SeasonalGroup:
		root, err := s.resolveRoot(ctx, v)
		if err != nil {
			return err
		}
		return s.deleteRoot(ctx, root)
	default:
		return fmt.Errorf("unsupported entity type %T", e)
	}

	// Non-root: shrink the parent's group instead of deleting it.
	parent, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}
	if !s.entityRequiresCode(parent) {
		// The removed member was the last one needing a code.
		return s.deleteRoot(ctx, parent)
	}
	return s.RescheduleAccessCode(ctx, parent)
}

// deleteRoot deletes the remote record and clears local state on every
// constituent. A record already gone remotely is treated as deleted.
func (s *Service) deleteRoot(ctx context.Context, root Entity) error {
	var err error
	switch v := root.(type) {
	case *models.Reservation:
		err = s.reservations.Delete(ctx, v.ExtUUID)
	case *models.Series:
		err = s.series.Delete(ctx, v.ExtUUID)
	case *models.SeasonalGroup:
		err = s.seasonal.Delete(ctx, v.ExtUUID)
	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
	if err != nil && !pindora.IsNotFound(err) {
		return err
	}
	return s.clearLocalState(ctx, root)
}

// DeleteAccessCodeAsync dispatches the deletion as a retryable background
// task, for callers on the hot path that must not block on remote retries.
func (s *Service) DeleteAccessCodeAsync(ctx context.Context, e Entity) error {
	var p deleteTaskPayload
	switch v := e.(type) {
	case *models.Reservation:
		p = deleteTaskPayload{Kind: kindReservation, ID: v.ID}
	case *models.Series:
		p = deleteTaskPayload{Kind: kindSeries, ID: v.ID}
	case *models.SeasonalGroup:
		p = deleteTaskPayload{Kind: kindSeasonalGroup, ID: v.ID}
	default:
		return fmt.Errorf("unsupported entity type %T", e)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.tasks.Enqueue(ctx, tasks.Task{Name: TaskDeleteAccessCode, Payload: payload})
}

// RegisterTaskHandlers wires the service's background task handlers.
func (s *Service) RegisterTaskHandlers(registry *tasks.Registry) {
	registry.Register(TaskDeleteAccessCode, s.handleDeleteTask)
}

func (s *Service) handleDeleteTask(ctx context.Context, payload []byte) error {
	var p deleteTaskPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}

	var entity Entity
	switch p.Kind {
	case kindReservation:
		reservation, err := s.repo.ReservationByID(ctx, p.ID)
		if err != nil {
			return err
		}
		entity = reservation
	case kindSeries:
		series, err := s.repo.SeriesByID(ctx, p.ID)
		if err != nil {
			return err
		}
		entity = series
	case kindSeasonalGroup:
		group, err := s.repo.GroupByID(ctx, p.ID)
		if err != nil {
			return err
		}
		entity = group
	default:
		return fmt.Errorf("unknown delete target kind %q", p.Kind)
	}
	return s.DeleteAccessCode(ctx, entity)
}

// SyncAccessCode is the reconciliation primitive, called after any local
// change of intent. It deletes the remote record when the entity no longer
// needs a code (tolerating an already-missing record), otherwise converges
// remote and local state: reschedule first, create on missing, then
// reconcile the activation state.
//
// The reschedule-first ordering is what lets a reservation silently pick up
// a code mid-series, and what repairs a group whose validity windows shifted
// because an access-type change altered which reservations require a code.
func (s *Service) SyncAccessCode(ctx context.Context, e Entity) error {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}

	if !s.entityRequiresCode(root) {
		return s.deleteRoot(ctx, root)
	}

	desired := desiredActive(root)

	state, err := s.rescheduleRoot(ctx, root)
	if pindora.IsNotFound(err) {
		// No remote record yet; create it with the desired initial state.
		return s.CreateAccessCode(ctx, root, desired)
	}
	if err != nil {
		return err
	}

	if err := s.propagate(ctx, root, &state.GeneratedAt, state.IsActive); err != nil {
		return err
	}
	if state.IsActive != desired {
		s.log.Debug("reconciling activation state",
			zap.Bool("observed", state.IsActive),
			zap.Bool("desired", desired))
		return s.setActivation(ctx, root, desired)
	}
	return nil
}

func (s *Service) entityRequiresCode(root Entity) bool {
	now := s.now()
	switch v := root.(type) {
	case *models.Reservation:
		return v.RequiresAccessCode(now)
	case *models.Series:
		return v.RequiresAccessCode(now)
	case *models.SeasonalGroup:
		return v.RequiresAccessCode(now)
	}
	return false
}

// desiredActive reads the desired activation state the booking domain
// maintains on each entity. This subsystem never computes it.
func desiredActive(root Entity) bool {
	switch v := root.(type) {
	case *models.Reservation:
		return v.AccessCodeShouldBeActive
	case *models.Series:
		return v.AccessCodeShouldBeActive
	case *models.SeasonalGroup:
		return v.AccessCodeShouldBeActive
	}
	return false
}

package accesscode

import (
	"context"
	"fmt"
	"time"

	"access-sync/core/pindora"
	"access-sync/core/tasks"
	"access-sync/feature/accesscode/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Entity is one booking-hierarchy entity: *models.Reservation,
// *models.Series or *models.SeasonalGroup. Every service operation
// dispatches over these three variants; any other type is a programming
// error and fails loudly.
type Entity any

// ReservationValidity is the derived validity window for one reservation:
// the booking window widened by the unit's buffer minutes.
type ReservationValidity struct {
	ReservationID      uint
	AccessCodeBeginsAt time.Time
	AccessCodeEndsAt   time.Time
}

// AccessCodeDetails is the user-facing view of an entity's access code.
type AccessCodeDetails struct {
	pindora.AccessCodeInfo
	Validity []ReservationValidity
}

// Service performs access-code operations against the correct remote record
// for any entity in the booking hierarchy. When the given entity has a
// parent, the operation is forwarded to the parent, because the parent owns
// the authoritative remote record.
type Service struct {
	reservations *pindora.ReservationClient
	series       *pindora.SeriesClient
	seasonal     *pindora.SeasonalClient
	units        *pindora.UnitClient
	repo         *Repository
	tasks        tasks.Dispatcher
	log          *zap.Logger
	now          func() time.Time
}

// NewService creates the synchronization service on top of the shared base
// client.
func NewService(base *pindora.Client, repo *Repository, dispatcher tasks.Dispatcher, log *zap.Logger) *Service {
	return &Service{
		reservations: pindora.NewReservationClient(base),
		series:       pindora.NewSeriesClient(base),
		seasonal:     pindora.NewSeasonalClient(base),
		units:        pindora.NewUnitClient(base),
		repo:         repo,
		tasks:        dispatcher,
		log:          log,
		now:          time.Now,
	}
}

// resolveRoot walks up the containment chain to the entity that owns the
// remote record. Root series and groups are reloaded with their members so
// callers may pass bare rows.
func (s *Service) resolveRoot(ctx context.Context, e Entity) (Entity, error) {
	switch v := e.(type) {
	case *models.Reservation:
		if v.IsRoot() {
			return v, nil
		}
		series, err := s.repo.SeriesByID(ctx, *v.SeriesID)
		if err != nil {
			return nil, err
		}
		return s.resolveRoot(ctx, series)
	case *models.Series:
		if v.IsRoot() {
			return s.repo.SeriesByID(ctx, v.ID)
		}
		return s.repo.GroupByID(ctx, *v.AllocationID)
	case *models.SeasonalGroup:
		return s.repo.GroupByID(ctx, v.ID)
	default:
		return nil, fmt.Errorf("unsupported entity type %T", e)
	}
}

// GetAccessCode returns the code and per-reservation validity windows for
// the entity, delegating to the hierarchy root.
func (s *Service) GetAccessCode(ctx context.Context, e Entity) (*AccessCodeDetails, error) {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return nil, err
	}

	switch v := root.(type) {
	case *models.Reservation:
		resp, err := s.reservations.Get(ctx, v.ExtUUID)
		if err != nil {
			return nil, err
		}
		return &AccessCodeDetails{
			AccessCodeInfo: resp.AccessCodeInfo,
			Validity: []ReservationValidity{{
				ReservationID:      v.ID,
				AccessCodeBeginsAt: resp.Begin.Add(-time.Duration(resp.ValidMinutesBefore) * time.Minute),
				AccessCodeEndsAt:   resp.End.Add(time.Duration(resp.ValidMinutesAfter) * time.Minute),
			}},
		}, nil

	case *models.Series:
		resp, err := s.series.Get(ctx, v.ExtUUID)
		if err != nil {
			return nil, err
		}
		details := &AccessCodeDetails{AccessCodeInfo: resp.AccessCodeInfo}
		for _, reservation := range v.QualifyingReservations(s.now()) {
			if validity, ok := matchValidity(resp.CodeValidity, reservation, false); ok {
				details.Validity = append(details.Validity, validity)
			}
		}
		return details, nil

	case *models.SeasonalGroup:
		resp, err := s.seasonal.Get(ctx, v.ExtUUID)
		if err != nil {
			return nil, err
		}
		details := &AccessCodeDetails{AccessCodeInfo: resp.AccessCodeInfo}
		for _, reservation := range v.QualifyingReservations(s.now()) {
			// A reservation whose (unit, begin, end) has no remote validity
			// entry is excluded: local and remote state have drifted and the
			// window cannot be trusted.
			if validity, ok := matchValidity(resp.CodeValidity, reservation, true); ok {
				details.Validity = append(details.Validity, validity)
			}
		}
		return details, nil

	default:
		return nil, fmt.Errorf("unsupported entity type %T", root)
	}
}

// matchValidity finds the remote validity entry for a local reservation by
// comparing (begin, end) and, for seasonal bookings, the reservation unit.
func matchValidity(entries []pindora.CodeValidity, reservation models.Reservation, matchUnit bool) (ReservationValidity, bool) {
	for _, entry := range entries {
		if !entry.Begin.Equal(reservation.BeginsAt) || !entry.End.Equal(reservation.EndsAt) {
			continue
		}
		if matchUnit && entry.ReservationUnitID != reservation.ReservationUnitID {
			continue
		}
		return ReservationValidity{
			ReservationID:      reservation.ID,
			AccessCodeBeginsAt: entry.Begin.Add(-time.Duration(entry.ValidMinutesBefore) * time.Minute),
			AccessCodeEndsAt:   entry.End.Add(time.Duration(entry.ValidMinutesAfter) * time.Minute),
		}, true
	}
	return ReservationValidity{}, false
}

// GetUnitInfo returns the remote keypad record for a reservation unit.
func (s *Service) GetUnitInfo(ctx context.Context, unitID uuid.UUID) (*pindora.UnitResponse, error) {
	return s.units.Get(ctx, unitID)
}

// CreateAccessCode creates the remote record for the entity's hierarchy root
// and propagates the returned state onto all qualifying local rows.
func (s *Service) CreateAccessCode(ctx context.Context, e Entity, isActive bool) error {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}

	switch v := root.(type) {
	case *models.Reservation:
		resp, err := s.reservations.Create(ctx, pindora.ReservationRequest{
			ReservationID:     v.ExtUUID,
			ReservationUnitID: v.ReservationUnitID,
			Begin:             v.BeginsAt,
			End:               v.EndsAt,
			IsActive:          isActive,
		})
		if err != nil {
			return err
		}
		return s.propagate(ctx, v, &resp.AccessCodeGeneratedAt, resp.AccessCodeIsActive)

	case *models.Series:
		qualifying := v.QualifyingReservations(s.now())
		resp, err := s.series.Create(ctx, pindora.SeriesRequest{
			SeriesID:          v.ExtUUID,
			ReservationUnitID: seriesUnitID(qualifying),
			Series:            stays(qualifying, false),
			IsActive:          isActive,
		})
		if err != nil {
			return err
		}
		return s.propagate(ctx, v, &resp.AccessCodeGeneratedAt, resp.AccessCodeIsActive)

	case *models.SeasonalGroup:
		resp, err := s.seasonal.Create(ctx, pindora.SeasonalRequest{
			SeasonalBookingID: v.ExtUUID,
			Series:            stays(v.QualifyingReservations(s.now()), true),
			IsActive:          isActive,
		})
		if err != nil {
			return err
		}
		return s.propagate(ctx, v, &resp.AccessCodeGeneratedAt, resp.AccessCodeIsActive)

	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
}

// RescheduleAccessCode pushes the entity's current qualifying time windows
// to the remote record and propagates the returned state.
func (s *Service) RescheduleAccessCode(ctx context.Context, e Entity) error {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}
	state, err := s.rescheduleRoot(ctx, root)
	if err != nil {
		return err
	}
	return s.propagate(ctx, root, &state.GeneratedAt, state.IsActive)
}

// rescheduleRoot issues the remote reschedule for a root entity without
// touching local state.
func (s *Service) rescheduleRoot(ctx context.Context, root Entity) (*pindora.CodeState, error) {
	switch v := root.(type) {
	case *models.Reservation:
		return s.reservations.Reschedule(ctx, v.ExtUUID, pindora.ReservationReschedule{
			Begin: v.BeginsAt,
			End:   v.EndsAt,
		})
	case *models.Series:
		return s.series.Reschedule(ctx, v.ExtUUID, pindora.SeriesReschedule{
			Series: stays(v.QualifyingReservations(s.now()), false),
		})
	case *models.SeasonalGroup:
		return s.seasonal.Reschedule(ctx, v.ExtUUID, pindora.SeasonalReschedule{
			Series: stays(v.QualifyingReservations(s.now()), true),
		})
	default:
		return nil, fmt.Errorf("unsupported entity type %T", root)
	}
}

// ChangeAccessCode rotates the code on the remote record and propagates the
// new state.
func (s *Service) ChangeAccessCode(ctx context.Context, e Entity) error {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}

	var state *pindora.CodeState
	switch v := root.(type) {
	case *models.Reservation:
		state, err = s.reservations.ChangeCode(ctx, v.ExtUUID)
	case *models.Series:
		state, err = s.series.ChangeCode(ctx, v.ExtUUID)
	case *models.SeasonalGroup:
		state, err = s.seasonal.ChangeCode(ctx, v.ExtUUID)
	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
	if err != nil {
		return err
	}
	return s.propagate(ctx, root, &state.GeneratedAt, state.IsActive)
}

// ActivateAccessCode turns the code on remotely, then records is_active
// locally without touching generated_at.
func (s *Service) ActivateAccessCode(ctx context.Context, e Entity) error {
	return s.setActivation(ctx, e, true)
}

// DeactivateAccessCode turns the code off remotely, then records is_active
// locally without touching generated_at.
func (s *Service) DeactivateAccessCode(ctx context.Context, e Entity) error {
	return s.setActivation(ctx, e, false)
}

func (s *Service) setActivation(ctx context.Context, e Entity, active bool) error {
	root, err := s.resolveRoot(ctx, e)
	if err != nil {
		return err
	}

	switch v := root.(type) {
	case *models.Reservation:
		if active {
			err = s.reservations.Activate(ctx, v.ExtUUID)
		} else {
			err = s.reservations.Deactivate(ctx, v.ExtUUID)
		}
	case *models.Series:
		if active {
			err = s.series.Activate(ctx, v.ExtUUID)
		} else {
			err = s.series.Deactivate(ctx, v.ExtUUID)
		}
	case *models.SeasonalGroup:
		if active {
			err = s.seasonal.Activate(ctx, v.ExtUUID)
		} else {
			err = s.seasonal.Deactivate(ctx, v.ExtUUID)
		}
	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
	if err != nil {
		return err
	}
	return s.propagateActivation(ctx, root, active)
}

// stays converts reservations into remote stay entries, carrying the unit id
// only for seasonal bookings.
func stays(reservations []models.Reservation, withUnit bool) []pindora.Stay {
	out := make([]pindora.Stay, 0, len(reservations))
	for _, r := range reservations {
		stay := pindora.Stay{Begin: r.BeginsAt, End: r.EndsAt}
		if withUnit {
			stay.ReservationUnitID = r.ReservationUnitID
		}
		out = append(out, stay)
	}
	return out
}

// seriesUnitID returns the shared unit of a series' reservations. All
// reservations in one series book the same unit.
func seriesUnitID(reservations []models.Reservation) uuid.UUID {
	if len(reservations) == 0 {
		return uuid.Nil
	}
	return reservations[0].ReservationUnitID
}

// propagate writes generated_at and is_active onto the root entity and all
// qualifying reservations beneath it, each level in one bulk statement.
func (s *Service) propagate(ctx context.Context, root Entity, generatedAt *time.Time, isActive bool) error {
	switch v := root.(type) {
	case *models.Reservation:
		if err := s.repo.UpdateReservationAccessCodeState(ctx, []uint{v.ID}, generatedAt, isActive); err != nil {
			return err
		}
		v.AccessCodeGeneratedAt = generatedAt
		v.AccessCodeIsActive = isActive
		return nil

	case *models.Series:
		if err := s.repo.UpdateSeriesAccessCodeState(ctx, []uint{v.ID}, generatedAt, isActive); err != nil {
			return err
		}
		return s.repo.UpdateReservationAccessCodeState(ctx, reservationIDs(v.QualifyingReservations(s.now())), generatedAt, isActive)

	case *models.SeasonalGroup:
		if err := s.repo.UpdateGroupAccessCodeState(ctx, []uint{v.ID}, generatedAt, isActive); err != nil {
			return err
		}
		if err := s.repo.UpdateSeriesAccessCodeState(ctx, seriesIDs(v.Series), generatedAt, isActive); err != nil {
			return err
		}
		return s.repo.UpdateReservationAccessCodeState(ctx, reservationIDs(v.QualifyingReservations(s.now())), generatedAt, isActive)

	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
}

// propagateActivation mirrors a remote activation flip onto local rows.
func (s *Service) propagateActivation(ctx context.Context, root Entity, isActive bool) error {
	switch v := root.(type) {
	case *models.Reservation:
		if err := s.repo.UpdateReservationIsActive(ctx, []uint{v.ID}, isActive); err != nil {
			return err
		}
		v.AccessCodeIsActive = isActive
		return nil
	case *models.Series:
		if err := s.repo.UpdateSeriesIsActive(ctx, []uint{v.ID}, isActive); err != nil {
			return err
		}
		return s.repo.UpdateReservationIsActive(ctx, reservationIDs(v.QualifyingReservations(s.now())), isActive)
	case *models.SeasonalGroup:
		if err := s.repo.UpdateGroupIsActive(ctx, []uint{v.ID}, isActive); err != nil {
			return err
		}
		if err := s.repo.UpdateSeriesIsActive(ctx, seriesIDs(v.Series), isActive); err != nil {
			return err
		}
		return s.repo.UpdateReservationIsActive(ctx, reservationIDs(v.QualifyingReservations(s.now())), isActive)
	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
}

// clearLocalState resets the metadata on the root entity and every
// constituent beneath it, qualifying or not.
func (s *Service) clearLocalState(ctx context.Context, root Entity) error {
	switch v := root.(type) {
	case *models.Reservation:
		if err := s.repo.UpdateReservationAccessCodeState(ctx, []uint{v.ID}, nil, false); err != nil {
			return err
		}
		v.AccessCodeGeneratedAt = nil
		v.AccessCodeIsActive = false
		return nil
	case *models.Series:
		if err := s.repo.UpdateSeriesAccessCodeState(ctx, []uint{v.ID}, nil, false); err != nil {
			return err
		}
		return s.repo.UpdateReservationAccessCodeState(ctx, reservationIDs(v.Reservations), nil, false)
	case *models.SeasonalGroup:
		if err := s.repo.UpdateGroupAccessCodeState(ctx, []uint{v.ID}, nil, false); err != nil {
			return err
		}
		if err := s.repo.UpdateSeriesAccessCodeState(ctx, seriesIDs(v.Series), nil, false); err != nil {
			return err
		}
		var all []models.Reservation
		for i := range v.Series {
			all = append(all, v.Series[i].Reservations...)
		}
		return s.repo.UpdateReservationAccessCodeState(ctx, reservationIDs(all), nil, false)
	default:
		return fmt.Errorf("unsupported entity type %T", root)
	}
}

func reservationIDs(reservations []models.Reservation) []uint {
	out := make([]uint, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, r.ID)
	}
	return out
}

func seriesIDs(series []models.Series) []uint {
	out := make([]uint, 0, len(series))
	for _, s := range series {
		out = append(out, s.ID)
	}
	return out
}

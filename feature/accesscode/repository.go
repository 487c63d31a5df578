package accesscode

import (
	"context"
	"time"

	"access-sync/feature/accesscode/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// qualifies is the SQL form of models.Reservation.RequiresAccessCode, used
// inside scan predicates so the jobs never load full tables.
const qualifies = "access_type = 'access_code' AND state NOT IN ('cancelled', 'denied') AND ends_at > ?"

// Repository reads booking-hierarchy records and writes their access-code
// metadata columns. All multi-row writes are single statements; propagating
// one remote response onto N local rows must never become N round trips.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over the booking database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ReservationByID loads one reservation by its local primary key.
func (r *Repository) ReservationByID(ctx context.Context, id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	if err := r.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return nil, err
	}
	return &reservation, nil
}

// ReservationByExtUUID loads one reservation by its external identifier.
func (r *Repository) ReservationByExtUUID(ctx context.Context, id uuid.UUID) (*models.Reservation, error) {
	var reservation models.Reservation
	err := r.db.WithContext(ctx).Where("ext_uuid = ?", id.String()).First(&reservation).Error
	if err != nil {
		return nil, err
	}
	return &reservation, nil
}

// SeriesByID loads a series with its member reservations.
func (r *Repository) SeriesByID(ctx context.Context, id uint) (*models.Series, error) {
	var series models.Series
	err := r.db.WithContext(ctx).
		Preload("Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		First(&series, id).Error
	if err != nil {
		return nil, err
	}
	return &series, nil
}

// GroupByID loads a seasonal group with its series and their reservations.
func (r *Repository) GroupByID(ctx context.Context, id uint) (*models.SeasonalGroup, error) {
	var group models.SeasonalGroup
	err := r.db.WithContext(ctx).
		Preload("Series.Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		Preload("Series").
		First(&group, id).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

// ReservationsMissingAccessCode lists standalone reservations that should
// have a code but have none recorded locally.
func (r *Repository) ReservationsMissingAccessCode(ctx context.Context, now time.Time, limit int) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.db.WithContext(ctx).
		Where("series_id IS NULL AND access_code_generated_at IS NULL").
		Where(qualifies, now).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SeriesMissingAccessCode lists root series that should have a code but have
// none recorded locally. Member reservations are preloaded.
func (r *Repository) SeriesMissingAccessCode(ctx context.Context, now time.Time, limit int) ([]models.Series, error) {
	var out []models.Series
	err := r.db.WithContext(ctx).
		Preload("Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		Where("allocation_id IS NULL AND access_code_generated_at IS NULL").
		Where("EXISTS (SELECT 1 FROM reservations WHERE reservations.series_id = series.id AND "+qualifies+")", now).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GroupsMissingAccessCode lists seasonal groups that should have a code but
// have none recorded locally. Series and reservations are preloaded.
func (r *Repository) GroupsMissingAccessCode(ctx context.Context, now time.Time, limit int) ([]models.SeasonalGroup, error) {
	var out []models.SeasonalGroup
	err := r.db.WithContext(ctx).
		Preload("Series.Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		Preload("Series").
		Where("access_code_generated_at IS NULL").
		Where(`EXISTS (
			SELECT 1 FROM series
			JOIN reservations ON reservations.series_id = series.id
			WHERE series.allocation_id = seasonal_groups.id AND `+qualifies+`)`, now).
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ReservationsWithStaleActivation lists standalone reservations whose
// recorded activation state disagrees with the desired state.
func (r *Repository) ReservationsWithStaleActivation(ctx context.Context, limit int) ([]models.Reservation, error) {
	var out []models.Reservation
	err := r.db.WithContext(ctx).
		Where("series_id IS NULL AND access_code_generated_at IS NOT NULL").
		Where("access_code_is_active <> access_code_should_be_active").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SeriesWithStaleActivation lists root series whose recorded activation
// state disagrees with the desired state.
func (r *Repository) SeriesWithStaleActivation(ctx context.Context, limit int) ([]models.Series, error) {
	var out []models.Series
	err := r.db.WithContext(ctx).
		Preload("Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		Where("allocation_id IS NULL AND access_code_generated_at IS NOT NULL").
		Where("access_code_is_active <> access_code_should_be_active").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GroupsWithStaleActivation lists seasonal groups whose recorded activation
// state disagrees with the desired state.
func (r *Repository) GroupsWithStaleActivation(ctx context.Context, limit int) ([]models.SeasonalGroup, error) {
	var out []models.SeasonalGroup
	err := r.db.WithContext(ctx).
		Preload("Series.Reservations", func(db *gorm.DB) *gorm.DB { return db.Order("begins_at") }).
		Preload("Series").
		Where("access_code_generated_at IS NOT NULL").
		Where("access_code_is_active <> access_code_should_be_active").
		Order("id").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateReservationIsActive flips the activation flag for many reservations
// in one statement without touching generated_at.
func (r *Repository) UpdateReservationIsActive(ctx context.Context, ids []uint, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id IN ?", ids).
		Update("access_code_is_active", isActive).Error
}

// UpdateSeriesIsActive flips the activation flag for many series in one
// statement without touching generated_at.
func (r *Repository) UpdateSeriesIsActive(ctx context.Context, ids []uint, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Series{}).
		Where("id IN ?", ids).
		Update("access_code_is_active", isActive).Error
}

// UpdateGroupIsActive flips the activation flag for many seasonal groups in
// one statement without touching generated_at.
func (r *Repository) UpdateGroupIsActive(ctx context.Context, ids []uint, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.SeasonalGroup{}).
		Where("id IN ?", ids).
		Update("access_code_is_active", isActive).Error
}

// UpdateReservationAccessCodeState writes the metadata columns for many
// reservations in one statement. Passing generatedAt=nil with
// isActive=false clears the state.
func (r *Repository) UpdateReservationAccessCodeState(ctx context.Context, ids []uint, generatedAt *time.Time, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Reservation{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"access_code_generated_at": generatedAt,
			"access_code_is_active":    isActive,
		}).Error
}

// UpdateSeriesAccessCodeState writes the metadata columns for many series in
// one statement.
func (r *Repository) UpdateSeriesAccessCodeState(ctx context.Context, ids []uint, generatedAt *time.Time, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Series{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"access_code_generated_at": generatedAt,
			"access_code_is_active":    isActive,
		}).Error
}

// UpdateGroupAccessCodeState writes the metadata columns for many seasonal
// groups in one statement.
func (r *Repository) UpdateGroupAccessCodeState(ctx context.Context, ids []uint, generatedAt *time.Time, isActive bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.SeasonalGroup{}).
		Where("id IN ?", ids).
		Updates(map[string]any{
			"access_code_generated_at": generatedAt,
			"access_code_is_active":    isActive,
		}).Error
}

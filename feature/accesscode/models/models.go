package models

import (
	"time"

	"github.com/google/uuid"
)

// AccessType describes how a space is entered for a reservation.
type AccessType string

const (
	AccessTypeUnrestricted AccessType = "unrestricted"
	AccessTypeAccessCode   AccessType = "access_code"
	AccessTypePhysicalKey  AccessType = "physical_key"
)

// Reservation states this subsystem cares about. A reservation whose state
// is not going ahead never needs a remote access-code record.
const (
	StateConfirmed = "confirmed"
	StateCancelled = "cancelled"
	StateDenied    = "denied"
)

// Reservation is a single booking of a reservation unit for a time window.
//
// The access-code metadata columns (AccessCodeGeneratedAt, AccessCodeIsActive)
// are mutated exclusively by this subsystem. AccessCodeShouldBeActive is the
// desired-state input computed and persisted by the booking domain; this
// subsystem only reads it. When the reservation belongs to a series, its
// metadata is a read cache of the parent's state, not an independent source
// of truth.
type Reservation struct {
	ID                uint      `gorm:"primaryKey"`
	ExtUUID           uuid.UUID `gorm:"column:ext_uuid;type:char(36);uniqueIndex"`
	ReservationUnitID uuid.UUID `gorm:"column:reservation_unit_id;type:char(36)"`
	BeginsAt          time.Time
	EndsAt            time.Time
	State             string
	AccessType        AccessType
	SeriesID          *uint

	AccessCodeGeneratedAt    *time.Time
	AccessCodeIsActive       bool
	AccessCodeShouldBeActive bool
}

// Series is a recurring reservation: an ordered group of reservations
// sharing one access code. AllocationID links the series to a seasonal group
// when it was created from a seasonal application.
type Series struct {
	ID           uint      `gorm:"primaryKey"`
	ExtUUID      uuid.UUID `gorm:"column:ext_uuid;type:char(36);uniqueIndex"`
	AllocationID *uint
	Reservations []Reservation `gorm:"foreignKey:SeriesID"`

	AccessCodeGeneratedAt    *time.Time
	AccessCodeIsActive       bool
	AccessCodeShouldBeActive bool
}

// SeasonalGroup is a multi-unit booking group (an application section) that
// may contain multiple series, all sharing one access code.
type SeasonalGroup struct {
	ID      uint      `gorm:"primaryKey"`
	ExtUUID uuid.UUID `gorm:"column:ext_uuid;type:char(36);uniqueIndex"`
	Series  []Series  `gorm:"foreignKey:AllocationID"`

	AccessCodeGeneratedAt    *time.Time
	AccessCodeIsActive       bool
	AccessCodeShouldBeActive bool
}

// RequiresAccessCode reports whether the reservation should have a remote
// access-code record at all: entry is by code, the booking is going ahead,
// and it has not already ended.
func (r *Reservation) RequiresAccessCode(now time.Time) bool {
	if r.AccessType != AccessTypeAccessCode {
		return false
	}
	if r.State == StateCancelled || r.State == StateDenied {
		return false
	}
	return r.EndsAt.After(now)
}

// IsRoot reports whether the reservation owns its own remote record.
func (r *Reservation) IsRoot() bool {
	return r.SeriesID == nil
}

// RequiresAccessCode reports whether any member reservation still needs a
// code; an empty series needs none.
func (s *Series) RequiresAccessCode(now time.Time) bool {
	for i := range s.Reservations {
		if s.Reservations[i].RequiresAccessCode(now) {
			return true
		}
	}
	return false
}

// IsRoot reports whether the series owns its own remote record, i.e. it does
// not belong to a seasonal group.
func (s *Series) IsRoot() bool {
	return s.AllocationID == nil
}

// QualifyingReservations returns the member reservations that currently
// require an active code, in begin-time order.
func (s *Series) QualifyingReservations(now time.Time) []Reservation {
	var out []Reservation
	for i := range s.Reservations {
		if s.Reservations[i].RequiresAccessCode(now) {
			out = append(out, s.Reservations[i])
		}
	}
	return out
}

// RequiresAccessCode reports whether any reservation in any member series
// still needs a code.
func (g *SeasonalGroup) RequiresAccessCode(now time.Time) bool {
	for i := range g.Series {
		if g.Series[i].RequiresAccessCode(now) {
			return true
		}
	}
	return false
}

// QualifyingReservations returns every reservation in the group that
// currently requires an active code.
func (g *SeasonalGroup) QualifyingReservations(now time.Time) []Reservation {
	var out []Reservation
	for i := range g.Series {
		out = append(out, g.Series[i].QualifyingReservations(now)...)
	}
	return out
}

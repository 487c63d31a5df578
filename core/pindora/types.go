package pindora

import (
	"time"

	"github.com/google/uuid"
)

// Remote resource kinds. They appear in endpoint paths and cache keys.
const (
	KindReservation = "reservation"
	KindSeries      = "reservation-series"
	KindSeasonal    = "seasonal-booking"
	KindUnit        = "reservation-unit"
)

// AccessCodeInfo carries the code fields every successful response includes.
type AccessCodeInfo struct {
	AccessCode            string
	KeypadURL             string
	PhoneNumber           string
	SMSNumber             string
	SMSMessage            string
	AccessCodeGeneratedAt time.Time
	AccessCodeIsActive    bool
}

// CodeState is the minimal state returned by reschedule and change-code.
type CodeState struct {
	GeneratedAt time.Time
	IsActive    bool
}

// CodeValidity is one per-member validity entry in a series or seasonal
// response. ReservationUnitID is only populated for seasonal bookings.
type CodeValidity struct {
	ReservationUnitID  uuid.UUID
	Begin              time.Time
	End                time.Time
	ValidMinutesBefore int
	ValidMinutesAfter  int
}

// ReservationResponse is the typed response for a single reservation.
type ReservationResponse struct {
	AccessCodeInfo
	ReservationUnitID  uuid.UUID
	Begin              time.Time
	End                time.Time
	ValidMinutesBefore int
	ValidMinutesAfter  int
}

// SeriesResponse is the typed response for a recurring reservation series.
type SeriesResponse struct {
	AccessCodeInfo
	ReservationUnitID uuid.UUID
	CodeValidity      []CodeValidity
}

// SeasonalResponse is the typed response for a seasonal multi-unit booking.
type SeasonalResponse struct {
	AccessCodeInfo
	CodeValidity []CodeValidity
}

// UnitResponse is the typed response for a reservation unit.
type UnitResponse struct {
	ReservationUnitID  uuid.UUID
	Name               string
	KeypadURL          string
	ValidMinutesBefore int
	ValidMinutesAfter  int
}

// Stay is one reservation time window inside a series or seasonal request.
// ReservationUnitID is only sent for seasonal bookings.
type Stay struct {
	ReservationUnitID uuid.UUID `json:"reservation_unit_id,omitempty"`
	Begin             time.Time `json:"begin"`
	End               time.Time `json:"end"`
}

// ReservationRequest is the create body for a single reservation.
type ReservationRequest struct {
	ReservationID     uuid.UUID `json:"reservation_id"`
	ReservationUnitID uuid.UUID `json:"reservation_unit_id"`
	Begin             time.Time `json:"begin"`
	End               time.Time `json:"end"`
	IsActive          bool      `json:"is_active"`
}

// ReservationReschedule is the reschedule body for a single reservation.
// IsActive is optional; nil leaves the activation state untouched.
type ReservationReschedule struct {
	Begin    time.Time `json:"begin"`
	End      time.Time `json:"end"`
	IsActive *bool     `json:"is_active,omitempty"`
}

// SeriesRequest is the create body for a reservation series.
type SeriesRequest struct {
	SeriesID          uuid.UUID `json:"reservation_series_id"`
	ReservationUnitID uuid.UUID `json:"reservation_unit_id"`
	Series            []Stay    `json:"series"`
	IsActive          bool      `json:"is_active"`
}

// SeriesReschedule is the reschedule body for a reservation series.
type SeriesReschedule struct {
	Series   []Stay `json:"series"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// SeasonalRequest is the create body for a seasonal booking.
type SeasonalRequest struct {
	SeasonalBookingID uuid.UUID `json:"seasonal_booking_id"`
	Series            []Stay    `json:"series"`
	IsActive          bool      `json:"is_active"`
}

// SeasonalReschedule is the reschedule body for a seasonal booking.
type SeasonalReschedule struct {
	Series   []Stay `json:"series"`
	IsActive *bool  `json:"is_active,omitempty"`
}

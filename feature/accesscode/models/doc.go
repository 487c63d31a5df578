// Package models defines the booking-hierarchy entities this subsystem
// synchronizes: Reservation, Series (recurring reservation) and
// SeasonalGroup (application section).
//
// The hierarchy is a strict containment chain. A reservation may belong to
// at most one series, a series to at most one seasonal group, and the
// outermost entity owns the remote access-code record. The booking domain
// creates and mutates these rows; this subsystem only writes the
// access-code metadata columns.
package models

package pindora

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ReservationClient talks to the single-reservation resource.
type ReservationClient struct {
	base *Client
}

// NewReservationClient creates a typed client for single reservations.
func NewReservationClient(base *Client) *ReservationClient {
	return &ReservationClient{base: base}
}

// Get returns the reservation's access-code record, served from the response
// cache when fresh.
func (rc *ReservationClient) Get(ctx context.Context, id uuid.UUID) (*ReservationResponse, error) {
	if data, ok := rc.base.getCachedResponse(ctx, KindReservation, id.String()); ok {
		return parseReservationResponse(data)
	}

	status, data, err := rc.base.do(ctx, http.MethodGet, "/reservation/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindReservation, id.String()); err != nil {
		return nil, err
	}

	resp, err := parseReservationResponse(data)
	if err != nil {
		return nil, err
	}
	rc.base.cacheResponse(ctx, KindReservation, id.String(), data)
	return resp, nil
}

// Create creates the remote access-code record for a reservation.
func (rc *ReservationClient) Create(ctx context.Context, req ReservationRequest) (*ReservationResponse, error) {
	status, data, err := rc.base.do(ctx, http.MethodPost, "/reservation", req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindReservation, req.ReservationID.String()); err != nil {
		return nil, err
	}

	resp, err := parseReservationResponse(data)
	if err != nil {
		return nil, err
	}
	rc.base.cacheResponse(ctx, KindReservation, req.ReservationID.String(), data)
	return resp, nil
}

// Reschedule replaces the reservation's time window on the remote record.
func (rc *ReservationClient) Reschedule(ctx context.Context, id uuid.UUID, req ReservationReschedule) (*CodeState, error) {
	status, data, err := rc.base.do(ctx, http.MethodPut, "/reservation/reschedule/"+id.String(), req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindReservation, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindReservation, data)
	if err != nil {
		return nil, err
	}
	rc.base.clearCachedResponse(ctx, KindReservation, id.String())
	return state, nil
}

// ChangeCode rotates the reservation's access code.
func (rc *ReservationClient) ChangeCode(ctx context.Context, id uuid.UUID) (*CodeState, error) {
	status, data, err := rc.base.do(ctx, http.MethodPut, "/reservation/change-access-code/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindReservation, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindReservation, data)
	if err != nil {
		return nil, err
	}
	// The response carries the rotated code, so refresh the cache in place.
	rc.base.cacheResponse(ctx, KindReservation, id.String(), data)
	return state, nil
}

// Activate turns the reservation's access code on.
func (rc *ReservationClient) Activate(ctx context.Context, id uuid.UUID) error {
	status, data, err := rc.base.do(ctx, http.MethodPut, "/reservation/activate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindReservation, id.String()); err != nil {
		return err
	}
	rc.base.clearCachedResponse(ctx, KindReservation, id.String())
	return nil
}

// Deactivate turns the reservation's access code off.
func (rc *ReservationClient) Deactivate(ctx context.Context, id uuid.UUID) error {
	status, data, err := rc.base.do(ctx, http.MethodPut, "/reservation/deactivate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindReservation, id.String()); err != nil {
		return err
	}
	rc.base.clearCachedResponse(ctx, KindReservation, id.String())
	return nil
}

// Delete removes the remote access-code record entirely.
func (rc *ReservationClient) Delete(ctx context.Context, id uuid.UUID) error {
	status, data, err := rc.base.do(ctx, http.MethodDelete, "/reservation/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindReservation, id.String()); err != nil {
		return err
	}
	rc.base.clearCachedResponse(ctx, KindReservation, id.String())
	return nil
}

package pindora

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SeasonalClient talks to the seasonal multi-unit booking resource.
type SeasonalClient struct {
	base *Client
}

// NewSeasonalClient creates a typed client for seasonal bookings.
func NewSeasonalClient(base *Client) *SeasonalClient {
	return &SeasonalClient{base: base}
}

// Get returns the seasonal booking's access-code record, served from the
// response cache when fresh.
func (sc *SeasonalClient) Get(ctx context.Context, id uuid.UUID) (*SeasonalResponse, error) {
	if data, ok := sc.base.getCachedResponse(ctx, KindSeasonal, id.String()); ok {
		return parseSeasonalResponse(data)
	}

	status, data, err := sc.base.do(ctx, http.MethodGet, "/seasonal-booking/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeasonal, id.String()); err != nil {
		return nil, err
	}

	resp, err := parseSeasonalResponse(data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeasonal, id.String(), data)
	return resp, nil
}

// Create creates the remote record for a seasonal booking. The request must
// carry at least one reservation that requires an active code.
func (sc *SeasonalClient) Create(ctx context.Context, req SeasonalRequest) (*SeasonalResponse, error) {
	if len(req.Series) == 0 {
		return nil, &ValidationError{Message: "seasonal booking has no reservations that require an access code"}
	}

	status, data, err := sc.base.do(ctx, http.MethodPost, "/seasonal-booking", req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeasonal, req.SeasonalBookingID.String()); err != nil {
		return nil, err
	}

	resp, err := parseSeasonalResponse(data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeasonal, req.SeasonalBookingID.String(), data)
	return resp, nil
}

// Reschedule replaces the seasonal booking's member time windows. The same
// non-empty precondition as Create applies.
func (sc *SeasonalClient) Reschedule(ctx context.Context, id uuid.UUID, req SeasonalReschedule) (*CodeState, error) {
	if len(req.Series) == 0 {
		return nil, &ValidationError{Message: "seasonal booking has no reservations that require an access code"}
	}

	status, data, err := sc.base.do(ctx, http.MethodPut, "/seasonal-booking/reschedule/"+id.String(), req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeasonal, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindSeasonal, data)
	if err != nil {
		return nil, err
	}
	sc.base.clearCachedResponse(ctx, KindSeasonal, id.String())
	return state, nil
}

// ChangeCode rotates the shared access code for the whole seasonal booking.
func (sc *SeasonalClient) ChangeCode(ctx context.Context, id uuid.UUID) (*CodeState, error) {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/seasonal-booking/change-access-code/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeasonal, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindSeasonal, data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeasonal, id.String(), data)
	return state, nil
}

// Activate turns the seasonal booking's access code on.
func (sc *SeasonalClient) Activate(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/seasonal-booking/activate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeasonal, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeasonal, id.String())
	return nil
}

// Deactivate turns the seasonal booking's access code off.
func (sc *SeasonalClient) Deactivate(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/seasonal-booking/deactivate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeasonal, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeasonal, id.String())
	return nil
}

// Delete removes the seasonal booking's remote record entirely.
func (sc *SeasonalClient) Delete(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodDelete, "/seasonal-booking/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeasonal, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeasonal, id.String())
	return nil
}

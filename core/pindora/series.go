package pindora

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// SeriesClient talks to the recurring reservation series resource.
type SeriesClient struct {
	base *Client
}

// NewSeriesClient creates a typed client for reservation series.
func NewSeriesClient(base *Client) *SeriesClient {
	return &SeriesClient{base: base}
}

// Get returns the series' access-code record, served from the response cache
// when fresh.
func (sc *SeriesClient) Get(ctx context.Context, id uuid.UUID) (*SeriesResponse, error) {
	if data, ok := sc.base.getCachedResponse(ctx, KindSeries, id.String()); ok {
		return parseSeriesResponse(data)
	}

	status, data, err := sc.base.do(ctx, http.MethodGet, "/reservation-series/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeries, id.String()); err != nil {
		return nil, err
	}

	resp, err := parseSeriesResponse(data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeries, id.String(), data)
	return resp, nil
}

// Create creates the remote record for a series. The request must carry at
// least one reservation that requires an active code; creating an empty
// remote group is rejected locally before any remote call.
func (sc *SeriesClient) Create(ctx context.Context, req SeriesRequest) (*SeriesResponse, error) {
	if len(req.Series) == 0 {
		return nil, &ValidationError{Message: "series has no reservations that require an access code"}
	}

	status, data, err := sc.base.do(ctx, http.MethodPost, "/reservation-series", req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeries, req.SeriesID.String()); err != nil {
		return nil, err
	}

	resp, err := parseSeriesResponse(data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeries, req.SeriesID.String(), data)
	return resp, nil
}

// Reschedule replaces the series' member time windows on the remote record.
// The same non-empty precondition as Create applies.
func (sc *SeriesClient) Reschedule(ctx context.Context, id uuid.UUID, req SeriesReschedule) (*CodeState, error) {
	if len(req.Series) == 0 {
		return nil, &ValidationError{Message: "series has no reservations that require an access code"}
	}

	status, data, err := sc.base.do(ctx, http.MethodPut, "/reservation-series/reschedule/"+id.String(), req)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeries, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindSeries, data)
	if err != nil {
		return nil, err
	}
	sc.base.clearCachedResponse(ctx, KindSeries, id.String())
	return state, nil
}

// ChangeCode rotates the shared access code for the whole series.
func (sc *SeriesClient) ChangeCode(ctx context.Context, id uuid.UUID) (*CodeState, error) {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/reservation-series/change-access-code/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindSeries, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindSeries, data)
	if err != nil {
		return nil, err
	}
	sc.base.cacheResponse(ctx, KindSeries, id.String(), data)
	return state, nil
}

// Activate turns the series' access code on.
func (sc *SeriesClient) Activate(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/reservation-series/activate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeries, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeries, id.String())
	return nil
}

// Deactivate turns the series' access code off.
func (sc *SeriesClient) Deactivate(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodPut, "/reservation-series/deactivate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeries, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeries, id.String())
	return nil
}

// Delete removes the series' remote record entirely.
func (sc *SeriesClient) Delete(ctx context.Context, id uuid.UUID) error {
	status, data, err := sc.base.do(ctx, http.MethodDelete, "/reservation-series/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindSeries, id.String()); err != nil {
		return err
	}
	sc.base.clearCachedResponse(ctx, KindSeries, id.String())
	return nil
}

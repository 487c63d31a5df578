package pindora

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// UnitClient talks to the reservation-unit resource. Units carry the static
// keypad configuration and the validity buffer minutes applied to every
// reservation in that unit.
type UnitClient struct {
	base *Client
}

// NewUnitClient creates a typed client for reservation units.
func NewUnitClient(base *Client) *UnitClient {
	return &UnitClient{base: base}
}

// Get returns the unit record, served from the response cache when fresh.
func (uc *UnitClient) Get(ctx context.Context, id uuid.UUID) (*UnitResponse, error) {
	if data, ok := uc.base.getCachedResponse(ctx, KindUnit, id.String()); ok {
		return parseUnitResponse(data)
	}

	status, data, err := uc.base.do(ctx, http.MethodGet, "/reservation-unit/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindUnit, id.String()); err != nil {
		return nil, err
	}

	resp, err := parseUnitResponse(data)
	if err != nil {
		return nil, err
	}
	uc.base.cacheResponse(ctx, KindUnit, id.String(), data)
	return resp, nil
}

// ChangeCode rotates the unit's static access code.
func (uc *UnitClient) ChangeCode(ctx context.Context, id uuid.UUID) (*CodeState, error) {
	status, data, err := uc.base.do(ctx, http.MethodPut, "/reservation-unit/change-access-code/"+id.String(), nil)
	if err != nil {
		return nil, err
	}
	if err := expect(status, data, http.StatusOK, KindUnit, id.String()); err != nil {
		return nil, err
	}

	state, err := parseCodeState(KindUnit, data)
	if err != nil {
		return nil, err
	}
	uc.base.clearCachedResponse(ctx, KindUnit, id.String())
	return state, nil
}

// Activate turns the unit's static access code on.
func (uc *UnitClient) Activate(ctx context.Context, id uuid.UUID) error {
	status, data, err := uc.base.do(ctx, http.MethodPut, "/reservation-unit/activate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindUnit, id.String()); err != nil {
		return err
	}
	uc.base.clearCachedResponse(ctx, KindUnit, id.String())
	return nil
}

// Deactivate turns the unit's static access code off.
func (uc *UnitClient) Deactivate(ctx context.Context, id uuid.UUID) error {
	status, data, err := uc.base.do(ctx, http.MethodPut, "/reservation-unit/deactivate/"+id.String(), nil)
	if err != nil {
		return err
	}
	if err := expect(status, data, http.StatusNoContent, KindUnit, id.String()); err != nil {
		return err
	}
	uc.base.clearCachedResponse(ctx, KindUnit, id.String())
	return nil
}

package pindora

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// payload wraps a decoded response object and extracts fields one by one,
// distinguishing a missing key (API contract change) from a malformed value
// (bad data for one record).
type payload struct {
	entity string
	fields map[string]any
}

func newPayload(entity string, data []byte) (*payload, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &InvalidValueError{Entity: entity, Err: err}
	}
	return &payload{entity: entity, fields: fields}, nil
}

func (p *payload) raw(key string) (any, error) {
	val, ok := p.fields[key]
	if !ok {
		return nil, &MissingKeyError{Entity: p.entity, Key: key}
	}
	return val, nil
}

func (p *payload) str(key string) (string, error) {
	val, err := p.raw(key)
	if err != nil {
		return "", err
	}
	s, ok := val.(string)
	if !ok {
		return "", &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q is not a string", key)}
	}
	return s, nil
}

func (p *payload) boolean(key string) (bool, error) {
	val, err := p.raw(key)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q is not a boolean", key)}
	}
	return b, nil
}

func (p *payload) integer(key string) (int, error) {
	val, err := p.raw(key)
	if err != nil {
		return 0, err
	}
	// encoding/json decodes all numbers into float64
	f, ok := val.(float64)
	if !ok {
		return 0, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q is not a number", key)}
	}
	return int(f), nil
}

func (p *payload) timestamp(key string) (time.Time, error) {
	s, err := p.str(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q: %w", key, err)}
	}
	return t, nil
}

func (p *payload) uuidVal(key string) (uuid.UUID, error) {
	s, err := p.str(key)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q: %w", key, err)}
	}
	return id, nil
}

func (p *payload) list(key string) ([]*payload, error) {
	val, err := p.raw(key)
	if err != nil {
		return nil, err
	}
	items, ok := val.([]any)
	if !ok {
		return nil, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q is not a list", key)}
	}
	out := make([]*payload, 0, len(items))
	for i, item := range items {
		fields, ok := item.(map[string]any)
		if !ok {
			return nil, &InvalidValueError{Entity: p.entity, Err: fmt.Errorf("key %q entry %d is not an object", key, i)}
		}
		out = append(out, &payload{entity: p.entity, fields: fields})
	}
	return out, nil
}

func parseAccessCodeInfo(p *payload) (AccessCodeInfo, error) {
	var info AccessCodeInfo
	var err error

	if info.AccessCode, err = p.str("access_code"); err != nil {
		return info, err
	}
	if info.KeypadURL, err = p.str("access_code_keypad_url"); err != nil {
		return info, err
	}
	if info.PhoneNumber, err = p.str("access_code_phone_number"); err != nil {
		return info, err
	}
	if info.SMSNumber, err = p.str("access_code_sms_number"); err != nil {
		return info, err
	}
	if info.SMSMessage, err = p.str("access_code_sms_message"); err != nil {
		return info, err
	}
	if info.AccessCodeGeneratedAt, err = p.timestamp("access_code_generated_at"); err != nil {
		return info, err
	}
	if info.AccessCodeIsActive, err = p.boolean("access_code_is_active"); err != nil {
		return info, err
	}
	return info, nil
}

func parseCodeValidity(p *payload, withUnit bool) (CodeValidity, error) {
	var cv CodeValidity
	var err error

	if withUnit {
		if cv.ReservationUnitID, err = p.uuidVal("reservation_unit_id"); err != nil {
			return cv, err
		}
	}
	if cv.Begin, err = p.timestamp("begin"); err != nil {
		return cv, err
	}
	if cv.End, err = p.timestamp("end"); err != nil {
		return cv, err
	}
	if cv.ValidMinutesBefore, err = p.integer("access_code_valid_minutes_before"); err != nil {
		return cv, err
	}
	if cv.ValidMinutesAfter, err = p.integer("access_code_valid_minutes_after"); err != nil {
		return cv, err
	}
	return cv, nil
}

func parseReservationResponse(data []byte) (*ReservationResponse, error) {
	p, err := newPayload(KindReservation, data)
	if err != nil {
		return nil, err
	}

	var resp ReservationResponse
	if resp.AccessCodeInfo, err = parseAccessCodeInfo(p); err != nil {
		return nil, err
	}
	if resp.ReservationUnitID, err = p.uuidVal("reservation_unit_id"); err != nil {
		return nil, err
	}
	if resp.Begin, err = p.timestamp("begin"); err != nil {
		return nil, err
	}
	if resp.End, err = p.timestamp("end"); err != nil {
		return nil, err
	}
	if resp.ValidMinutesBefore, err = p.integer("access_code_valid_minutes_before"); err != nil {
		return nil, err
	}
	if resp.ValidMinutesAfter, err = p.integer("access_code_valid_minutes_after"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func parseSeriesResponse(data []byte) (*SeriesResponse, error) {
	p, err := newPayload(KindSeries, data)
	if err != nil {
		return nil, err
	}

	var resp SeriesResponse
	if resp.AccessCodeInfo, err = parseAccessCodeInfo(p); err != nil {
		return nil, err
	}
	if resp.ReservationUnitID, err = p.uuidVal("reservation_unit_id"); err != nil {
		return nil, err
	}
	entries, err := p.list("reservation_unit_code_validity")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		cv, err := parseCodeValidity(entry, false)
		if err != nil {
			return nil, err
		}
		resp.CodeValidity = append(resp.CodeValidity, cv)
	}
	return &resp, nil
}

func parseSeasonalResponse(data []byte) (*SeasonalResponse, error) {
	p, err := newPayload(KindSeasonal, data)
	if err != nil {
		return nil, err
	}

	var resp SeasonalResponse
	if resp.AccessCodeInfo, err = parseAccessCodeInfo(p); err != nil {
		return nil, err
	}
	entries, err := p.list("access_code_validity")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		cv, err := parseCodeValidity(entry, true)
		if err != nil {
			return nil, err
		}
		resp.CodeValidity = append(resp.CodeValidity, cv)
	}
	return &resp, nil
}

func parseUnitResponse(data []byte) (*UnitResponse, error) {
	p, err := newPayload(KindUnit, data)
	if err != nil {
		return nil, err
	}

	var resp UnitResponse
	if resp.ReservationUnitID, err = p.uuidVal("reservation_unit_id"); err != nil {
		return nil, err
	}
	if resp.Name, err = p.str("name"); err != nil {
		return nil, err
	}
	if resp.KeypadURL, err = p.str("keypad_url"); err != nil {
		return nil, err
	}
	if resp.ValidMinutesBefore, err = p.integer("access_code_valid_minutes_before"); err != nil {
		return nil, err
	}
	if resp.ValidMinutesAfter, err = p.integer("access_code_valid_minutes_after"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func parseCodeState(entity string, data []byte) (*CodeState, error) {
	p, err := newPayload(entity, data)
	if err != nil {
		return nil, err
	}

	var state CodeState
	if state.GeneratedAt, err = p.timestamp("access_code_generated_at"); err != nil {
		return nil, err
	}
	if state.IsActive, err = p.boolean("access_code_is_active"); err != nil {
		return nil, err
	}
	return &state, nil
}

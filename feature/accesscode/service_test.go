package accesscode_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"access-sync/core/cache"
	"access-sync/core/database"
	"access-sync/core/pindora"
	"access-sync/core/tasks"
	"access-sync/feature/accesscode"
	"access-sync/feature/accesscode/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRemote is an in-memory Pindora. It records every request, keeps one
// record per entity UUID, and echoes the validity windows it was last given.
type fakeRemote struct {
	mu       sync.Mutex
	requests []string
	exists   map[string]bool
	active   map[string]bool
	units    map[string]string
	windows  map[string][]stayFixture
	failures map[string]int // URL path -> forced status
}

type stayFixture struct {
	Unit  string
	Begin string
	End   string
}

const fakeGeneratedAt = "2026-08-01T10:00:00Z"

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		exists:   map[string]bool{},
		active:   map[string]bool{},
		units:    map[string]string{},
		windows:  map[string][]stayFixture{},
		failures: map[string]int{},
	}
}

func (f *fakeRemote) failPath(path string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[path] = status
}

// callCount counts recorded requests containing the substring.
func (f *fakeRemote) callCount(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if strings.Contains(req, substr) {
			n++
		}
	}
	return n
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if status, ok := f.failures[r.URL.Path]; ok {
		w.WriteHeader(status)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	kind := parts[0]

	switch {
	case r.Method == http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		id := createID(kind, req)
		if f.exists[id] {
			w.WriteHeader(http.StatusConflict)
			return
		}
		f.exists[id] = true
		f.active[id] = req["is_active"] == true
		f.units[id], f.windows[id] = staysOf(kind, req)
		fmt.Fprint(w, f.responseBody(kind, id))

	case r.Method == http.MethodGet:
		id := parts[1]
		if !f.exists[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, f.responseBody(kind, id))

	case r.Method == http.MethodPut && parts[1] == "reschedule":
		id := parts[2]
		if !f.exists[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		_ = json.Unmarshal(body, &req)
		unit, windows := staysOf(kind, req)
		f.windows[id] = windows
		if unit != "" {
			f.units[id] = unit
		}
		fmt.Fprint(w, f.codeStateBody(id))

	case r.Method == http.MethodPut && parts[1] == "change-access-code":
		id := parts[2]
		if !f.exists[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, f.codeStateBody(id))

	case r.Method == http.MethodPut && (parts[1] == "activate" || parts[1] == "deactivate"):
		id := parts[2]
		if !f.exists[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.active[id] = parts[1] == "activate"
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete:
		id := parts[1]
		if !f.exists[id] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.exists, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func createID(kind string, req map[string]any) string {
	switch kind {
	case "reservation":
		s, _ := req["reservation_id"].(string)
		return s
	case "reservation-series":
		s, _ := req["reservation_series_id"].(string)
		return s
	default:
		s, _ := req["seasonal_booking_id"].(string)
		return s
	}
}

func staysOf(kind string, req map[string]any) (string, []stayFixture) {
	unit, _ := req["reservation_unit_id"].(string)
	if kind == "reservation" {
		begin, _ := req["begin"].(string)
		end, _ := req["end"].(string)
		return unit, []stayFixture{{Unit: unit, Begin: begin, End: end}}
	}

	var out []stayFixture
	entries, _ := req["series"].([]any)
	for _, entry := range entries {
		fields, _ := entry.(map[string]any)
		begin, _ := fields["begin"].(string)
		end, _ := fields["end"].(string)
		entryUnit, _ := fields["reservation_unit_id"].(string)
		out = append(out, stayFixture{Unit: entryUnit, Begin: begin, End: end})
	}
	return unit, out
}

func (f *fakeRemote) accessCodeFields(id string) string {
	return fmt.Sprintf(`"access_code": "1234",
		"access_code_keypad_url": "https://keypad.example/%s",
		"access_code_phone_number": "+358401234567",
		"access_code_sms_number": "+358407654321",
		"access_code_sms_message": "code 1234",
		"access_code_generated_at": "%s",
		"access_code_is_active": %t`, id, fakeGeneratedAt, f.active[id])
}

func (f *fakeRemote) responseBody(kind, id string) string {
	switch kind {
	case "reservation":
		window := f.windows[id][0]
		return fmt.Sprintf(`{%s,
			"reservation_unit_id": "%s",
			"begin": "%s",
			"end": "%s",
			"access_code_valid_minutes_before": 10,
			"access_code_valid_minutes_after": 5}`,
			f.accessCodeFields(id), f.units[id], window.Begin, window.End)
	case "reservation-series":
		var entries []string
		for _, window := range f.windows[id] {
			entries = append(entries, fmt.Sprintf(`{"begin": "%s", "end": "%s",
				"access_code_valid_minutes_before": 10,
				"access_code_valid_minutes_after": 5}`, window.Begin, window.End))
		}
		return fmt.Sprintf(`{%s,
			"reservation_unit_id": "%s",
			"reservation_unit_code_validity": [%s]}`,
			f.accessCodeFields(id), f.units[id], strings.Join(entries, ","))
	default:
		var entries []string
		for _, window := range f.windows[id] {
			entries = append(entries, fmt.Sprintf(`{"reservation_unit_id": "%s",
				"begin": "%s", "end": "%s",
				"access_code_valid_minutes_before": 10,
				"access_code_valid_minutes_after": 5}`, window.Unit, window.Begin, window.End))
		}
		return fmt.Sprintf(`{%s, "access_code_validity": [%s]}`,
			f.accessCodeFields(id), strings.Join(entries, ","))
	}
}

func (f *fakeRemote) codeStateBody(id string) string {
	return fmt.Sprintf(`{"access_code_generated_at": "%s", "access_code_is_active": %t}`,
		fakeGeneratedAt, f.active[id])
}

// notifierRecorder captures availability notifications.
type notifierRecorder struct {
	mu     sync.Mutex
	events []string
}

func (n *notifierRecorder) AccessCodeAvailable(_ context.Context, kind string, extUUID uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind+":"+extUUID.String())
}

func (n *notifierRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

type testEnv struct {
	remote   *fakeRemote
	repo     *accesscode.Repository
	svc      *accesscode.Service
	registry *tasks.Registry
	seed     func(value any)
}

func newTestEnv(t *testing.T) (*testEnv, func(id uint) models.Reservation, func(id uint) models.Series, func(id uint) models.SeasonalGroup) {
	t.Helper()

	db, err := database.Connect(database.Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Reservation{}, &models.Series{}, &models.SeasonalGroup{}))

	remote := newFakeRemote()
	server := httptest.NewServer(http.HandlerFunc(remote.handle))
	t.Cleanup(server.Close)

	base := pindora.NewClient(pindora.Config{
		BaseURL:         server.URL,
		ApiKey:          "test-key",
		TimeoutSeconds:  2,
		CacheTTLSeconds: 30,
	}, cache.NewMemory(), zap.NewNop())

	repo := accesscode.NewRepository(db)
	registry := tasks.NewRegistry()
	dispatcher := tasks.NewInlineDispatcher(tasks.Config{MaxAttempts: 1, BackoffSeconds: 0}, registry, zap.NewNop())
	svc := accesscode.NewService(base, repo, dispatcher, zap.NewNop())
	svc.RegisterTaskHandlers(registry)

	reloadReservation := func(id uint) models.Reservation {
		var out models.Reservation
		require.NoError(t, db.First(&out, id).Error)
		return out
	}
	reloadSeries := func(id uint) models.Series {
		var out models.Series
		require.NoError(t, db.First(&out, id).Error)
		return out
	}
	reloadGroup := func(id uint) models.SeasonalGroup {
		var out models.SeasonalGroup
		require.NoError(t, db.First(&out, id).Error)
		return out
	}

	env := &testEnv{remote: remote, repo: repo, svc: svc, registry: registry}
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		_ = sqlDB.Close()
	})

	// Keep the gorm handle reachable for the seed helpers.
	env.seed = func(value any) {
		require.NoError(t, db.Create(value).Error)
	}
	return env, reloadReservation, reloadSeries, reloadGroup
}

var futureBegin = time.Date(2099, 7, 10, 12, 0, 0, 0, time.UTC)
var futureEnd = time.Date(2099, 7, 10, 14, 0, 0, 0, time.UTC)

func qualifyingReservation(ext uuid.UUID) models.Reservation {
	return models.Reservation{
		ExtUUID:           ext,
		ReservationUnitID: uuid.New(),
		BeginsAt:          futureBegin,
		EndsAt:            futureEnd,
		State:             models.StateConfirmed,
		AccessType:        models.AccessTypeAccessCode,
	}
}

func TestSyncCreatesMissingRecord(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)

	ext := uuid.New()
	reservation := qualifyingReservation(ext)
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &reservation))

	// Reschedule found nothing, so the record was created with the desired
	// initial activation state.
	assert.Equal(t, 1, env.remote.callCount("PUT /reservation/reschedule/"+ext.String()))
	assert.Equal(t, 1, env.remote.callCount("POST /reservation"))
	assert.True(t, env.remote.exists[ext.String()])
	assert.True(t, env.remote.active[ext.String()])

	stored := reload(reservation.ID)
	require.NotNil(t, stored.AccessCodeGeneratedAt)
	assert.True(t, stored.AccessCodeIsActive)
}

func TestSyncDeletesWhenCodeNoLongerNeeded(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)

	ext := uuid.New()
	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	reservation := qualifyingReservation(ext)
	reservation.AccessType = models.AccessTypePhysicalKey
	reservation.AccessCodeGeneratedAt = &generated
	reservation.AccessCodeIsActive = true
	env.seed(&reservation)

	// No remote record exists; the delete tolerates the 404 and still
	// clears local state.
	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &reservation))
	assert.Equal(t, 1, env.remote.callCount("DELETE /reservation/"+ext.String()))

	stored := reload(reservation.ID)
	assert.Nil(t, stored.AccessCodeGeneratedAt)
	assert.False(t, stored.AccessCodeIsActive)
}

func TestSyncReconcilesActivation(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)

	ext := uuid.New()
	reservation := qualifyingReservation(ext)
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	// Remote record exists but is inactive.
	env.remote.exists[ext.String()] = true
	env.remote.active[ext.String()] = false
	env.remote.units[ext.String()] = reservation.ReservationUnitID.String()

	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &reservation))

	assert.Equal(t, 1, env.remote.callCount("PUT /reservation/activate/"+ext.String()))
	assert.True(t, env.remote.active[ext.String()])
	assert.True(t, reload(reservation.ID).AccessCodeIsActive)
}

func TestSyncIsIdempotent(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	ext := uuid.New()
	reservation := qualifyingReservation(ext)
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &reservation))
	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &reservation))

	// The second run reschedules the existing record; nothing is created
	// twice and no activation flip is needed.
	assert.Equal(t, 1, env.remote.callCount("POST /reservation"))
	assert.Equal(t, 2, env.remote.callCount("PUT /reservation/reschedule/"))
	assert.Equal(t, 0, env.remote.callCount("/activate/"))
}

func TestMemberOperationsTargetSeriesRecord(t *testing.T) {
	env, reload, reloadSeries, _ := newTestEnv(t)

	seriesExt := uuid.New()
	series := models.Series{ExtUUID: seriesExt, AccessCodeShouldBeActive: true}
	env.seed(&series)

	unit := uuid.New()
	memberA := qualifyingReservation(uuid.New())
	memberA.ReservationUnitID = unit
	memberA.SeriesID = &series.ID
	memberB := qualifyingReservation(uuid.New())
	memberB.ReservationUnitID = unit
	memberB.BeginsAt = futureBegin.AddDate(0, 0, 7)
	memberB.EndsAt = futureEnd.AddDate(0, 0, 7)
	memberB.SeriesID = &series.ID
	env.seed(&memberA)
	env.seed(&memberB)

	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &memberA))

	// Every remote call addresses the series record; the member UUIDs never
	// appear in any path.
	assert.Equal(t, 0, env.remote.callCount(memberA.ExtUUID.String()))
	assert.Equal(t, 0, env.remote.callCount(memberB.ExtUUID.String()))
	assert.Equal(t, 1, env.remote.callCount("POST /reservation-series"))
	assert.True(t, env.remote.exists[seriesExt.String()])
	assert.Len(t, env.remote.windows[seriesExt.String()], 2)

	// State propagated to the series row and both member rows in bulk.
	assert.NotNil(t, reloadSeries(series.ID).AccessCodeGeneratedAt)
	assert.NotNil(t, reload(memberA.ID).AccessCodeGeneratedAt)
	assert.NotNil(t, reload(memberB.ID).AccessCodeGeneratedAt)
}

func TestSeriesInGroupDelegatesToGroup(t *testing.T) {
	env, _, _, reloadGroup := newTestEnv(t)

	groupExt := uuid.New()
	group := models.SeasonalGroup{ExtUUID: groupExt, AccessCodeShouldBeActive: true}
	env.seed(&group)

	seriesExt := uuid.New()
	series := models.Series{ExtUUID: seriesExt, AllocationID: &group.ID}
	env.seed(&series)

	member := qualifyingReservation(uuid.New())
	member.SeriesID = &series.ID
	env.seed(&member)

	require.NoError(t, env.svc.SyncAccessCode(context.Background(), &series))

	assert.Equal(t, 0, env.remote.callCount(seriesExt.String()))
	assert.Equal(t, 1, env.remote.callCount("POST /seasonal-booking"))
	assert.True(t, env.remote.exists[groupExt.String()])
	assert.NotNil(t, reloadGroup(group.ID).AccessCodeGeneratedAt)
}

func TestDeleteMemberReschedulesParent(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	seriesExt := uuid.New()
	series := models.Series{ExtUUID: seriesExt}
	env.seed(&series)

	unit := uuid.New()
	cancelled := qualifyingReservation(uuid.New())
	cancelled.ReservationUnitID = unit
	cancelled.State = models.StateCancelled
	cancelled.SeriesID = &series.ID
	remaining := qualifyingReservation(uuid.New())
	remaining.ReservationUnitID = unit
	remaining.BeginsAt = futureBegin.AddDate(0, 0, 7)
	remaining.EndsAt = futureEnd.AddDate(0, 0, 7)
	remaining.SeriesID = &series.ID
	env.seed(&cancelled)
	env.seed(&remaining)

	env.remote.exists[seriesExt.String()] = true
	env.remote.units[seriesExt.String()] = unit.String()

	require.NoError(t, env.svc.DeleteAccessCode(context.Background(), &cancelled))

	// The parent still has a qualifying member, so its record shrinks
	// instead of being deleted.
	assert.Equal(t, 0, env.remote.callCount("DELETE /reservation-series/"))
	assert.Equal(t, 1, env.remote.callCount("PUT /reservation-series/reschedule/"+seriesExt.String()))
	assert.Len(t, env.remote.windows[seriesExt.String()], 1)
}

func TestDeleteSeriesInGroupReschedulesGroup(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	groupExt := uuid.New()
	group := models.SeasonalGroup{ExtUUID: groupExt}
	env.seed(&group)

	keyed := models.Series{ExtUUID: uuid.New(), AllocationID: &group.ID}
	env.seed(&keyed)
	coded := models.Series{ExtUUID: uuid.New(), AllocationID: &group.ID}
	env.seed(&coded)

	// The first series switched to physical keys; the second still needs
	// its code.
	keyedMember := qualifyingReservation(uuid.New())
	keyedMember.AccessType = models.AccessTypePhysicalKey
	keyedMember.SeriesID = &keyed.ID
	env.seed(&keyedMember)
	codedMember := qualifyingReservation(uuid.New())
	codedMember.BeginsAt = futureBegin.AddDate(0, 0, 7)
	codedMember.EndsAt = futureEnd.AddDate(0, 0, 7)
	codedMember.SeriesID = &coded.ID
	env.seed(&codedMember)

	env.remote.exists[groupExt.String()] = true

	require.NoError(t, env.svc.DeleteAccessCode(context.Background(), &keyed))

	// The group record survives; its validity list shrinks to the coded
	// series' reservations.
	assert.Equal(t, 0, env.remote.callCount("DELETE /seasonal-booking/"))
	assert.Equal(t, 1, env.remote.callCount("PUT /seasonal-booking/reschedule/"+groupExt.String()))
	require.Len(t, env.remote.windows[groupExt.String()], 1)
	assert.Equal(t, codedMember.ReservationUnitID.String(), env.remote.windows[groupExt.String()][0].Unit)
}

func TestDeleteLastMemberDeletesParent(t *testing.T) {
	env, _, reloadSeries, _ := newTestEnv(t)

	seriesExt := uuid.New()
	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	series := models.Series{ExtUUID: seriesExt, AccessCodeGeneratedAt: &generated, AccessCodeIsActive: true}
	env.seed(&series)

	only := qualifyingReservation(uuid.New())
	only.State = models.StateCancelled
	only.SeriesID = &series.ID
	env.seed(&only)

	env.remote.exists[seriesExt.String()] = true

	require.NoError(t, env.svc.DeleteAccessCode(context.Background(), &only))

	assert.Equal(t, 1, env.remote.callCount("DELETE /reservation-series/"+seriesExt.String()))
	stored := reloadSeries(series.ID)
	assert.Nil(t, stored.AccessCodeGeneratedAt)
	assert.False(t, stored.AccessCodeIsActive)
}

func TestDeleteAsyncRunsThroughTaskQueue(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)

	ext := uuid.New()
	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	reservation := qualifyingReservation(ext)
	reservation.AccessCodeGeneratedAt = &generated
	env.seed(&reservation)

	env.remote.exists[ext.String()] = true

	// The inline dispatcher executes the queued task synchronously.
	require.NoError(t, env.svc.DeleteAccessCodeAsync(context.Background(), &reservation))

	assert.Equal(t, 1, env.remote.callCount("DELETE /reservation/"+ext.String()))
	assert.Nil(t, reload(reservation.ID).AccessCodeGeneratedAt)
}

func TestGetAccessCodeDerivesValidityWindows(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	ext := uuid.New()
	reservation := qualifyingReservation(ext)
	env.seed(&reservation)

	require.NoError(t, env.svc.CreateAccessCode(context.Background(), &reservation, true))

	details, err := env.svc.GetAccessCode(context.Background(), &reservation)
	require.NoError(t, err)
	assert.Equal(t, "1234", details.AccessCode)
	require.Len(t, details.Validity, 1)
	assert.True(t, details.Validity[0].AccessCodeBeginsAt.Equal(futureBegin.Add(-10*time.Minute)))
	assert.True(t, details.Validity[0].AccessCodeEndsAt.Equal(futureEnd.Add(5*time.Minute)))
}

func TestGetAccessCodeExcludesUnmatchedReservations(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	seriesExt := uuid.New()
	series := models.Series{ExtUUID: seriesExt}
	env.seed(&series)

	unit := uuid.New()
	matched := qualifyingReservation(uuid.New())
	matched.ReservationUnitID = unit
	matched.SeriesID = &series.ID
	env.seed(&matched)

	require.NoError(t, env.svc.CreateAccessCode(context.Background(), &series, true))

	// A member added after the last remote sync has no validity entry yet.
	drifted := qualifyingReservation(uuid.New())
	drifted.ReservationUnitID = unit
	drifted.BeginsAt = futureBegin.AddDate(0, 0, 14)
	drifted.EndsAt = futureEnd.AddDate(0, 0, 14)
	drifted.SeriesID = &series.ID
	env.seed(&drifted)

	details, err := env.svc.GetAccessCode(context.Background(), &matched)
	require.NoError(t, err)
	require.Len(t, details.Validity, 1)
	assert.Equal(t, matched.ID, details.Validity[0].ReservationID)
}

func TestCreateSeriesWithoutQualifyingMembersFailsLocally(t *testing.T) {
	env, _, _, _ := newTestEnv(t)

	series := models.Series{ExtUUID: uuid.New()}
	env.seed(&series)

	cancelled := qualifyingReservation(uuid.New())
	cancelled.State = models.StateCancelled
	cancelled.SeriesID = &series.ID
	env.seed(&cancelled)

	err := env.svc.CreateAccessCode(context.Background(), &series, true)
	var validation *pindora.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, 0, env.remote.callCount("POST"))
}

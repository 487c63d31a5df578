package accesscode_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"access-sync/core/lock"
	"access-sync/feature/accesscode"
	"access-sync/feature/accesscode/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testJobsConfig() accesscode.JobsConfig {
	return accesscode.JobsConfig{
		IntervalMinutes: 15,
		TimeoutMinutes:  10,
		LockTTLMinutes:  8,
		BatchSize:       500,
	}
}

func newTestJobs(t *testing.T, env *testEnv) (*accesscode.Jobs, *notifierRecorder, lock.Locker) {
	t.Helper()
	notifier := &notifierRecorder{}
	locker := lock.NewMemory()
	jobs := accesscode.NewJobs(env.svc, env.repo, locker, notifier, testJobsConfig(), zap.NewNop())
	return jobs, notifier, locker
}

func TestCreateMissingAccessCodes(t *testing.T) {
	env, reload, reloadSeries, _ := newTestEnv(t)
	jobs, notifier, _ := newTestJobs(t, env)

	// Standalone reservation wanting an active code.
	standalone := qualifyingReservation(uuid.New())
	standalone.AccessCodeShouldBeActive = true
	env.seed(&standalone)

	// Root series wanting an inactive code.
	series := models.Series{ExtUUID: uuid.New()}
	env.seed(&series)
	member := qualifyingReservation(uuid.New())
	member.SeriesID = &series.ID
	env.seed(&member)

	// Already has a code; must be left alone.
	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	done := qualifyingReservation(uuid.New())
	done.AccessCodeGeneratedAt = &generated
	env.seed(&done)

	require.NoError(t, jobs.CreateMissingAccessCodes(context.Background()))

	assert.True(t, env.remote.exists[standalone.ExtUUID.String()])
	assert.True(t, env.remote.exists[series.ExtUUID.String()])
	assert.Equal(t, 0, env.remote.callCount(done.ExtUUID.String()))

	require.NotNil(t, reload(standalone.ID).AccessCodeGeneratedAt)
	require.NotNil(t, reloadSeries(series.ID).AccessCodeGeneratedAt)
	require.NotNil(t, reload(member.ID).AccessCodeGeneratedAt)

	// Only the entity with a desired-active code gets an availability
	// notification.
	assert.Equal(t, []string{"reservation:" + standalone.ExtUUID.String()}, notifier.events)
}

func TestCreateMissingConvergesOnConflict(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)
	jobs, _, _ := newTestJobs(t, env)

	reservation := qualifyingReservation(uuid.New())
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	// The record already exists remotely even though nothing is recorded
	// locally, so create answers 409.
	ext := reservation.ExtUUID.String()
	env.remote.exists[ext] = true
	env.remote.active[ext] = true
	env.remote.units[ext] = reservation.ReservationUnitID.String()

	require.NoError(t, jobs.CreateMissingAccessCodes(context.Background()))

	assert.Equal(t, 1, env.remote.callCount("POST /reservation"))
	assert.Equal(t, 1, env.remote.callCount("PUT /reservation/reschedule/"+ext))

	stored := reload(reservation.ID)
	require.NotNil(t, stored.AccessCodeGeneratedAt)
	assert.True(t, stored.AccessCodeIsActive)
}

func TestUpdateAccessCodeIsActive(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)
	jobs, _, _ := newTestJobs(t, env)

	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	needsActivation := qualifyingReservation(uuid.New())
	needsActivation.AccessCodeGeneratedAt = &generated
	needsActivation.AccessCodeIsActive = false
	needsActivation.AccessCodeShouldBeActive = true
	env.seed(&needsActivation)

	needsDeactivation := qualifyingReservation(uuid.New())
	needsDeactivation.AccessCodeGeneratedAt = &generated
	needsDeactivation.AccessCodeIsActive = true
	needsDeactivation.AccessCodeShouldBeActive = false
	env.seed(&needsDeactivation)

	for _, r := range []*models.Reservation{&needsActivation, &needsDeactivation} {
		ext := r.ExtUUID.String()
		env.remote.exists[ext] = true
		env.remote.active[ext] = r.AccessCodeIsActive
		env.remote.units[ext] = r.ReservationUnitID.String()
	}

	require.NoError(t, jobs.UpdateAccessCodeIsActive(context.Background()))

	assert.Equal(t, 1, env.remote.callCount("PUT /reservation/activate/"+needsActivation.ExtUUID.String()))
	assert.Equal(t, 1, env.remote.callCount("PUT /reservation/deactivate/"+needsDeactivation.ExtUUID.String()))
	assert.True(t, reload(needsActivation.ID).AccessCodeIsActive)
	assert.False(t, reload(needsDeactivation.ID).AccessCodeIsActive)
}

func TestUpdateClearsStateWhenRemoteRecordGone(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)
	jobs, _, _ := newTestJobs(t, env)

	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	reservation := qualifyingReservation(uuid.New())
	reservation.AccessCodeGeneratedAt = &generated
	reservation.AccessCodeIsActive = false
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	// No remote record: the reschedule 404 self-heals by clearing local
	// state so the create job can rebuild it.
	require.NoError(t, jobs.UpdateAccessCodeIsActive(context.Background()))

	stored := reload(reservation.ID)
	assert.Nil(t, stored.AccessCodeGeneratedAt)
	assert.False(t, stored.AccessCodeIsActive)
	assert.Equal(t, 0, env.remote.callCount("/activate/"))
}

func TestJobSkipsFailingItemAndContinues(t *testing.T) {
	env, reload, _, _ := newTestEnv(t)
	jobs, _, _ := newTestJobs(t, env)

	generated := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

	failing := qualifyingReservation(uuid.New())
	failing.AccessCodeGeneratedAt = &generated
	failing.AccessCodeShouldBeActive = true
	env.seed(&failing)

	healthy := qualifyingReservation(uuid.New())
	healthy.AccessCodeGeneratedAt = &generated
	healthy.AccessCodeShouldBeActive = true
	env.seed(&healthy)

	for _, r := range []*models.Reservation{&failing, &healthy} {
		ext := r.ExtUUID.String()
		env.remote.exists[ext] = true
		env.remote.active[ext] = false
		env.remote.units[ext] = r.ReservationUnitID.String()
	}
	env.remote.failPath("/reservation/reschedule/"+failing.ExtUUID.String(), http.StatusInternalServerError)

	// The remote failure on the first item is isolated; the run finishes
	// and repairs the second.
	require.NoError(t, jobs.UpdateAccessCodeIsActive(context.Background()))

	assert.False(t, reload(failing.ID).AccessCodeIsActive)
	assert.True(t, reload(healthy.ID).AccessCodeIsActive)
}

func TestJobSkipsRunWhenLockHeld(t *testing.T) {
	env, _, _, _ := newTestEnv(t)
	jobs, _, locker := newTestJobs(t, env)

	reservation := qualifyingReservation(uuid.New())
	reservation.AccessCodeShouldBeActive = true
	env.seed(&reservation)

	release, ok, err := locker.Acquire(context.Background(), accesscode.JobCreateMissing, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	// Another holder owns the lock; the run is skipped without error and
	// without touching the remote service.
	require.NoError(t, jobs.CreateMissingAccessCodes(context.Background()))
	assert.Equal(t, 0, env.remote.callCount("POST"))
}

func TestRunByNameRejectsUnknownJob(t *testing.T) {
	env, _, _, _ := newTestEnv(t)
	jobs, _, _ := newTestJobs(t, env)

	assert.Error(t, jobs.RunByName(context.Background(), "defrag"))
}

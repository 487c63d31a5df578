// Package accesscode keeps keypad access codes for bookings in sync with the
// Pindora service.
//
// Bookings form a three-level hierarchy: standalone reservations, recurring
// series, and seasonal groups of series. Only the topmost entity of a chain
// owns a remote Pindora record; operations on a member reservation or series
// are forwarded to that owner. After every remote mutation the owner's code
// state is copied down to all member rows in bulk, so the database reflects
// the remote record without per-row round trips.
//
// # Components
//
//   - Service: Polymorphic access-code operations with parent delegation.
//   - Repository: GORM queries over the booking hierarchy, including the
//     batch selections used by the reconciliation jobs.
//   - Jobs: The two lock-guarded periodic batches that create missing
//     remote records and repair stale activation state.
//   - Notifier: Publishes an event when a code becomes available.
//   - Handler: Operational HTTP endpoints for lookups, manual sync, and
//     job triggers.
//
// # HTTP Endpoints
//
//   - GET    /access-codes/reservations/:uuid      : Code and validity windows.
//   - POST   /access-codes/reservations/:uuid/sync : Reconcile one entity now.
//   - DELETE /access-codes/reservations/:uuid      : Queue code removal.
//   - GET    /access-codes/units/:uuid             : Keypad info for a unit.
//   - POST   /jobs/:name/run                       : Trigger a reconciliation job.
package accesscode

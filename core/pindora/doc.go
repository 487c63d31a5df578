// Package pindora implements the client for the external access-control
// provider.
//
// One typed client exists per remote resource kind (reservation,
// reservation-series, seasonal-booking, reservation-unit), all built on a
// shared base Client that owns URL construction, authentication headers,
// response validation and the short-TTL response cache.
//
// # Error Taxonomy
//
// Every failure surfaces as a member of a closed error family (the Error
// interface): configuration, permission, bad-request, not-found, conflict,
// unexpected-response, and the two parsing errors (missing key vs invalid
// value). NotFoundError and ConflictError double as control-flow signals for
// the synchronization service's reschedule-or-create and create-or-fetch
// algorithms; IsExternalServiceError lets batch jobs isolate remote failures
// per item without swallowing programming errors.
//
// # Response Cache
//
// GET responses are cached for 30 seconds under "pindora:{kind}:{id}"; every
// mutating operation invalidates the entry (change-access-code refreshes it
// in place, since the response carries the rotated code).
package pindora

// Package lock provides distributed mutual exclusion for the periodic
// reconciliation jobs.
//
// Each job acquires a named lock with a TTL set conservatively below the
// job's own timeout budget. The lock is released on completion and simply
// left to expire if the worker that held it crashes.
package lock

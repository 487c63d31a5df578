package pindora

import (
	"errors"
	"fmt"
)

// Error marks members of the external-service error family. Reconciliation
// jobs skip an item and continue on any family member; everything else is a
// programming error and propagates.
type Error interface {
	error
	externalServiceError()
}

// ConfigurationError signals required connection settings are absent.
// It is fatal at call time and never retryable.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("pindora: required setting %q is not configured", e.Setting)
}

func (e *ConfigurationError) externalServiceError() {}

// PermissionError signals the remote rejected our credentials (HTTP 403).
type PermissionError struct {
	Body string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("pindora: permission denied: %s", e.Body)
}

func (e *PermissionError) externalServiceError() {}

// BadRequestError signals a malformed outbound request (HTTP 400). The raw
// response body is carried for logging.
type BadRequestError struct {
	Body string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("pindora: bad request: %s", e.Body)
}

func (e *BadRequestError) externalServiceError() {}

// NotFoundError signals the remote has no record for this id (HTTP 404).
// Callers use it as a control-flow signal: create-on-missing during
// reconciliation, or a successful no-op when deleting something already gone.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("pindora: %s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) externalServiceError() {}

// ConflictError signals the remote already has a record (HTTP 409). Callers
// use it to switch from create to fetch/reschedule.
type ConflictError struct {
	Kind string
	ID   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("pindora: %s %s already exists", e.Kind, e.ID)
}

func (e *ConflictError) externalServiceError() {}

// UnexpectedResponseError signals a status code outside the operation's
// contract.
type UnexpectedResponseError struct {
	Status int
	Body   string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("pindora: unexpected response status %d: %s", e.Status, e.Body)
}

func (e *UnexpectedResponseError) externalServiceError() {}

// MissingKeyError signals a response payload lacked an expected key. This
// usually means the API contract changed, which is alerting-worthy.
type MissingKeyError struct {
	Entity string
	Key    string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("pindora: %s response is missing key %q", e.Entity, e.Key)
}

func (e *MissingKeyError) externalServiceError() {}

// InvalidValueError signals a response payload carried a malformed value
// (bad UUID, bad timestamp). Unlike MissingKeyError this usually means bad
// data for one record.
type InvalidValueError struct {
	Entity string
	Err    error
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("pindora: %s response has invalid value: %v", e.Entity, e.Err)
}

func (e *InvalidValueError) Unwrap() error { return e.Err }

func (e *InvalidValueError) externalServiceError() {}

// ValidationError signals a client-side precondition failure, raised before
// any remote call is made (for example a series create with no reservations
// that require an active code).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "pindora: " + e.Message
}

func (e *ValidationError) externalServiceError() {}

// IsExternalServiceError reports whether err belongs to the closed
// external-service error family.
func IsExternalServiceError(err error) bool {
	var fam Error
	return errors.As(err, &fam)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var cf *ConflictError
	return errors.As(err, &cf)
}

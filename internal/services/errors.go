package services

import "errors"

type ErrorCode string

const (
	ErrorInvalid              ErrorCode = "invalid"
	ErrorForbidden            ErrorCode = "forbidden"
	ErrorNotFound             ErrorCode = "not_found"
	ErrorConflict             ErrorCode = "conflict"
	ErrorUnauthorized         ErrorCode = "unauthorized"
	ErrorInviteInvalid        ErrorCode = "invite_invalid"
	ErrorIncompleteSubmission ErrorCode = "incomplete_submission"
	ErrorVersionMismatch      ErrorCode = "version_mismatch"
	ErrorStorage              ErrorCode = "storage"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }

func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

// NewInviteInvalidError deliberately carries one fixed message for every
// failure mode (unknown hash, expired, exhausted, revoked) so callers
// cannot probe which tokens exist.
func NewInviteInvalidError() error {
	return &ServiceError{Code: ErrorInviteInvalid, Message: "invalid or expired invite"}
}

func NewIncompleteSubmissionError(msg string) error {
	return &ServiceError{Code: ErrorIncompleteSubmission, Message: msg}
}

func NewVersionMismatchError(msg string) error {
	return &ServiceError{Code: ErrorVersionMismatch, Message: msg}
}

// NewStorageError marks a transient persistence failure. The operation is
// retry-safe: either the whole atomic unit committed or none of it did.
func NewStorageError(msg string) error { return &ServiceError{Code: ErrorStorage, Message: msg} }

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

package errors

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalid            = errors.New("invalid")
	ErrConflict           = errors.New("conflict")
	ErrTooMany            = errors.New("too many requests")
	ErrInternal           = errors.New("internal")
	ErrTransferInProgress = errors.New("transfer in progress")
	ErrSyncMode           = errors.New("sync mode active")
	ErrMappingIncomplete  = errors.New("note type mapping incomplete")
	ErrNothingToTransfer  = errors.New("nothing to transfer")
	ErrUserUnavailable    = errors.New("user unavailable")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

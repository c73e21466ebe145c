package domain

import "errors"

var (
	ErrNoActiveStore      = errors.New("no active store")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrBackendRejected    = errors.New("rejected by commerce authority")
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPendingSync        = errors.New("transaction not yet synced")
)

package backoffice

import "errors"

var (
	// ErrNotInitialized is an exported constant or variable used by the session coordinator.
	ErrNotInitialized = errors.New("coordinator not initialized")
	// ErrTornDown is an exported constant or variable used by the session coordinator.
	ErrTornDown = errors.New("coordinator torn down")
	// ErrNoSession is an exported constant or variable used by the session coordinator.
	ErrNoSession = errors.New("no active session")
	// ErrTokenInvalid is an exported constant or variable used by the session coordinator.
	ErrTokenInvalid = errors.New("access token invalid")
	// ErrTokenExpired is an exported constant or variable used by the session coordinator.
	ErrTokenExpired = errors.New("access token expired")
	// ErrNoSnapshotStore is an exported constant or variable used by the session coordinator.
	ErrNoSnapshotStore = errors.New("no snapshot store configured")
	// ErrUnauthorized is an exported constant or variable used by the session coordinator.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is an exported constant or variable used by the session coordinator.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is an exported constant or variable used by the session coordinator.
	ErrNotFound = errors.New("resource not found")
	// ErrConflict is an exported constant or variable used by the session coordinator.
	ErrConflict = errors.New("resource conflict")
	// ErrRefreshInFlight is an exported constant or variable used by the session coordinator.
	ErrRefreshInFlight = errors.New("token refresh in flight")
)

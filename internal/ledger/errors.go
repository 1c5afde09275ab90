package ledger

import (
	"errors"
	"fmt"
)

// Stage identifies where in the request lifecycle a ledger failure occurred.
// The stage drives the HTTP-visible classification: failures before a session
// exists (resolve, connect) are infrastructure errors, failures after
// (bind, dispatch) are business errors accompanied by a guaranteed release.
type Stage string

const (
	// StageResolve covers identity resolution failures.
	StageResolve Stage = "resolve"

	// StageConnect covers gateway session open failures.
	StageConnect Stage = "connect"

	// StageBind covers contract binding failures on an open session.
	StageBind Stage = "bind"

	// StageDispatch covers transaction submit/evaluate failures.
	StageDispatch Stage = "dispatch"
)

var (
	// ErrIdentityNotFound is returned when an identity reference does not
	// resolve to stored credentials.
	ErrIdentityNotFound = errors.New("identity not found in wallet")

	// ErrSessionClosed is returned when a contract binding is requested
	// from a session that has already been released.
	ErrSessionClosed = errors.New("gateway session is closed")
)

// Error wraps a lower-level failure with its lifecycle stage and, for
// dispatch failures, the transaction name. Lower-level failures are never
// swallowed; the handler layer decides the HTTP classification.
type Error struct {
	Stage Stage
	Op    string // transaction name, empty outside dispatch
	Err   error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("ledger %s %s: %v", e.Stage, e.Op, e.Err)
	}
	return fmt.Sprintf("ledger %s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Infrastructure reports whether the failure happened before a session
// existed. Infrastructure failures map to server-facing responses; anything
// after a successful open is client-facing.
func (e *Error) Infrastructure() bool {
	return e.Stage == StageResolve || e.Stage == StageConnect
}

// IsInfrastructure reports whether err is a ledger failure from the resolve
// or connect stage. Unrecognized errors are treated as infrastructure
// failures so unexpected internal errors never leak as business errors.
func IsInfrastructure(err error) bool {
	var lerr *Error
	if errors.As(err, &lerr) {
		return lerr.Infrastructure()
	}
	return true
}

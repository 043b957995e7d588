package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidState covers expired, replayed and forged authorization
// callbacks: the state token is not (or no longer) in the pending map.
// The user recovers by restarting /auth.
var ErrInvalidState = errors.New("auth: invalid or expired authorization state")

// ErrRefreshRejected means the provider explicitly rejected the refresh
// token. The stored credential has been deleted; the user must
// re-authorize.
var ErrRefreshRejected = errors.New("auth: refresh token rejected by provider")

// ExchangeError wraps a provider rejection of the authorization code.
type ExchangeError struct {
	Err error
}

func (e *ExchangeError) Error() string { return fmt.Sprintf("auth: code exchange failed: %v", e.Err) }
func (e *ExchangeError) Unwrap() error { return e.Err }

// TransientError wraps a network or timeout failure talking to the
// provider. The stored credential is preserved; a later retry may
// succeed.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("auth: transient %s failure: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

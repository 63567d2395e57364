package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidOrder    = errors.New("invalid order parameters")
	ErrSigningFailed   = errors.New("signing failed")
	ErrLockHeld        = errors.New("lock already held")
	ErrStateCorrupt    = errors.New("risk state corrupt")
	ErrNoSources       = errors.New("no reference price sources configured")
	ErrUnreliablePrice = errors.New("reference price unreliable")

	// ErrInvalidVolatility is a fatal configuration error: pricing with a
	// non-positive volatility would divide by zero.
	ErrInvalidVolatility = errors.New("volatility must be positive and finite")
	ErrNonPositiveTenor  = errors.New("time to expiry must be positive")
	ErrInvalidInput      = errors.New("spot and strike must be positive and finite")

	ErrMissingCredentials = errors.New("live trading requires venue credentials")
)

package domain

import (
	"errors"

	"github.com/alanyoungcy/winzzers/internal/money"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRateLimited   = errors.New("rate limited")
	ErrLockHeld      = errors.New("lock already held")
	ErrSigningFailed = errors.New("signing failed")

	// ErrInvalidAmount is shared with the money package so callers can match
	// parse failures without importing it.
	ErrInvalidAmount       = money.ErrInvalidAmount
	ErrMalformedMarketData = errors.New("malformed market data")
	ErrReadFailure         = errors.New("ledger read failed")
	ErrWriteRejected       = errors.New("transaction rejected")
	ErrWriteInFlight       = errors.New("a transaction is already pending")
	ErrMetadataSync        = errors.New("metadata sync failed")

	ErrInvalidMarketParams = errors.New("invalid market parameters")
	ErrMarketNotOpen       = errors.New("market is not open")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNeedsApproval       = errors.New("allowance too low, approve spending first")
	ErrNoWallet            = errors.New("no wallet configured")
)

package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("rate limited")
	ErrResolution          = errors.New("stream identity resolution failed")
	ErrConnection          = errors.New("realtime channel connection failed")
	ErrWalletUnavailable   = errors.New("wallet unavailable")
	ErrChainInteraction    = errors.New("chain interaction failed")
	ErrSubmission          = errors.New("prediction submission failed")
	ErrBridge              = errors.New("bridge context unreachable")
	ErrUnknownAction       = errors.New("Unknown action")
	ErrInvalidChallenge    = errors.New("invalid challenge")
	ErrDuplicateSubmission = errors.New("duplicate submission")
)

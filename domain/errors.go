package domain

import "errors"

// Precondition violations are surfaced to the caller as-is and must
// never be retried blind; transient adapter failures are wrapped with
// %w so callers can unwrap and back off.
var (
	ErrInvalidChain       = errors.New("unsupported chain family")
	ErrInvalidSecret      = errors.New("secret does not match hash lock")
	ErrTimelockNotExpired = errors.New("timelock has not expired")
	ErrInvalidState       = errors.New("invalid state for requested transition")
	ErrCommitmentMismatch = errors.New("revealed parameters do not match commitment")
	ErrSlippageExceeded   = errors.New("realized output below minimum acceptable")
	ErrDeploymentFailed   = errors.New("lock deployment failed")

	ErrSwapNotFound       = errors.New("swap not found")
	ErrCommitmentNotFound = errors.New("commitment not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderExpired       = errors.New("order deadline has passed")
)

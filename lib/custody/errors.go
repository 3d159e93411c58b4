package custody

import (
	"context"
	"errors"
)

var (
	ErrNotOwner              = errors.New("custody: caller is not the position owner")
	ErrInsufficientLiquidity = errors.New("custody: insufficient recorded liquidity")
	ErrUpstreamTransfer      = errors.New("custody: upstream transfer failed")
	ErrUpstreamExecution     = errors.New("custody: upstream execution failed")
	ErrInvalidRequest        = errors.New("custody: invalid request")
	ErrPositionNotFound      = errors.New("custody: position not found")
	ErrLedgerCommit          = errors.New("custody: ledger commit failed")
	ErrInvalidPolicy         = errors.New("custody: invalid policy")
	ErrMissingDependency     = errors.New("custody: missing dependency")
)

// Outcome labels returned by Classify.
const (
	OutcomeOK                    = "ok"
	OutcomeNotOwner              = "not_owner"
	OutcomeInsufficientLiquidity = "insufficient_liquidity"
	OutcomeUpstreamTransfer      = "upstream_transfer"
	OutcomeUpstreamExecution     = "upstream_execution"
	OutcomeInvalidRequest        = "invalid_request"
	OutcomePositionNotFound      = "position_not_found"
	OutcomeLedgerCommit          = "ledger_commit"
	OutcomeCanceled              = "canceled"
	OutcomeError                 = "error"
)

// Classify maps an operation error to a stable outcome label.
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotOwner):
		return OutcomeNotOwner
	case errors.Is(err, ErrInsufficientLiquidity):
		return OutcomeInsufficientLiquidity
	case errors.Is(err, ErrUpstreamTransfer):
		return OutcomeUpstreamTransfer
	case errors.Is(err, ErrUpstreamExecution):
		return OutcomeUpstreamExecution
	case errors.Is(err, ErrInvalidRequest):
		return OutcomeInvalidRequest
	case errors.Is(err, ErrPositionNotFound):
		return OutcomePositionNotFound
	case errors.Is(err, ErrLedgerCommit):
		return OutcomeLedgerCommit
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeError
}

// IsUpstream reports whether err came from a collaborator rather than a local
// check.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamTransfer) || errors.Is(err, ErrUpstreamExecution)
}

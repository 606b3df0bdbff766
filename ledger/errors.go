package ledger

import "errors"

// Code is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions. Callers
// should branch on Code rather than matching error strings.
//
// NOTE: Error() strings are intentionally human-readable and may evolve.
// Use errors.As (or IsCode/CodeOf) to extract *Error for structured handling.
type Code string

const (
	// Registry failures.
	CodeDuplicateCommitment Code = "DuplicateCommitment"
	CodeInvalidBalance      Code = "InvalidBalance"
	CodeInvalidCommitment   Code = "InvalidCommitment"
	CodeNotHolder           Code = "NotHolder"

	// Marketplace failures.
	CodeInvalidPrice       Code = "InvalidPrice"
	CodeInsufficientStake  Code = "InsufficientStake"
	CodeAlreadyMinted      Code = "AlreadyMinted"
	CodeAlreadyListed      Code = "AlreadyListed"
	CodeAlreadyApplied     Code = "AlreadyApplied"
	CodeNotSeller          Code = "NotSeller"
	CodeSelfTrade          Code = "SelfTrade"
	CodeNoPendingRequest   Code = "NoPendingRequest"
	CodeSaleInProgress     Code = "SaleInProgress"
	CodeNotApplied         Code = "NotApplied"
	CodeUnauthorized       Code = "Unauthorized"
	CodeCooldownNotElapsed Code = "CooldownNotElapsed"
	CodeImpossibleBalance  Code = "ImpossibleBalance"

	// Shared failures.
	CodeNotFound          Code = "NotFound"
	CodeInsufficientFunds Code = "InsufficientFunds"

	// Fatal conditions. Reentrancy rejects a nested transition for a
	// commitment hash that already has one in flight; Halted rejects every
	// operation on a hash whose internal invariants were found violated.
	CodeReentrancy Code = "Reentrancy"
	CodeHalted     Code = "Halted"
	CodeInternal   Code = "Internal"
)

// Error is the structured error type shared by the registry and marketplace.
//
// Op names the operation that failed (e.g. "market.ListCard"). Amount carries
// an optional quantity for amount-bearing failures: InsufficientStake reports
// the stake shortfall there.
type Error struct {
	Code    Code
	Op      string
	Message string
	Amount  int64
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return string(e.Code) + ": " + e.Message
	}
	return e.Op + ": " + string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured error with no cause.
func NewError(code Code, op, msg string) error {
	return &Error{Code: code, Op: op, Message: msg}
}

// WrapError builds a structured error wrapping cause.
func WrapError(code Code, op, msg string, cause error) error {
	if cause == nil {
		return NewError(code, op, msg)
	}
	return &Error{Code: code, Op: op, Message: msg, Cause: cause}
}

// IsCode reports whether err is (or wraps) a *Error with the given Code.
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the stable Code for a structured error, or "" if unknown.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}

// AmountOf returns the quantity carried by an amount-bearing structured
// error, or 0 if err carries none.
func AmountOf(err error) int64 {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Amount
}

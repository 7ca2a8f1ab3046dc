// Package protocol defines the error taxonomy shared by the ledger and every program.
package protocol

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindState         Kind = "state"
	KindFunds         Kind = "funds"
	KindArithmetic    Kind = "arithmetic"
	KindValidation    Kind = "validation"
	KindConcurrency   Kind = "concurrency"
)

// Error is a protocol error. Two errors match under errors.Is when their codes match.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches on Code so wrapped copies compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// Authorization
var (
	ErrUnauthorized       = newError(KindAuthorization, "Unauthorized", "caller is not permitted to perform this operation")
	ErrAddressMismatch    = newError(KindAuthorization, "AddressMismatch", "account address does not match its derivation")
	ErrMissingSignature   = newError(KindAuthorization, "MissingSignature", "required signer did not sign")
	ErrIllegalOwner       = newError(KindAuthorization, "IllegalOwner", "account is not owned by the invoking program")
	ErrOwnerMismatch      = newError(KindAuthorization, "OwnerMismatch", "token account owner does not match authority")
	ErrAccountNotWritable = newError(KindAuthorization, "AccountNotWritable", "account was modified without being declared writable")
)

// State
var (
	ErrRecordNotFound     = newError(KindState, "RecordNotFound", "record does not exist")
	ErrDuplicateSeed      = newError(KindState, "DuplicateSeed", "record already exists for these seeds")
	ErrNotFrozen          = newError(KindState, "NotFrozen", "freeze period has not elapsed")
	ErrStakeLimitExceeded = newError(KindState, "StakeLimitExceeded", "maximum concurrent stakes reached")
	ErrNothingToUnstake   = newError(KindState, "NothingToUnstake", "no assets are staked")
	ErrNothingToClaim     = newError(KindState, "NothingToClaim", "no points to claim")
	ErrPoolLocked         = newError(KindState, "PoolLocked", "pool is locked")
	ErrNonZeroBalance     = newError(KindState, "NonZeroBalance", "account still holds tokens")
	ErrAccountExists      = newError(KindState, "AccountExists", "account already in use")
)

// Funds
var (
	ErrInsufficientFunds        = newError(KindFunds, "InsufficientFunds", "balance is lower than the requested amount")
	ErrSlippageExceeded         = newError(KindFunds, "SlippageExceeded", "amounts fall outside the caller's limits")
	ErrInsufficientFundsForRent = newError(KindFunds, "InsufficientFundsForRent", "account would fall below its rent-exempt minimum")
)

// Arithmetic
var (
	ErrArithmetic = newError(KindArithmetic, "ArithmeticError", "integer overflow or division by zero")
)

// Validation
var (
	ErrUnverifiedCollection = newError(KindValidation, "UnverifiedCollection", "asset is not part of a verified collection")
	ErrInvalidParameter     = newError(KindValidation, "InvalidParameter", "parameter out of range")
	ErrInvalidAmount        = newError(KindValidation, "InvalidAmount", "amount must be greater than zero")
	ErrInvalidPrice         = newError(KindValidation, "InvalidPrice", "price must be greater than zero")
	ErrMintMismatch         = newError(KindValidation, "MintMismatch", "token account mint does not match")
	ErrInvalidAccountData   = newError(KindValidation, "InvalidAccountData", "account holds unexpected data")
)

// Concurrency
var (
	ErrAccountInUse = newError(KindConcurrency, "AccountInUse", "account is locked by an in-flight operation")
)

// Errorf wraps sentinel with formatted context.
func Errorf(sentinel *Error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of the first protocol error in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// CodeOf returns the code of the first protocol error in err's chain.
func CodeOf(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Is reports whether err carries a protocol error with code.
func Is(err error, code string) bool {
	return code != "" && CodeOf(err) == code
}

package ledger

import (
	"fmt"
)

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific RuleError.
const (
	// ErrParse indicates a ledger record that does not follow the record
	// grammar.  Such records are skipped while scanning.
	ErrParse = ErrorKind("ErrParse")

	// ErrHashMismatch indicates the stored proof of work is not the hash of
	// the block's canonical payload.
	ErrHashMismatch = ErrorKind("ErrHashMismatch")

	// ErrDifficultyNotMet indicates the proof of work does not start with
	// the required number of zero hex digits.
	ErrDifficultyNotMet = ErrorKind("ErrDifficultyNotMet")

	// ErrChainLinkMismatch indicates a block's prev_hash does not match the
	// proof of work of the previous block of the same username, or the
	// genesis value for the first block.
	ErrChainLinkMismatch = ErrorKind("ErrChainLinkMismatch")

	// ErrSignatureInvalid indicates the signature does not verify against
	// any published public key of the block's identity.
	ErrSignatureInvalid = ErrorKind("ErrSignatureInvalid")

	// ErrNonceExhausted indicates every nonce was tried without meeting the
	// difficulty.
	ErrNonceExhausted = ErrorKind("ErrNonceExhausted")

	// ErrBadDifficulty indicates a difficulty outside [0, HashLen].
	ErrBadDifficulty = ErrorKind("ErrBadDifficulty")

	// ErrIO indicates a filesystem failure while reading or writing the
	// ledger file.
	ErrIO = ErrorKind("ErrIO")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// RuleError identifies a rule violation.  It has full support for errors.Is
// and errors.As, so the caller can ascertain the specific reason for the
// error by checking the underlying error.
type RuleError struct {
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e RuleError) Unwrap() error {
	return e.Err
}

// ruleError creates a RuleError given a set of arguments.
func ruleError(kind ErrorKind, desc string) RuleError {
	return RuleError{Err: kind, Description: desc}
}

// ChainError reports the first invalid block found while replaying a chain.
type ChainError struct {
	Username string
	Index    int
	Err      error
}

// Error satisfies the error interface and prints human-readable errors.
func (e *ChainError) Error() string {
	return fmt.Sprintf("chain %q: block %d invalid: %v", e.Username, e.Index, e.Err)
}

// Unwrap returns the underlying wrapped error.
func (e *ChainError) Unwrap() error {
	return e.Err
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

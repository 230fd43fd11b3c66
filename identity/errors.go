package identity

import "fmt"

// ErrorKind identifies a kind of error.  It has full support for errors.Is and
// errors.As, so the caller can directly check against an error kind when
// determining the reason for an error.
type ErrorKind string

// These constants are used to identify a specific IdentityError.
const (
	// ErrIdentity indicates a key could not be generated, encoded or
	// decoded.
	ErrIdentity = ErrorKind("ErrIdentity")

	// ErrKeyNotFound indicates no key exists for the requested username.
	ErrKeyNotFound = ErrorKind("ErrKeyNotFound")

	// ErrInvalidUsername indicates a username that cannot be used as an
	// identity.
	ErrInvalidUsername = ErrorKind("ErrInvalidUsername")

	// ErrIO indicates a filesystem failure while reading or writing key
	// material.
	ErrIO = ErrorKind("ErrIO")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}

// IdentityError describes a failure for a specific username.
type IdentityError struct {
	Description string
	Err         error
}

// Error satisfies the error interface and prints human-readable errors.
func (e IdentityError) Error() string {
	return e.Description
}

// Unwrap returns the underlying wrapped error.
func (e IdentityError) Unwrap() error {
	return e.Err
}

func identityError(kind ErrorKind, desc string) IdentityError {
	return IdentityError{Err: kind, Description: desc}
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

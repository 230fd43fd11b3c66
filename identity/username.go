package identity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/luca-patrignani/scoreledger/ledger"
)

// forbiddenChars are the payload separator, the record quote and escape
// characters, and path separators.
const forbiddenChars = `|"\/`

// ValidateUsername rejects usernames that could corrupt the canonical payload,
// the ledger record, or the public key path.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return identityError(ErrInvalidUsername, "username is empty")
	case len(username) > ledger.MaxUsernameLen:
		str := fmt.Sprintf("username %q is %d bytes, max %d", username,
			len(username), ledger.MaxUsernameLen)
		return identityError(ErrInvalidUsername, str)
	case strings.ContainsAny(username, forbiddenChars):
		str := fmt.Sprintf("username %q contains one of %s", username, forbiddenChars)
		return identityError(ErrInvalidUsername, str)
	case username == "." || username == ".." || strings.Contains(username, ".."):
		str := fmt.Sprintf("username %q contains a relative path element", username)
		return identityError(ErrInvalidUsername, str)
	}
	for _, r := range username {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			str := fmt.Sprintf("username %q contains a control or invalid character", username)
			return identityError(ErrInvalidUsername, str)
		}
	}
	return nil
}

// Normalize strips the automated-play suffix from username, so that automated
// and interactive sessions of the same player share one identity. A username
// that consists only of the suffix is returned unchanged.
func Normalize(username, suffix string) string {
	if suffix == "" {
		return username
	}
	base, ok := strings.CutSuffix(username, suffix)
	if !ok || base == "" {
		return username
	}
	return base
}

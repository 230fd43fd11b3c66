package ledger

import (
	"errors"
	"io/fs"
	"testing"
)

// TestErrorKindStringer tests the stringized output for the ErrorKind type.
func TestErrorKindStringer(t *testing.T) {
	tests := []struct {
		in   ErrorKind
		want string
	}{
		{ErrParse, "ErrParse"},
		{ErrHashMismatch, "ErrHashMismatch"},
		{ErrDifficultyNotMet, "ErrDifficultyNotMet"},
		{ErrChainLinkMismatch, "ErrChainLinkMismatch"},
		{ErrSignatureInvalid, "ErrSignatureInvalid"},
		{ErrNonceExhausted, "ErrNonceExhausted"},
		{ErrBadDifficulty, "ErrBadDifficulty"},
		{ErrIO, "ErrIO"},
	}

	for i, test := range tests {
		result := test.in.Error()
		if result != test.want {
			t.Errorf("#%d: got: %s want: %s", i, result, test.want)
		}
	}
}

// TestErrorKindIsAs ensures both ErrorKind and RuleError can be identified
// through a ChainError.
func TestErrorKindIsAs(t *testing.T) {
	err := error(&ChainError{
		Username: "alice",
		Index:    3,
		Err:      ruleError(ErrHashMismatch, "mismatch"),
	})

	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected %v to be ErrHashMismatch", err)
	}
	if errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("did not expect %v to be ErrSignatureInvalid", err)
	}
	var rerr RuleError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected %v to unwrap to a RuleError", err)
	}
	if rerr.Description != "mismatch" {
		t.Fatalf("unexpected description %q", rerr.Description)
	}
	want := `chain "alice": block 3 invalid: mismatch`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestIOErrorWraps(t *testing.T) {
	err := ioError("open ledger", fs.ErrPermission)
	if !errors.Is(err, ErrIO) || !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("expected %v to wrap ErrIO and fs.ErrPermission", err)
	}
}

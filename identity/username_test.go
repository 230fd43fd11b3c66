package identity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	tests := []struct {
		name     string
		username string
		valid    bool
	}{
		{"simple", "alice", true},
		{"spaces", "Player One", true},
		{"unicode", "jörg", true},
		{"dots", "a.b", true},
		{"max length", strings.Repeat("x", 49), true},
		{"empty", "", false},
		{"too long", strings.Repeat("x", 50), false},
		{"pipe", "a|b", false},
		{"quote", `a"b`, false},
		{"backslash", `a\b`, false},
		{"slash", "a/b", false},
		{"dotdot", "..", false},
		{"embedded dotdot", "a..b", false},
		{"newline", "a\nb", false},
		{"tab", "a\tb", false},
		{"invalid utf8", "a\xffb", false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateUsername(test.username)
			if test.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidUsername)
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		username, suffix, want string
	}{
		{"aliceDevAI", "DevAI", "alice"},
		{"alice", "DevAI", "alice"},
		{"DevAI", "DevAI", "DevAI"},
		{"aliceDevAIDevAI", "DevAI", "aliceDevAI"},
		{"aliceDevAI", "", "aliceDevAI"},
		{"DevAIalice", "DevAI", "DevAIalice"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, Normalize(test.username, test.suffix),
			"Normalize(%q, %q)", test.username, test.suffix)
	}
}

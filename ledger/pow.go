package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
)

// DefaultDifficulty is the number of leading zero hex digits every miner and
// validator agrees on unless configured otherwise.
const DefaultDifficulty = 4

// Hash returns the lowercase hex SHA-256 digest of payload.
func Hash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// ComputeHash hashes the block's canonical payload.
func (b *ScoreBlock) ComputeHash() string {
	return Hash(b.CanonicalPayload())
}

// MeetsDifficulty reports whether hash starts with difficulty '0' characters.
func MeetsDifficulty(hash string, difficulty int) bool {
	if difficulty > len(hash) {
		return false
	}
	for i := 0; i < difficulty; i++ {
		if hash[i] != '0' {
			return false
		}
	}
	return true
}

func checkDifficulty(difficulty int) error {
	if difficulty < 0 || difficulty > HashLen {
		str := fmt.Sprintf("difficulty %d is outside [0, %d]", difficulty, HashLen)
		return ruleError(ErrBadDifficulty, str)
	}
	return nil
}

// Mine searches nonces from zero upward until the block's hash has the
// required number of leading zero hex digits, then stores the nonce and the
// hash in the block. It blocks the caller until a nonce is found; the expected
// work is about 16^difficulty hashes.
func Mine(b *ScoreBlock, difficulty int) error {
	if err := checkDifficulty(difficulty); err != nil {
		return err
	}

	prefix := b.payloadPrefix()
	n := len(prefix)
	for nonce := uint64(0); nonce <= math.MaxUint32; nonce++ {
		payload := strconv.AppendUint(prefix[:n], nonce, 10)
		hash := Hash(payload)
		if MeetsDifficulty(hash, difficulty) {
			b.Nonce = uint32(nonce)
			b.ProofOfWork = hash
			return nil
		}
	}

	str := fmt.Sprintf("no nonce satisfies difficulty %d for %q", difficulty, b.Username)
	return ruleError(ErrNonceExhausted, str)
}

package ledger

import (
	"fmt"
	"iter"
)

// SignatureVerifier reports whether a block's signature verifies against a
// published public key of the block's identity. Implementations must not
// fail on malformed input; they return false instead.
type SignatureVerifier interface {
	VerifyBlock(b *ScoreBlock) bool
}

// ValidateBlock checks the rules that apply to a block on its own: the stored
// proof of work is the hash of the canonical payload, the hash meets the
// difficulty, and the signature verifies. A nil verifier fails every
// signature.
func ValidateBlock(b *ScoreBlock, difficulty int, v SignatureVerifier) error {
	computed := b.ComputeHash()
	if computed != b.ProofOfWork {
		str := fmt.Sprintf("stored proof of work %s does not match computed %s",
			b.ProofOfWork, computed)
		return ruleError(ErrHashMismatch, str)
	}
	if !MeetsDifficulty(b.ProofOfWork, difficulty) {
		str := fmt.Sprintf("proof of work %s has fewer than %d leading zeros",
			b.ProofOfWork, difficulty)
		return ruleError(ErrDifficultyNotMet, str)
	}
	if v == nil || !v.VerifyBlock(b) {
		str := fmt.Sprintf("signature of %q does not verify", b.Username)
		return ruleError(ErrSignatureInvalid, str)
	}
	return nil
}

// ValidateChain replays the blocks of a single username in ledger order.
//
// Verification checks:
//   - Block 0 has the genesis prev_hash
//   - Every later block's prev_hash is the previous block's proof of work
//   - Every block passes ValidateBlock
//
// It stops at the first invalid block and returns a *ChainError naming the
// block index and wrapping the failed rule.
func ValidateChain(blocks []ScoreBlock, difficulty int, v SignatureVerifier) error {
	prevHash := GenesisHash
	for i := range blocks {
		b := &blocks[i]
		if b.PrevHash != prevHash {
			str := fmt.Sprintf("prev_hash %s, expected %s", b.PrevHash, prevHash)
			return &ChainError{Username: b.Username, Index: i, Err: ruleError(ErrChainLinkMismatch, str)}
		}
		if err := ValidateBlock(b, difficulty, v); err != nil {
			return &ChainError{Username: b.Username, Index: i, Err: err}
		}
		prevHash = b.ProofOfWork
	}
	return nil
}

// ChainStatus is the audit result for one username's chain.
type ChainStatus struct {
	Username string
	Blocks   int
	// Err is nil for a valid chain, otherwise a *ChainError.
	Err error
}

// AuditReport summarizes a replay of the whole ledger.
type AuditReport struct {
	Records int
	Chains  []ChainStatus
}

// Valid reports whether every chain in the report is valid.
func (r AuditReport) Valid() bool {
	for _, c := range r.Chains {
		if c.Err != nil {
			return false
		}
	}
	return true
}

// Audit replays every chain in blocks. Chains are keyed by exact username and
// reported in order of first appearance.
func Audit(blocks iter.Seq2[ScoreBlock, error], difficulty int, v SignatureVerifier) (AuditReport, error) {
	var (
		report AuditReport
		order  []string
	)
	chains := make(map[string][]ScoreBlock)
	for b, err := range blocks {
		if err != nil {
			return AuditReport{}, err
		}
		report.Records++
		if _, ok := chains[b.Username]; !ok {
			order = append(order, b.Username)
		}
		chains[b.Username] = append(chains[b.Username], b)
	}

	report.Chains = make([]ChainStatus, 0, len(order))
	for _, username := range order {
		chain := chains[username]
		report.Chains = append(report.Chains, ChainStatus{
			Username: username,
			Blocks:   len(chain),
			Err:      ValidateChain(chain, difficulty, v),
		})
	}
	return report, nil
}

package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// testDifficulty keeps mining fast in tests while still exercising the loop.
const testDifficulty = 2

// digestVerifier accepts a block when its signature is the hash of the
// canonical payload prefixed with "sig:". It stands in for a real key.
type digestVerifier struct{}

func (digestVerifier) VerifyBlock(b *ScoreBlock) bool {
	return b.Signature == fakeSign(b)
}

func fakeSign(b *ScoreBlock) string {
	return Hash(append([]byte("sig:"), b.CanonicalPayload()...))
}

// mineChain builds a mined and fake-signed chain for username with the
// given scores.
func mineChain(t *testing.T, username string, scores ...int64) []ScoreBlock {
	t.Helper()
	var (
		chain []ScoreBlock
		prev  *ScoreBlock
	)
	for i, score := range scores {
		b := NewBlock(username, score, 1700000000+int64(i), prev)
		require.NoError(t, Mine(&b, testDifficulty))
		b.Signature = fakeSign(&b)
		chain = append(chain, b)
		prev = &chain[len(chain)-1]
	}
	return chain
}

// TestGenesisBlockValidates verifies that a block built without a predecessor
// carries the all-zero prev_hash and passes as index 0.
func TestGenesisBlockValidates(t *testing.T) {
	chain := mineChain(t, "alice", 42)

	require.Equal(t, GenesisHash, chain[0].PrevHash)
	require.Len(t, chain[0].PrevHash, HashLen)
	require.True(t, chain[0].IsGenesis())
	require.NoError(t, ValidateChain(chain, testDifficulty, digestVerifier{}))
}

// TestChainLinkage verifies prev_hash(b_i) == proof_of_work(b_{i-1}).
func TestChainLinkage(t *testing.T) {
	chain := mineChain(t, "alice", 10, 20, 30, 40)

	for i := 1; i < len(chain); i++ {
		require.Equal(t, chain[i-1].ProofOfWork, chain[i].PrevHash, "block %d", i)
	}
	require.NoError(t, ValidateChain(chain, testDifficulty, digestVerifier{}))
}

// TestValidateChainFailures checks that each rule violation is reported with
// the right kind and index.
func TestValidateChainFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(chain []ScoreBlock)
		index  int
		kind   ErrorKind
	}{{
		name:   "genesis with non-zero prev_hash",
		mutate: func(c []ScoreBlock) { c[0].PrevHash = c[1].ProofOfWork },
		index:  0,
		kind:   ErrChainLinkMismatch,
	}, {
		name:   "broken link",
		mutate: func(c []ScoreBlock) { c[2].PrevHash = c[0].ProofOfWork },
		index:  2,
		kind:   ErrChainLinkMismatch,
	}, {
		name:   "tampered score",
		mutate: func(c []ScoreBlock) { c[1].Score++ },
		index:  1,
		kind:   ErrHashMismatch,
	}, {
		name: "difficulty not met",
		mutate: func(c []ScoreBlock) {
			// Re-mine the last block at zero difficulty until the hash
			// misses the required prefix.
			b := &c[2]
			for b.Nonce = 0; ; b.Nonce++ {
				b.ProofOfWork = b.ComputeHash()
				if !MeetsDifficulty(b.ProofOfWork, testDifficulty) {
					break
				}
			}
			b.Signature = fakeSign(b)
		},
		index: 2,
		kind:  ErrDifficultyNotMet,
	}, {
		name:   "bad signature",
		mutate: func(c []ScoreBlock) { c[1].Signature = "00" },
		index:  1,
		kind:   ErrSignatureInvalid,
	}}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			chain := mineChain(t, "bob", 1, 2, 3)
			test.mutate(chain)

			err := ValidateChain(chain, testDifficulty, digestVerifier{})
			require.Error(t, err)
			require.ErrorIs(t, err, test.kind)

			var chainErr *ChainError
			require.True(t, errors.As(err, &chainErr))
			require.Equal(t, test.index, chainErr.Index)
			require.Equal(t, "bob", chainErr.Username)
		})
	}
}

// TestValidateBlockNilVerifier ensures that without a verifier no block is
// accepted.
func TestValidateBlockNilVerifier(t *testing.T) {
	chain := mineChain(t, "carol", 5)
	require.ErrorIs(t, ValidateBlock(&chain[0], testDifficulty, nil), ErrSignatureInvalid)
}

// TestAudit replays an interleaved ledger with one broken chain.
func TestAudit(t *testing.T) {
	alice := mineChain(t, "alice", 1, 2)
	bob := mineChain(t, "bob", 3, 4)
	bob[1].PrevHash = GenesisHash

	interleaved := []ScoreBlock{alice[0], bob[0], alice[1], bob[1]}
	seq := func(yield func(ScoreBlock, error) bool) {
		for _, b := range interleaved {
			if !yield(b, nil) {
				return
			}
		}
	}

	report, err := Audit(seq, testDifficulty, digestVerifier{})
	require.NoError(t, err)
	require.Equal(t, 4, report.Records)
	require.False(t, report.Valid())
	require.Len(t, report.Chains, 2)

	require.Equal(t, "alice", report.Chains[0].Username)
	require.Equal(t, 2, report.Chains[0].Blocks)
	require.NoError(t, report.Chains[0].Err)

	require.Equal(t, "bob", report.Chains[1].Username)
	require.ErrorIs(t, report.Chains[1].Err, ErrChainLinkMismatch)
}

// TestAuditPropagatesScanError checks that an I/O failure aborts the audit.
func TestAuditPropagatesScanError(t *testing.T) {
	seq := func(yield func(ScoreBlock, error) bool) {
		yield(ScoreBlock{}, ioError("read ledger", errors.New("disk on fire")))
	}
	_, err := Audit(seq, testDifficulty, digestVerifier{})
	require.ErrorIs(t, err, ErrIO)
}

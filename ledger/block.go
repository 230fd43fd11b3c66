package ledger

import (
	"strconv"
	"strings"
	"time"
)

const (
	// MaxUsernameLen is the longest username, in bytes, a block may carry.
	MaxUsernameLen = 49

	// HashLen is the length of a hex encoded proof of work.
	HashLen = 64
)

// GenesisHash is the prev_hash of the first block of every username.
var GenesisHash = strings.Repeat("0", HashLen)

// ScoreBlock is one signed, mined, hash-linked score record.
type ScoreBlock struct {
	Username    string `json:"username"`
	Score       int64  `json:"score"`
	Timestamp   int64  `json:"timestamp"`
	ProofOfWork string `json:"proof_of_work"`
	Signature   string `json:"signature"`
	PrevHash    string `json:"prev_hash"`
	Nonce       uint32 `json:"nonce"`
}

// NewBlock assembles an unmined, unsigned block linked to prev. A nil prev
// makes it a genesis block. A zero timestamp is replaced by the current time.
func NewBlock(username string, score, timestamp int64, prev *ScoreBlock) ScoreBlock {
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	prevHash := GenesisHash
	if prev != nil {
		prevHash = prev.ProofOfWork
	}
	return ScoreBlock{
		Username:  username,
		Score:     score,
		Timestamp: timestamp,
		PrevHash:  prevHash,
	}
}

// IsGenesis reports whether the block starts a chain.
func (b *ScoreBlock) IsGenesis() bool {
	return b.PrevHash == GenesisHash
}

// CanonicalPayload returns the bytes that are hashed for the proof of work
// and signed by the identity.
func (b *ScoreBlock) CanonicalPayload() []byte {
	return strconv.AppendUint(b.payloadPrefix(), uint64(b.Nonce), 10)
}

// payloadPrefix is the canonical payload up to, and including, the separator
// in front of the nonce.
func (b *ScoreBlock) payloadPrefix() []byte {
	buf := make([]byte, 0, len(b.Username)+len(b.PrevHash)+64)
	buf = append(buf, b.Username...)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, b.Score, 10)
	buf = append(buf, '|')
	buf = strconv.AppendInt(buf, b.Timestamp, 10)
	buf = append(buf, '|')
	buf = append(buf, b.PrevHash...)
	buf = append(buf, '|')
	return buf
}

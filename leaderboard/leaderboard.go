package leaderboard

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/luca-patrignani/scoreledger/identity"
	"github.com/luca-patrignani/scoreledger/ledger"
)

// DefaultCacheSize is the number of verified blocks remembered between
// queries.
const DefaultCacheSize = 4096

// Entry is one ranked identity.
type Entry struct {
	Username string
	Score    int64
	// Timestamp is when the best score was recorded.
	Timestamp int64
}

// Scanner is the ledger as seen by the aggregator.
type Scanner interface {
	Scan() iter.Seq2[ledger.ScoreBlock, error]
}

// Options configures an Aggregator.
type Options struct {
	// Difficulty every counted block must meet.
	Difficulty int
	// AutoSuffix marks automated sessions. It is stripped from usernames
	// before grouping.
	AutoSuffix string
	// CacheSize bounds the verification cache. Zero selects
	// DefaultCacheSize.
	CacheSize int
	Logger    *slog.Logger
}

// Aggregator computes rankings over a ledger.
type Aggregator struct {
	src      Scanner
	verifier *cachedVerifier
	opts     Options
	log      *slog.Logger
}

// New returns an Aggregator that reads blocks from src and checks signatures
// with v.
func New(src Scanner, v ledger.SignatureVerifier, opts Options) (*Aggregator, error) {
	if opts.Difficulty < 0 || opts.Difficulty > ledger.HashLen {
		return nil, fmt.Errorf("%w: difficulty %d outside [0, %d]",
			ledger.ErrBadDifficulty, opts.Difficulty, ledger.HashLen)
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cv, err := newCachedVerifier(v, opts.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Aggregator{src: src, verifier: cv, opts: opts, log: logger}, nil
}

// best scans the ledger and returns the best verified block of each identity
// in order of first verified appearance.
func (a *Aggregator) best() ([]Entry, error) {
	var order []string
	best := make(map[string]Entry)
	for b, err := range a.src.Scan() {
		if err != nil {
			return nil, err
		}
		id := identity.Normalize(b.Username, a.opts.AutoSuffix)
		cur, seen := best[id]
		if seen && b.Score <= cur.Score {
			continue
		}
		if err := ledger.ValidateBlock(&b, a.opts.Difficulty, a.verifier); err != nil {
			a.log.Debug("excluding invalid block", "username", b.Username,
				"score", b.Score, "err", err)
			continue
		}
		if !seen {
			order = append(order, id)
		}
		best[id] = Entry{Username: id, Score: b.Score, Timestamp: b.Timestamp}
	}

	entries := make([]Entry, 0, len(order))
	for _, id := range order {
		entries = append(entries, best[id])
	}
	return entries, nil
}

// Top returns the best verified score of each identity, highest first. Equal
// scores keep the order in which the identities first appear in the ledger.
// A limit of zero or less returns every identity.
func (a *Aggregator) Top(limit int) ([]Entry, error) {
	entries, err := a.best()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// BestScore returns the best verified score of the identity username belongs
// to, or zero when it has none.
func (a *Aggregator) BestScore(username string) (int64, error) {
	id := identity.Normalize(username, a.opts.AutoSuffix)
	match := func(u string) bool {
		return identity.Normalize(u, a.opts.AutoSuffix) == id
	}
	b, found, err := ledger.BestVerified(a.src.Scan(), match, a.opts.Difficulty, a.verifier)
	if err != nil || !found {
		return 0, err
	}
	return b.Score, nil
}

// cachedVerifier remembers blocks whose signature verified. The key is the
// proof of work and the signature; ValidateBlock only asks for a signature
// after the proof of work has been checked against the payload, so the key
// identifies the signed content. Failures are not cached, so a key published
// later is picked up on the next query.
type cachedVerifier struct {
	next  ledger.SignatureVerifier
	valid *lru.Cache[string, struct{}]
}

func newCachedVerifier(next ledger.SignatureVerifier, size int) (*cachedVerifier, error) {
	valid, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, fmt.Errorf("verification cache: %w", err)
	}
	return &cachedVerifier{next: next, valid: valid}, nil
}

func (c *cachedVerifier) VerifyBlock(b *ledger.ScoreBlock) bool {
	if c.next == nil {
		return false
	}
	key := b.ProofOfWork + ":" + b.Signature
	if c.valid.Contains(key) {
		return true
	}
	if !c.next.VerifyBlock(b) {
		return false
	}
	c.valid.Add(key, struct{}{})
	return true
}

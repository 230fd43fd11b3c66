// Package application wires the ledger, the identity store and the
// leaderboard into the operations the game calls at game over and when it
// shows scores.
package application

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/luca-patrignani/scoreledger/config"
	"github.com/luca-patrignani/scoreledger/identity"
	"github.com/luca-patrignani/scoreledger/leaderboard"
	"github.com/luca-patrignani/scoreledger/ledger"
)

// Highscores records and ranks scores. It assumes a single writer per ledger
// file.
type Highscores struct {
	difficulty int
	ledger     *ledger.Ledger
	keys       *identity.Store
	board      *leaderboard.Aggregator
	log        *slog.Logger
}

// New builds a Highscores from a validated configuration. Nothing is read or
// written until the first operation.
func New(cfg *config.Config, logger *slog.Logger) (*Highscores, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	keyType, err := identity.ParseKeyType(cfg.KeyType)
	if err != nil {
		return nil, err
	}

	keys, err := identity.NewStore(identity.StoreConfig{
		PrivateKeyFile: cfg.KeyFile,
		PublicKeyDir:   cfg.PubKeyPath(),
		KeyType:        keyType,
		AutoSuffix:     cfg.AutoSuffix,
		CacheSize:      cfg.KeyCacheSize,
		Logger:         logger.With("component", "identity"),
	})
	if err != nil {
		return nil, err
	}

	l := ledger.Open(cfg.LedgerPath(), logger.With("component", "ledger"))
	board, err := leaderboard.New(l, keys, leaderboard.Options{
		Difficulty: cfg.Difficulty,
		AutoSuffix: cfg.AutoSuffix,
		CacheSize:  cfg.VerifyCacheSize,
		Logger:     logger.With("component", "leaderboard"),
	})
	if err != nil {
		return nil, err
	}

	return &Highscores{
		difficulty: cfg.Difficulty,
		ledger:     l,
		keys:       keys,
		board:      board,
		log:        logger,
	}, nil
}

// SubmitScore mines, signs and appends a block recording score for username.
// A zero timestamp is replaced by the current time. The block links to the
// last block of the same username in the ledger.
//
// Failures are logged and returned. The caller may ignore them: the score is
// then simply not recorded.
func (h *Highscores) SubmitScore(username string, score, timestamp int64) (ledger.ScoreBlock, error) {
	b, err := h.submit(username, score, timestamp)
	if err != nil {
		h.log.Error("failed to record score", "username", username, "score", score, "err", err)
		return ledger.ScoreBlock{}, err
	}
	h.log.Info("score recorded", "username", username, "score", score,
		"nonce", b.Nonce, "proof_of_work", b.ProofOfWork)
	return b, nil
}

func (h *Highscores) submit(username string, score, timestamp int64) (ledger.ScoreBlock, error) {
	if err := identity.ValidateUsername(username); err != nil {
		return ledger.ScoreBlock{}, err
	}
	id := h.keys.Identity(username)
	status, err := h.keys.Ensure(id)
	if err != nil {
		return ledger.ScoreBlock{}, err
	}
	if status == identity.StatusRegenerated {
		h.log.Info("created identity", "identity", id, "public_key", h.keys.PublicKeyPath(id))
	}

	var prevPtr *ledger.ScoreBlock
	prev, found, err := h.ledger.LastForUser(username)
	if err != nil {
		return ledger.ScoreBlock{}, err
	}
	if found {
		prevPtr = &prev
	}

	b := ledger.NewBlock(username, score, timestamp, prevPtr)
	h.log.Debug("mining block", "username", username, "difficulty", h.difficulty,
		"prev_hash", b.PrevHash)
	if err := ledger.Mine(&b, h.difficulty); err != nil {
		return ledger.ScoreBlock{}, err
	}
	if err := h.keys.SignBlock(&b); err != nil {
		return ledger.ScoreBlock{}, err
	}
	if err := h.ledger.Append(b); err != nil {
		return ledger.ScoreBlock{}, err
	}
	return b, nil
}

// VerifiedTopScore returns the best verified score of the identity username
// belongs to, or zero.
func (h *Highscores) VerifiedTopScore(username string) (int64, error) {
	return h.board.BestScore(username)
}

// Leaderboard returns the top limit identities by best verified score. A
// limit of zero or less returns all of them.
func (h *Highscores) Leaderboard(limit int) ([]leaderboard.Entry, error) {
	return h.board.Top(limit)
}

// Audit replays every chain in the ledger.
func (h *Highscores) Audit() (ledger.AuditReport, error) {
	return ledger.Audit(h.ledger.Scan(), h.difficulty, h.keys)
}

// Keygen makes sure username has a keypair. With force set a new keypair is
// generated even when a usable one exists.
func (h *Highscores) Keygen(username string, force bool) (identity.Status, error) {
	id := h.keys.Identity(username)
	if !force {
		return h.keys.Ensure(id)
	}
	if err := h.keys.Regenerate(id); err != nil {
		return identity.StatusOK, err
	}
	return identity.StatusRegenerated, nil
}

// PublicKeyPath returns where the public key of username's identity is
// published.
func (h *Highscores) PublicKeyPath(username string) string {
	return h.keys.PublicKeyPath(h.keys.Identity(username))
}

// LedgerPath returns the ledger file location.
func (h *Highscores) LedgerPath() string {
	return h.ledger.Path()
}

// UpdateReadme rewrites the high score table of the Markdown file at path
// with the top limit entries. The badge section is updated too when the file
// has its markers.
func (h *Highscores) UpdateReadme(path string, limit int) ([]leaderboard.Entry, error) {
	entries, err := h.board.Top(limit)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := leaderboard.UpdateSection(string(data), leaderboard.TableStart,
		leaderboard.TableEnd, leaderboard.Markdown(entries))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	withBadges, err := leaderboard.UpdateSection(doc, leaderboard.BadgeStart,
		leaderboard.BadgeEnd, leaderboard.Badges(entries))
	switch {
	case err == nil:
		doc = withBadges
	case errors.Is(err, leaderboard.ErrMarkersNotFound):
		h.log.Debug("no badge section", "path", path)
	default:
		return nil, err
	}

	if err := os.WriteFile(path, []byte(doc), info.Mode().Perm()); err != nil {
		return nil, err
	}
	return entries, nil
}

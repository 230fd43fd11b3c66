package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luca-patrignani/scoreledger/config"
	"github.com/luca-patrignani/scoreledger/identity"
	"github.com/luca-patrignani/scoreledger/leaderboard"
	"github.com/luca-patrignani/scoreledger/ledger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = filepath.Join(dir, "highscore")
	cfg.KeyFile = filepath.Join(dir, ".username")
	cfg.Difficulty = 2
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestHighscores(t *testing.T) (*Highscores, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	h, err := New(cfg, nil)
	require.NoError(t, err)
	return h, cfg
}

func submit(t *testing.T, h *Highscores, username string, score int64) ledger.ScoreBlock {
	t.Helper()
	b, err := h.SubmitScore(username, score, 0)
	require.NoError(t, err)
	return b
}

// TestSubmitChainsBlocks records several scores and checks that each
// username's blocks form a valid chain.
func TestSubmitChainsBlocks(t *testing.T) {
	h, _ := newTestHighscores(t)

	a1 := submit(t, h, "alice", 10)
	a2 := submit(t, h, "alice", 30)
	b1 := submit(t, h, "bob", 20)

	require.Equal(t, ledger.GenesisHash, a1.PrevHash)
	require.Equal(t, a1.ProofOfWork, a2.PrevHash)
	require.Equal(t, ledger.GenesisHash, b1.PrevHash)
	require.True(t, ledger.MeetsDifficulty(a2.ProofOfWork, 2))
	require.NotZero(t, a1.Timestamp)

	report, err := h.Audit()
	require.NoError(t, err)
	require.Equal(t, 3, report.Records)
	require.True(t, report.Valid())
	require.Len(t, report.Chains, 2)

	top, err := h.VerifiedTopScore("alice")
	require.NoError(t, err)
	require.Equal(t, int64(30), top)

	entries, err := h.Leaderboard(0)
	require.NoError(t, err)
	require.Equal(t, []string{"alice", "bob"}, []string{entries[0].Username, entries[1].Username})
}

// TestSubmitExplicitTimestamp keeps a caller supplied timestamp.
func TestSubmitExplicitTimestamp(t *testing.T) {
	h, _ := newTestHighscores(t)
	b, err := h.SubmitScore("carol", 5, 1700000000)
	require.NoError(t, err)
	require.Equal(t, int64(1700000000), b.Timestamp)
}

func TestSubmitRejectsUsername(t *testing.T) {
	h, _ := newTestHighscores(t)
	_, err := h.SubmitScore("a|b", 5, 0)
	require.ErrorIs(t, err, identity.ErrInvalidUsername)

	_, err = os.Stat(h.LedgerPath())
	require.True(t, os.IsNotExist(err))
}

// TestAutomatedSessionsShareIdentity credits suffixed usernames to the base
// identity while keeping their own chain.
func TestAutomatedSessionsShareIdentity(t *testing.T) {
	h, cfg := newTestHighscores(t)
	submit(t, h, "alice", 10)
	auto := submit(t, h, "aliceDevAI", 40)

	require.Equal(t, ledger.GenesisHash, auto.PrevHash)
	_, err := os.Stat(filepath.Join(cfg.PubKeyPath(), "aliceDevAI_public.pem"))
	require.True(t, os.IsNotExist(err))

	top, err := h.VerifiedTopScore("alice")
	require.NoError(t, err)
	require.Equal(t, int64(40), top)

	entries, err := h.Leaderboard(0)
	require.NoError(t, err)
	require.Equal(t, []leaderboard.Entry{{Username: "alice", Score: 40, Timestamp: auto.Timestamp}}, entries)
}

// TestTamperedLedgerExcluded edits a record on disk and checks that the
// forged score is neither ranked nor passes the audit.
func TestTamperedLedgerExcluded(t *testing.T) {
	h, _ := newTestHighscores(t)
	submit(t, h, "alice", 10)
	submit(t, h, "bob", 20)

	blocks, err := ledger.Open(h.LedgerPath(), nil).All()
	require.NoError(t, err)
	blocks[1].Score = 9000
	var data []byte
	for _, b := range blocks {
		rec, err := b.MarshalRecord()
		require.NoError(t, err)
		data = append(append(data, rec...), '\n')
	}
	require.NoError(t, os.WriteFile(h.LedgerPath(), data, 0644))

	entries, err := h.Leaderboard(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "alice", entries[0].Username)

	report, err := h.Audit()
	require.NoError(t, err)
	require.False(t, report.Valid())
	require.ErrorIs(t, report.Chains[1].Err, ledger.ErrHashMismatch)
}

// TestScoresSurviveKeyRotation regenerates the key between submissions and
// checks that both scores still verify.
func TestScoresSurviveKeyRotation(t *testing.T) {
	h, _ := newTestHighscores(t)
	submit(t, h, "alice", 50)

	status, err := h.Keygen("alice", true)
	require.NoError(t, err)
	require.Equal(t, identity.StatusRegenerated, status)
	submit(t, h, "alice", 20)

	report, err := h.Audit()
	require.NoError(t, err)
	require.True(t, report.Valid())

	top, err := h.VerifiedTopScore("alice")
	require.NoError(t, err)
	require.Equal(t, int64(50), top)
}

func TestKeygen(t *testing.T) {
	h, _ := newTestHighscores(t)

	status, err := h.Keygen("dora", false)
	require.NoError(t, err)
	require.Equal(t, identity.StatusRegenerated, status)

	status, err = h.Keygen("dora", false)
	require.NoError(t, err)
	require.Equal(t, identity.StatusOK, status)

	_, err = os.Stat(h.PublicKeyPath("doraDevAI"))
	require.NoError(t, err)

	_, err = h.Keygen("", false)
	require.ErrorIs(t, err, identity.ErrInvalidUsername)
}

func TestUpdateReadme(t *testing.T) {
	h, _ := newTestHighscores(t)
	submit(t, h, "alice", 100)
	submit(t, h, "bob", 10)

	path := filepath.Join(t.TempDir(), "README.md")
	doc := "# Game\n" +
		leaderboard.TableStart + "\n" + leaderboard.TableEnd + "\n" +
		leaderboard.BadgeStart + "\n" + leaderboard.BadgeEnd + "\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	entries, err := h.UpdateReadme(path, 3)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(got), leaderboard.Markdown(entries))
	require.Contains(t, string(got), leaderboard.Badges(entries))
}

func TestUpdateReadmeWithoutMarkers(t *testing.T) {
	h, _ := newTestHighscores(t)
	path := filepath.Join(t.TempDir(), "README.md")
	require.NoError(t, os.WriteFile(path, []byte("# Game\n"), 0644))

	_, err := h.UpdateReadme(path, 3)
	require.ErrorIs(t, err, leaderboard.ErrMarkersNotFound)

	_, err = h.UpdateReadme(filepath.Join(t.TempDir(), "missing.md"), 3)
	require.Error(t, err)
}

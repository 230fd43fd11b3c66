package main

import (
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/scoreledger/leaderboard"
	"github.com/luca-patrignani/scoreledger/ledger"
)

func printBanner() {
	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Score", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("Ledger", pterm.FgDarkGray.ToStyle()),
	).Render()
}

// leaderboardData returns the rows of the ranking table, header first.
func leaderboardData(entries []leaderboard.Entry) [][]string {
	data := [][]string{{"Rank", "Player", "Score", "Recorded"}}
	for i, e := range entries {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			e.Username,
			strconv.FormatInt(e.Score, 10),
			formatTimestamp(e.Timestamp),
		})
	}
	return data
}

// auditData returns the rows of the audit table, header first.
func auditData(report ledger.AuditReport) [][]string {
	data := [][]string{{"Player", "Blocks", "Status"}}
	for _, c := range report.Chains {
		status := pterm.LightGreen("valid")
		if c.Err != nil {
			status = pterm.LightRed(c.Err.Error())
		}
		data = append(data, []string{c.Username, strconv.Itoa(c.Blocks), status})
	}
	return data
}

func blockBox(b ledger.ScoreBlock) string {
	pbox := pterm.DefaultBox.WithHorizontalPadding(4).WithTopPadding(1).WithBottomPadding(1)
	return pbox.WithTitle(pterm.LightCyan(b.Username)).WithTitleTopLeft().Sprintf(
		"Score: %d\nRecorded: %s\nNonce: %d\nProof of work: %s\nPrevious: %s",
		b.Score, formatTimestamp(b.Timestamp), b.Nonce, b.ProofOfWork, b.PrevHash)
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.DateTime)
}

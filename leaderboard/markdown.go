package leaderboard

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// README section markers.
const (
	TableStart = "<!-- TOP_HIGHSCORES_START -->"
	TableEnd   = "<!-- TOP_HIGHSCORES_END -->"
	BadgeStart = "<!-- HIGH_SCORE_BADGE_START -->"
	BadgeEnd   = "<!-- HIGH_SCORE_BADGE_END -->"
)

// ErrMarkersNotFound is returned by UpdateSection when the document lacks the
// start or end marker.
var ErrMarkersNotFound = errors.New("section markers not found")

var (
	podiumLabels = []string{"1st", "2nd", "3rd"}
	podiumColors = []string{"gold", "silver", "orange"}
	podiumEmojis = []string{":diamonds:", ":trophy:", ":star:"}
)

func displayName(username string) string {
	if username == "" {
		return "n/a"
	}
	return username
}

// Markdown renders entries as a ranked table. The first three ranks carry a
// podium emoji.
func Markdown(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString("| Rank | Username           | Score | Badge |\n")
	sb.WriteString("|------|--------------------|-------|-------|")
	for i, e := range entries {
		badge := ""
		if i < len(podiumEmojis) {
			badge = podiumEmojis[i]
		}
		name := strings.ReplaceAll(displayName(e.Username), "|", `\|`)
		fmt.Fprintf(&sb, "\n| %-4d | %-18s | %-5d | %s |", i+1, name, e.Score, badge)
	}
	return sb.String()
}

// Badges renders a shields.io badge line for each of the first three entries.
func Badges(entries []Entry) string {
	lines := make([]string, 0, len(podiumLabels))
	for i, e := range entries {
		if i == len(podiumLabels) {
			break
		}
		message := badgeEscape(displayName(e.Username) + "|" + strconv.FormatInt(e.Score, 10))
		badgeURL := "https://img.shields.io/badge/" + podiumLabels[i] + "-" + message + "-" + podiumColors[i]
		lines = append(lines, fmt.Sprintf("![%s Place %s](%s)", podiumLabels[i], podiumEmojis[i], badgeURL))
	}
	return strings.Join(lines, "\n")
}

// badgeEscape applies the shields.io static badge escaping: dashes and
// underscores are doubled, everything else is path escaped.
func badgeEscape(s string) string {
	s = strings.ReplaceAll(s, "-", "--")
	s = strings.ReplaceAll(s, "_", "__")
	return url.PathEscape(s)
}

// UpdateSection replaces everything between the first start marker and the
// following end marker of doc with body. The markers are kept, each on its
// own line around body.
func UpdateSection(doc, start, end, body string) (string, error) {
	i := strings.Index(doc, start)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkersNotFound, start)
	}
	rest := doc[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkersNotFound, end)
	}
	return doc[:i] + start + "\n" + body + "\n" + end + rest[j+len(end):], nil
}

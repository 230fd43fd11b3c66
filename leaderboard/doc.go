// Package leaderboard ranks identities by their best verified score.
//
// Every query replays the ledger. A block counts only when it passes
// ledger.ValidateBlock on its own: its proof of work matches its payload, meets
// the difficulty, and carries a valid signature. Blocks of automated sessions
// are credited to the base identity.
//
// The package also renders rankings as the Markdown table and badges shown in
// the project README.
package leaderboard

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/pterm/pterm"

	"github.com/luca-patrignani/scoreledger/application"
	"github.com/luca-patrignani/scoreledger/config"
	"github.com/luca-patrignani/scoreledger/identity"
)

// errAuditFailed is returned by the audit command when a chain is invalid.
var errAuditFailed = errors.New("ledger audit failed")

func main() {
	if err := run(os.Args[1:]); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, ferr.Message)
			os.Exit(0)
		}
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

// cli holds the state shared by the commands. The application is built by
// handle once options are parsed.
type cli struct {
	cfg      *config.Config
	log      *slog.Logger
	app      *application.Highscores
	closeLog func()
}

func run(args []string) error {
	c := &cli{cfg: config.Default(), closeLog: func() {}}
	defer func() { c.closeLog() }()

	parser := flags.NewParser(c.cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "scoreledger"
	parser.CommandHandler = c.handle

	commands := []struct {
		name, short, long string
		data              any
	}{
		{"submit", "Record a score", "Mine, sign and append a score block for a player.", &submitCommand{cli: c}},
		{"top", "Show a player's best verified score", "Print the best score of the player's identity that passes verification.", &topCommand{cli: c}},
		{"leaderboard", "Show the ranking", "Rank identities by their best verified score.", &leaderboardCommand{cli: c, Limit: config.DefaultLeaderboard}},
		{"audit", "Verify every chain", "Replay every player's chain and report broken links, bad proofs of work and bad signatures.", &auditCommand{cli: c}},
		{"keygen", "Create a player's keypair", "Generate the local private key and publish the public key of a player.", &keygenCommand{cli: c}},
		{"readme", "Update the README high score section", "Rewrite the high score table and badges between the README markers.", &readmeCommand{cli: c, File: "README.md", Limit: 3}},
	}
	for _, cmd := range commands {
		if _, err := parser.AddCommand(cmd.name, cmd.short, cmd.long, cmd.data); err != nil {
			return err
		}
	}

	if err := config.LoadFile(parser, args); err != nil {
		return err
	}
	_, err := parser.ParseArgs(args)
	return err
}

// handle validates the options and sets up logging and the application
// before running command.
func (c *cli) handle(command flags.Commander, args []string) error {
	if command == nil {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if c.cfg.NoColor {
		pterm.DisableColor()
	}

	logger, closeLog, err := newLogger(c.cfg)
	if err != nil {
		return err
	}
	c.log, c.closeLog = logger, closeLog

	app, err := application.New(c.cfg, logger)
	if err != nil {
		return err
	}
	c.app = app
	return command.Execute(args)
}

func noExtraArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}
	return nil
}

type submitCommand struct {
	cli *cli

	Timestamp int64 `long:"timestamp" description:"Unix time of the game over; defaults to now"`
	Args      struct {
		Username string `positional-arg-name:"username"`
		Score    int64  `positional-arg-name:"score"`
	} `positional-args:"yes" required:"yes"`
}

func (s *submitCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	text := fmt.Sprintf("Mining block for %s at difficulty %d ...", s.Args.Username, s.cli.cfg.Difficulty)
	spinner, _ := pterm.DefaultSpinner.Start(text)
	b, err := s.cli.app.SubmitScore(s.Args.Username, s.Args.Score, s.Timestamp)
	if err != nil {
		spinner.Fail("Score not recorded")
		return err
	}
	spinner.Success("Score recorded")
	pterm.Println(blockBox(b))
	return nil
}

type topCommand struct {
	cli *cli

	Args struct {
		Username string `positional-arg-name:"username"`
	} `positional-args:"yes" required:"yes"`
}

func (t *topCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	score, err := t.cli.app.VerifiedTopScore(t.Args.Username)
	if err != nil {
		return err
	}
	pterm.Info.Printfln("Best verified score of %s: %d", pterm.LightCyan(t.Args.Username), score)
	return nil
}

type leaderboardCommand struct {
	cli *cli

	Limit int `short:"n" long:"limit" description:"Number of players to show; 0 shows all"`
}

func (l *leaderboardCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	entries, err := l.cli.app.Leaderboard(l.Limit)
	if err != nil {
		return err
	}
	printBanner()
	if len(entries) == 0 {
		pterm.Info.Println("No verified scores yet.")
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithData(leaderboardData(entries)).Render()
}

type auditCommand struct {
	cli *cli
}

func (a *auditCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	spinner, _ := pterm.DefaultSpinner.Start("Replaying the ledger ...")
	report, err := a.cli.app.Audit()
	if err != nil {
		spinner.Fail("Audit aborted")
		return err
	}
	spinner.Stop()

	if len(report.Chains) > 0 {
		if err := pterm.DefaultTable.WithHasHeader().WithData(auditData(report)).Render(); err != nil {
			return err
		}
	}
	if !report.Valid() {
		pterm.Error.Printfln("%d records, invalid chains found", report.Records)
		return errAuditFailed
	}
	pterm.Success.Printfln("%d records in %d chains verified", report.Records, len(report.Chains))
	return nil
}

type keygenCommand struct {
	cli *cli

	Force bool `short:"f" long:"force" description:"Generate a new keypair even if a usable one exists"`
	Args  struct {
		Username string `positional-arg-name:"username"`
	} `positional-args:"yes" required:"yes"`
}

func (k *keygenCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	status, err := k.cli.app.Keygen(k.Args.Username, k.Force)
	if err != nil {
		return err
	}
	path := k.cli.app.PublicKeyPath(k.Args.Username)
	if status == identity.StatusRegenerated {
		pterm.Success.Printfln("Generated a new keypair, public key at %s", path)
		return nil
	}
	pterm.Info.Printfln("Keypair already present, public key at %s", path)
	return nil
}

type readmeCommand struct {
	cli *cli

	File  string `long:"file" description:"Markdown file holding the high score markers"`
	Limit int    `short:"n" long:"limit" description:"Number of players in the table"`
}

func (r *readmeCommand) Execute(args []string) error {
	if err := noExtraArgs(args); err != nil {
		return err
	}
	entries, err := r.cli.app.UpdateReadme(config.CleanAndExpandPath(r.File), r.Limit)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Updated %s with %d players", r.File, len(entries))
	return nil
}

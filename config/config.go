// Package config holds the settings shared by the ledger, the identity store
// and the command line tool. Values come from defaults, an optional ini file,
// SCORELEDGER_* environment variables and command line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	flags "github.com/jessevdk/go-flags"

	"github.com/luca-patrignani/scoreledger/identity"
	"github.com/luca-patrignani/scoreledger/leaderboard"
	"github.com/luca-patrignani/scoreledger/ledger"
)

const (
	DefaultConfigFile   = "scoreledger.conf"
	DefaultDataDir      = "highscore"
	DefaultLedgerFile   = "blockchain.txt"
	DefaultPubKeyDir    = "public_keys"
	DefaultKeyFile      = ".username"
	DefaultAutoSuffix   = "DevAI"
	DefaultDebugLevel   = "info"
	DefaultLeaderboard  = 10
	DefaultVerifyCache  = leaderboard.DefaultCacheSize
	DefaultKeyCacheSize = identity.DefaultKeyCacheSize
)

// Config is the full set of options. The struct tags drive both the command
// line and the ini file.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file" env:"SCORELEDGER_CONFIG"`

	DataDir    string `short:"b" long:"datadir" description:"Directory holding the ledger and the published public keys" env:"SCORELEDGER_DATADIR"`
	LedgerFile string `long:"ledgerfile" description:"Ledger file, relative to the data directory unless absolute"`
	PubKeyDir  string `long:"pubkeydir" description:"Public key directory, relative to the data directory unless absolute"`
	KeyFile    string `long:"keyfile" description:"File holding the local username and private key" env:"SCORELEDGER_KEYFILE"`
	KeyType    string `long:"keytype" description:"Algorithm for newly generated keys" choice:"ed25519" choice:"rsa" choice:"secp256k1"`

	Difficulty      int    `long:"difficulty" description:"Leading zero hex characters required of every proof of work"`
	AutoSuffix      string `long:"autosuffix" description:"Username suffix of automated sessions, credited to the base identity"`
	KeyCacheSize    int    `long:"keycachesize" description:"Number of identities whose public keys are cached"`
	VerifyCacheSize int    `long:"verifycachesize" description:"Number of verified blocks remembered between queries"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level" choice:"debug" choice:"info" choice:"warn" choice:"error"`
	LogFile    string `long:"logfile" description:"Write logs to this rotated file instead of the terminal"`
	NoColor    bool   `long:"nocolor" description:"Disable terminal colors"`
}

// Default returns a Config populated with the default values.
func Default() *Config {
	return &Config{
		DataDir:         DefaultDataDir,
		LedgerFile:      DefaultLedgerFile,
		PubKeyDir:       DefaultPubKeyDir,
		KeyFile:         DefaultKeyFile,
		KeyType:         string(identity.DefaultKeyType),
		Difficulty:      ledger.DefaultDifficulty,
		AutoSuffix:      DefaultAutoSuffix,
		KeyCacheSize:    DefaultKeyCacheSize,
		VerifyCacheSize: DefaultVerifyCache,
		DebugLevel:      DefaultDebugLevel,
	}
}

// LoadFile applies the ini configuration file to the parser's options. The
// file is the one named by --configfile in args, or DefaultConfigFile when it
// exists. Options bound to an environment variable that is set are applied
// again after the file, and command line flags parsed afterwards take
// precedence over both.
func LoadFile(parser *flags.Parser, args []string) error {
	pre := struct {
		ConfigFile string `short:"C" long:"configfile" env:"SCORELEDGER_CONFIG"`
	}{}
	preParser := flags.NewParser(&pre, flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return err
	}

	path, explicit := pre.ConfigFile, true
	if path == "" {
		path, explicit = DefaultConfigFile, false
	}
	path = CleanAndExpandPath(path)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return nil
	}

	if err := flags.NewIniParser(parser).ParseFile(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return applyEnvironment(parser)
}

// applyEnvironment sets every option whose environment variable is set. The
// ini parser only falls back to env values for options it did not set.
func applyEnvironment(parser *flags.Parser) error {
	var ini strings.Builder
	for _, group := range parser.Command.Group.Groups() {
		var section strings.Builder
		for _, opt := range group.Options() {
			if opt.EnvDefaultKey == "" || opt.LongName == "" {
				continue
			}
			value, ok := os.LookupEnv(opt.EnvDefaultKey)
			if !ok || value == "" {
				continue
			}
			fmt.Fprintf(&section, "%s = %s\n", opt.LongName, strconv.Quote(value))
		}
		if section.Len() > 0 {
			fmt.Fprintf(&ini, "[%s]\n%s", group.ShortDescription, section.String())
		}
	}
	if ini.Len() == 0 {
		return nil
	}
	if err := flags.NewIniParser(parser).Parse(strings.NewReader(ini.String())); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate checks the option values and cleans the paths. It must be called
// once after parsing.
func (c *Config) Validate() error {
	if c.Difficulty < 0 || c.Difficulty > ledger.HashLen {
		return fmt.Errorf("difficulty %d outside [0, %d]", c.Difficulty, ledger.HashLen)
	}
	if _, err := identity.ParseKeyType(c.KeyType); err != nil {
		return err
	}
	if c.KeyCacheSize <= 0 {
		return fmt.Errorf("keycachesize must be positive, got %d", c.KeyCacheSize)
	}
	if c.VerifyCacheSize <= 0 {
		return fmt.Errorf("verifycachesize must be positive, got %d", c.VerifyCacheSize)
	}
	if strings.ContainsAny(c.AutoSuffix, "|\"\\/") {
		return fmt.Errorf("autosuffix %q contains a reserved character", c.AutoSuffix)
	}
	if _, err := ParseLevel(c.DebugLevel); err != nil {
		return err
	}
	if c.DataDir == "" {
		return errors.New("datadir must not be empty")
	}
	if c.KeyFile == "" {
		return errors.New("keyfile must not be empty")
	}

	c.DataDir = CleanAndExpandPath(c.DataDir)
	c.KeyFile = CleanAndExpandPath(c.KeyFile)
	if c.LogFile != "" {
		c.LogFile = CleanAndExpandPath(c.LogFile)
	}
	return nil
}

// LedgerPath returns the location of the ledger file.
func (c *Config) LedgerPath() string {
	return c.underDataDir(c.LedgerFile)
}

// PubKeyPath returns the directory of published public keys.
func (c *Config) PubKeyPath() string {
	return c.underDataDir(c.PubKeyDir)
}

func (c *Config) underDataDir(path string) string {
	path = CleanAndExpandPath(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DataDir, path)
}

// Level returns the configured slog level.
func (c *Config) Level() slog.Level {
	level, _ := ParseLevel(c.DebugLevel)
	return level
}

// ParseLevel maps a debuglevel option to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown debug level %q", s)
}

// CleanAndExpandPath expands a leading ~ to the home directory and
// environment variables, then cleans the result.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

package ledger

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	ledgerFilePerm = 0644
	ledgerDirPerm  = 0755
)

// Ledger is the shared, strictly-append file of score blocks. It assumes a
// single writer: appends are not locked and concurrent writers may interleave.
type Ledger struct {
	path string
	log  *slog.Logger
}

// Open returns a Ledger backed by the file at path. The file is created on
// the first Append; a missing file reads as an empty ledger.
func Open(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{path: path, log: logger}
}

// Path returns the location of the ledger file.
func (l *Ledger) Path() string {
	return l.path
}

// Append writes the block as a new record at the end of the ledger.
//
// If the file does not end with a newline, because a previous append was
// interrupted, a newline is written first so that the partial record stays
// isolated on its own line and is skipped by Scan.
func (l *Ledger) Append(b ScoreBlock) error {
	if err := b.checkFields(); err != nil {
		return err
	}
	rec, err := b.MarshalRecord()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), ledgerDirPerm); err != nil {
		return ioError("create ledger directory", err)
	}
	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, ledgerFilePerm)
	if err != nil {
		return ioError("open ledger", err)
	}
	defer f.Close()

	terminated, err := endsWithNewline(f)
	if err != nil {
		return ioError("inspect ledger tail", err)
	}
	line := make([]byte, 0, len(rec)+2)
	if !terminated {
		l.log.Warn("ledger ends with a partial record, isolating it", "path", l.path)
		line = append(line, '\n')
	}
	line = append(line, rec...)
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		return ioError("append record", err)
	}
	if err := f.Sync(); err != nil {
		return ioError("sync ledger", err)
	}
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is '\n'.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return true, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], info.Size()-1); err != nil {
		return false, err
	}
	return last[0] == '\n', nil
}

// Scan returns a lazy sequence over the blocks of the ledger in file order.
// Each call reopens and re-reads the file. Malformed records, including a
// truncated final record, are skipped. A read failure is yielded once as an
// error wrapping ErrIO and ends the sequence.
func (l *Ledger) Scan() iter.Seq2[ScoreBlock, error] {
	return func(yield func(ScoreBlock, error) bool) {
		f, err := os.Open(l.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(ScoreBlock{}, ioError("open ledger", err))
			return
		}
		defer f.Close()

		r := bufio.NewReader(f)
		lineNo := 0
		for {
			line, readErr := r.ReadBytes('\n')
			if len(line) > 0 {
				lineNo++
				if rec := bytes.TrimSpace(line); len(rec) > 0 {
					b, err := ParseRecord(rec)
					switch {
					case err != nil && line[len(line)-1] != '\n':
						l.log.Debug("skipping truncated ledger record", "line", lineNo, "err", err)
					case err != nil:
						l.log.Debug("skipping malformed ledger record", "line", lineNo, "err", err)
					default:
						if !yield(b, nil) {
							return
						}
					}
				}
			}
			if errors.Is(readErr, io.EOF) {
				return
			}
			if readErr != nil {
				yield(ScoreBlock{}, ioError("read ledger", readErr))
				return
			}
		}
	}
}

// All returns every well-formed block in ledger order.
func (l *Ledger) All() ([]ScoreBlock, error) {
	var blocks []ScoreBlock
	for b, err := range l.Scan() {
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// ByUsername returns the blocks recorded under exactly username, in ledger
// order. This is that username's chain.
func (l *Ledger) ByUsername(username string) ([]ScoreBlock, error) {
	var blocks []ScoreBlock
	for b, err := range l.Scan() {
		if err != nil {
			return nil, err
		}
		if b.Username == username {
			blocks = append(blocks, b)
		}
	}
	return blocks, nil
}

// LastForUser returns the block of username that appears last in the ledger.
// The boolean is false when the username has no blocks.
func (l *Ledger) LastForUser(username string) (ScoreBlock, bool, error) {
	var (
		last  ScoreBlock
		found bool
	)
	for b, err := range l.Scan() {
		if err != nil {
			return ScoreBlock{}, false, err
		}
		if b.Username == username {
			last, found = b, true
		}
	}
	return last, found, nil
}

// HighestVerified returns the highest scoring block of username that passes
// ValidateBlock. Only blocks under exactly username are considered. Ties keep
// the earliest block.
func (l *Ledger) HighestVerified(username string, difficulty int, v SignatureVerifier) (ScoreBlock, bool, error) {
	match := func(u string) bool { return u == username }
	return BestVerified(l.Scan(), match, difficulty, v)
}

// BestVerified returns the highest scoring block of seq whose username
// satisfies match and that passes ValidateBlock. Blocks that cannot beat the
// current best are not verified. Ties keep the earliest block.
func BestVerified(seq iter.Seq2[ScoreBlock, error], match func(username string) bool,
	difficulty int, v SignatureVerifier) (ScoreBlock, bool, error) {

	var (
		best  ScoreBlock
		found bool
	)
	for b, err := range seq {
		if err != nil {
			return ScoreBlock{}, false, err
		}
		if !match(b.Username) || (found && b.Score <= best.Score) {
			continue
		}
		if ValidateBlock(&b, difficulty, v) != nil {
			continue
		}
		best, found = b, true
	}
	return best, found, nil
}

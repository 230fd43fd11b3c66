package identity

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/luca-patrignani/scoreledger/ledger"
)

const (
	privateKeyPerm = 0600
	privateDirPerm = 0700
	publicKeyPerm  = 0644
	publicDirPerm  = 0755

	publicKeySuffix = "_public"
	pemExt          = ".pem"

	// DefaultKeyCacheSize is the number of identities whose public keys
	// are kept in memory.
	DefaultKeyCacheSize = 128
)

// Status reports the outcome of Ensure.
type Status int

const (
	// StatusOK means a usable key already existed.
	StatusOK Status = iota
	// StatusRegenerated means a new keypair was generated.
	StatusRegenerated
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRegenerated:
		return "regenerated"
	}
	return "Status(" + strconv.Itoa(int(s)) + ")"
}

// StoreConfig locates the key material of a Store.
type StoreConfig struct {
	// PrivateKeyFile holds the single local identity: a username line
	// followed by a PEM private key.
	PrivateKeyFile string
	// PublicKeyDir holds the published <username>_public.pem files.
	PublicKeyDir string
	// KeyType is the algorithm used for newly generated keys.
	KeyType KeyType
	// AutoSuffix is stripped from usernames before key lookup.
	AutoSuffix string
	// CacheSize bounds the public key cache. Zero selects
	// DefaultKeyCacheSize.
	CacheSize int
	Logger    *slog.Logger
}

// Store manages the local private key and the published public keys. It
// implements ledger.SignatureVerifier.
type Store struct {
	cfg   StoreConfig
	log   *slog.Logger
	cache *lru.Cache[string, []PublicKey]
}

var _ ledger.SignatureVerifier = (*Store)(nil)

// NewStore returns a Store over the configured paths. No file is touched
// until a key is requested.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.KeyType == "" {
		cfg.KeyType = DefaultKeyType
	}
	if _, err := ParseKeyType(string(cfg.KeyType)); err != nil {
		return nil, err
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultKeyCacheSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	cache, err := lru.New[string, []PublicKey](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("%w: key cache: %w", ErrIdentity, err)
	}
	return &Store{cfg: cfg, log: logger, cache: cache}, nil
}

// Identity returns the username a block is signed and verified under.
func (s *Store) Identity(username string) string {
	return Normalize(username, s.cfg.AutoSuffix)
}

// PublicKeyPath returns where the current public key of username is
// published.
func (s *Store) PublicKeyPath(username string) string {
	return filepath.Join(s.cfg.PublicKeyDir, username+publicKeySuffix+pemExt)
}

func (s *Store) archivePath(username string, generation int) string {
	name := username + publicKeySuffix + "." + strconv.Itoa(generation) + pemExt
	return filepath.Join(s.cfg.PublicKeyDir, name)
}

// Ensure makes sure a usable keypair exists for username.
//
// A new keypair is generated when the private key file is missing, holds no
// PEM block, fails to parse, or belongs to another username. When the private
// key is usable but its public key is missing or differs from the published
// one, the public key is republished without regenerating.
func (s *Store) Ensure(username string) (Status, error) {
	if err := ValidateUsername(username); err != nil {
		return StatusOK, err
	}

	owner, key, err := s.readPrivate()
	switch {
	case errors.Is(err, ErrIO):
		return StatusOK, err
	case err != nil:
		s.log.Info("private key unusable, generating a new one",
			"username", username, "err", err)
		return StatusRegenerated, s.Regenerate(username)
	case owner != username:
		s.log.Info("private key belongs to another identity, generating a new one",
			"username", username, "owner", owner)
		return StatusRegenerated, s.Regenerate(username)
	}

	if err := s.publish(username, key.Public()); err != nil {
		return StatusOK, err
	}
	return StatusOK, nil
}

// Regenerate replaces the local private key with a fresh keypair for username
// and publishes the new public key. A previously published key is archived.
func (s *Store) Regenerate(username string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	key, err := GenerateKey(s.cfg.KeyType)
	if err != nil {
		return err
	}
	if err := s.writePrivate(username, key); err != nil {
		return err
	}
	if err := s.publish(username, key.Public()); err != nil {
		return err
	}
	s.log.Info("generated identity key", "username", username, "type", key.Type(),
		"public_key", s.PublicKeyPath(username))
	return nil
}

// LoadPrivate returns the local private key when it belongs to username.
func (s *Store) LoadPrivate(username string) (PrivateKey, error) {
	owner, key, err := s.readPrivate()
	if errors.Is(err, fs.ErrNotExist) {
		str := fmt.Sprintf("no private key for %q", username)
		return nil, identityError(ErrKeyNotFound, str)
	}
	if err != nil {
		return nil, err
	}
	if owner != username {
		str := fmt.Sprintf("no private key for %q, local identity is %q", username, owner)
		return nil, identityError(ErrKeyNotFound, str)
	}
	return key, nil
}

// LoadPublic returns the current published public key of username.
func (s *Store) LoadPublic(username string) (PublicKey, error) {
	data, err := os.ReadFile(s.PublicKeyPath(username))
	if errors.Is(err, fs.ErrNotExist) {
		str := fmt.Sprintf("no public key for %q", username)
		return nil, identityError(ErrKeyNotFound, str)
	}
	if err != nil {
		return nil, ioError("read public key", err)
	}
	return ParsePublicKeyPEM(data)
}

// PublicKeys returns every published generation of username's public key,
// current first, then archived keys from newest to oldest. Unparseable files
// are skipped. Results are cached until the store publishes a key for
// username.
func (s *Store) PublicKeys(username string) ([]PublicKey, error) {
	if keys, ok := s.cache.Get(username); ok {
		return keys, nil
	}

	var keys []PublicKey
	current, err := s.LoadPublic(username)
	switch {
	case err == nil:
		keys = append(keys, current)
	case errors.Is(err, ErrIO):
		return nil, err
	case !errors.Is(err, ErrKeyNotFound):
		s.log.Debug("skipping unparseable public key", "username", username, "err", err)
	}

	generations, err := s.archivedGenerations(username)
	if err != nil {
		return nil, err
	}
	for i := len(generations) - 1; i >= 0; i-- {
		path := s.archivePath(username, generations[i])
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ioError("read archived public key", err)
		}
		key, err := ParsePublicKeyPEM(data)
		if err != nil {
			s.log.Debug("skipping unparseable public key", "path", path, "err", err)
			continue
		}
		keys = append(keys, key)
	}

	if len(keys) == 0 {
		str := fmt.Sprintf("no public key for %q", username)
		return nil, identityError(ErrKeyNotFound, str)
	}
	s.cache.Add(username, keys)
	return keys, nil
}

// archivedGenerations returns the archive numbers of username in ascending
// order.
func (s *Store) archivedGenerations(username string) ([]int, error) {
	entries, err := os.ReadDir(s.cfg.PublicKeyDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("list public keys", err)
	}

	prefix := username + publicKeySuffix + "."
	var generations []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, pemExt) {
			continue
		}
		digits := strings.TrimSuffix(strings.TrimPrefix(name, prefix), pemExt)
		if digits == "" || strings.Trim(digits, "0123456789") != "" {
			continue
		}
		n, err := strconv.Atoi(digits)
		if err != nil {
			continue
		}
		generations = append(generations, n)
	}
	sort.Ints(generations)
	return generations, nil
}

// VerifyBlock reports whether the signature of b verifies against any
// published public key of the block's identity.
func (s *Store) VerifyBlock(b *ledger.ScoreBlock) bool {
	id := s.Identity(b.Username)
	keys, err := s.PublicKeys(id)
	if err != nil {
		s.log.Debug("cannot verify block", "username", b.Username, "identity", id, "err", err)
		return false
	}
	for _, key := range keys {
		if Verify(b, key, b.Signature) {
			return true
		}
	}
	return false
}

// SignBlock signs b with the private key of the block's identity and stores
// the signature in the block.
func (s *Store) SignBlock(b *ledger.ScoreBlock) error {
	key, err := s.LoadPrivate(s.Identity(b.Username))
	if err != nil {
		return err
	}
	sig, err := Sign(b, key)
	if err != nil {
		return err
	}
	b.Signature = sig
	return nil
}

// readPrivate parses the private key file into its owner and key. A missing
// file returns an error wrapping fs.ErrNotExist; malformed content returns
// ErrIdentity.
func (s *Store) readPrivate() (string, PrivateKey, error) {
	data, err := os.ReadFile(s.cfg.PrivateKeyFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, err
	}
	if err != nil {
		return "", nil, ioError("read private key", err)
	}

	owner, rest, found := bytes.Cut(data, []byte("\n"))
	if !found {
		return "", nil, identityError(ErrIdentity, "private key file has no PEM section")
	}
	key, err := ParsePrivateKeyPEM(rest)
	if err != nil {
		return "", nil, err
	}
	return string(bytes.TrimRight(owner, "\r")), key, nil
}

func (s *Store) writePrivate(username string, key PrivateKey) error {
	encoded, err := EncodePrivateKeyPEM(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.cfg.PrivateKeyFile), privateDirPerm); err != nil {
		return ioError("create private key directory", err)
	}

	data := make([]byte, 0, len(username)+1+len(encoded))
	data = append(data, username...)
	data = append(data, '\n')
	data = append(data, encoded...)
	if err := os.WriteFile(s.cfg.PrivateKeyFile, data, privateKeyPerm); err != nil {
		return ioError("write private key", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.cfg.PrivateKeyFile, privateKeyPerm); err != nil {
		return ioError("chmod private key", err)
	}
	return nil
}

// publish makes pub the current public key of username. A different key
// already published is archived under the next generation number.
func (s *Store) publish(username string, pub PublicKey) error {
	path := s.PublicKeyPath(username)
	existing, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return ioError("read public key", err)
	default:
		if current, err := ParsePublicKeyPEM(existing); err == nil && current.Equal(pub) {
			return nil
		}
		if err := s.archive(username); err != nil {
			return err
		}
	}

	encoded, err := EncodePublicKeyPEM(pub)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.PublicKeyDir, publicDirPerm); err != nil {
		return ioError("create public key directory", err)
	}
	if err := os.WriteFile(path, encoded, publicKeyPerm); err != nil {
		return ioError("write public key", err)
	}
	s.cache.Remove(username)
	s.log.Debug("published public key", "username", username, "path", path)
	return nil
}

func (s *Store) archive(username string) error {
	generations, err := s.archivedGenerations(username)
	if err != nil {
		return err
	}
	next := 1
	if n := len(generations); n > 0 {
		next = generations[n-1] + 1
	}
	archived := s.archivePath(username, next)
	if err := os.Rename(s.PublicKeyPath(username), archived); err != nil {
		return ioError("archive public key", err)
	}
	s.log.Info("archived previous public key", "username", username, "path", archived)
	return nil
}

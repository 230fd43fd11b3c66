package identity

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// KeyType names a signature algorithm.
type KeyType string

const (
	KeyEd25519   KeyType = "ed25519"
	KeyRSA       KeyType = "rsa"
	KeySecp256k1 KeyType = "secp256k1"
)

// DefaultKeyType is used when no key type is configured.
const DefaultKeyType = KeyEd25519

// RSAKeyBits is the modulus size of generated RSA keys.
const RSAKeyBits = 2048

const (
	pemPrivateKey          = "PRIVATE KEY"
	pemPublicKey           = "PUBLIC KEY"
	pemRSAPrivateKey       = "RSA PRIVATE KEY"
	pemRSAPublicKey        = "RSA PUBLIC KEY"
	pemSecp256k1PrivateKey = "SECP256K1 PRIVATE KEY"
	pemSecp256k1PublicKey  = "SECP256K1 PUBLIC KEY"
)

// KeyTypes lists the supported key types.
func KeyTypes() []KeyType {
	return []KeyType{KeyEd25519, KeyRSA, KeySecp256k1}
}

// ParseKeyType maps a configured name to a KeyType. The empty string selects
// DefaultKeyType.
func ParseKeyType(s string) (KeyType, error) {
	if s == "" {
		return DefaultKeyType, nil
	}
	for _, kt := range KeyTypes() {
		if string(kt) == s {
			return kt, nil
		}
	}
	return "", identityError(ErrIdentity, fmt.Sprintf("unknown key type %q", s))
}

// PrivateKey is a signing key of one of the supported types.
type PrivateKey interface {
	Type() KeyType
	Public() PublicKey
	sign(payload []byte) ([]byte, error)
	pemBlock() (*pem.Block, error)
}

// PublicKey is a verification key of one of the supported types.
type PublicKey interface {
	Type() KeyType
	Equal(other PublicKey) bool
	verify(payload, sig []byte) bool
	pemBlock() (*pem.Block, error)
}

// GenerateKey creates a fresh private key of type kt.
func GenerateKey(kt KeyType) (PrivateKey, error) {
	switch kt {
	case KeyEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: generate ed25519 key: %w", ErrIdentity, err)
		}
		return ed25519Private{priv}, nil
	case KeyRSA:
		priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
		if err != nil {
			return nil, fmt.Errorf("%w: generate rsa key: %w", ErrIdentity, err)
		}
		return rsaPrivate{priv}, nil
	case KeySecp256k1:
		priv, err := secp256k1.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("%w: generate secp256k1 key: %w", ErrIdentity, err)
		}
		return secpPrivate{priv}, nil
	}
	return nil, identityError(ErrIdentity, fmt.Sprintf("unknown key type %q", kt))
}

// EncodePrivateKeyPEM returns the PEM encoding of key.
func EncodePrivateKeyPEM(key PrivateKey) ([]byte, error) {
	block, err := key.pemBlock()
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

// EncodePublicKeyPEM returns the PEM encoding of key.
func EncodePublicKeyPEM(key PublicKey) ([]byte, error) {
	block, err := key.pemBlock()
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}

// ParsePrivateKeyPEM decodes the first PEM block in data as a private key.
// Keys written by OpenSSL as PKCS#1 RSA blocks are accepted.
func ParsePrivateKeyPEM(data []byte) (PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, identityError(ErrIdentity, "no PEM block in private key data")
	}

	switch block.Type {
	case pemSecp256k1PrivateKey:
		if len(block.Bytes) != secp256k1.PrivKeyBytesLen {
			str := fmt.Sprintf("secp256k1 private key is %d bytes, want %d",
				len(block.Bytes), secp256k1.PrivKeyBytesLen)
			return nil, identityError(ErrIdentity, str)
		}
		var scalar secp256k1.ModNScalar
		if overflow := scalar.SetByteSlice(block.Bytes); overflow || scalar.IsZero() {
			return nil, identityError(ErrIdentity, "secp256k1 private key is out of range")
		}
		return secpPrivate{secp256k1.NewPrivateKey(&scalar)}, nil
	case pemRSAPrivateKey:
		priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rsa private key: %w", ErrIdentity, err)
		}
		return rsaPrivate{priv}, nil
	case pemPrivateKey:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse private key: %w", ErrIdentity, err)
		}
		switch k := key.(type) {
		case ed25519.PrivateKey:
			return ed25519Private{k}, nil
		case *rsa.PrivateKey:
			return rsaPrivate{k}, nil
		}
		return nil, identityError(ErrIdentity, fmt.Sprintf("unsupported private key %T", key))
	}
	return nil, identityError(ErrIdentity, fmt.Sprintf("unsupported PEM block %q", block.Type))
}

// ParsePublicKeyPEM decodes the first PEM block in data as a public key.
func ParsePublicKeyPEM(data []byte) (PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, identityError(ErrIdentity, "no PEM block in public key data")
	}

	switch block.Type {
	case pemSecp256k1PublicKey:
		pub, err := secp256k1.ParsePubKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse secp256k1 public key: %w", ErrIdentity, err)
		}
		return secpPublic{pub}, nil
	case pemRSAPublicKey:
		pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse rsa public key: %w", ErrIdentity, err)
		}
		return rsaPublic{pub}, nil
	case pemPublicKey:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: parse public key: %w", ErrIdentity, err)
		}
		switch k := key.(type) {
		case ed25519.PublicKey:
			return ed25519Public{k}, nil
		case *rsa.PublicKey:
			return rsaPublic{k}, nil
		}
		return nil, identityError(ErrIdentity, fmt.Sprintf("unsupported public key %T", key))
	}
	return nil, identityError(ErrIdentity, fmt.Sprintf("unsupported PEM block %q", block.Type))
}

type ed25519Private struct{ key ed25519.PrivateKey }

func (k ed25519Private) Type() KeyType     { return KeyEd25519 }
func (k ed25519Private) Public() PublicKey { return ed25519Public{k.key.Public().(ed25519.PublicKey)} }

func (k ed25519Private) sign(payload []byte) ([]byte, error) {
	return ed25519.Sign(k.key, payload), nil
}

func (k ed25519Private) pemBlock() (*pem.Block, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: encode ed25519 key: %w", ErrIdentity, err)
	}
	return &pem.Block{Type: pemPrivateKey, Bytes: der}, nil
}

type ed25519Public struct{ key ed25519.PublicKey }

func (k ed25519Public) Type() KeyType { return KeyEd25519 }

func (k ed25519Public) Equal(other PublicKey) bool {
	o, ok := other.(ed25519Public)
	return ok && k.key.Equal(o.key)
}

func (k ed25519Public) verify(payload, sig []byte) bool {
	if len(k.key) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(k.key, payload, sig)
}

func (k ed25519Public) pemBlock() (*pem.Block, error) {
	der, err := x509.MarshalPKIXPublicKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: encode ed25519 public key: %w", ErrIdentity, err)
	}
	return &pem.Block{Type: pemPublicKey, Bytes: der}, nil
}

type rsaPrivate struct{ key *rsa.PrivateKey }

func (k rsaPrivate) Type() KeyType     { return KeyRSA }
func (k rsaPrivate) Public() PublicKey { return rsaPublic{&k.key.PublicKey} }

func (k rsaPrivate) sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, k.key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("%w: rsa sign: %w", ErrIdentity, err)
	}
	return sig, nil
}

func (k rsaPrivate) pemBlock() (*pem.Block, error) {
	der, err := x509.MarshalPKCS8PrivateKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: encode rsa key: %w", ErrIdentity, err)
	}
	return &pem.Block{Type: pemPrivateKey, Bytes: der}, nil
}

type rsaPublic struct{ key *rsa.PublicKey }

func (k rsaPublic) Type() KeyType { return KeyRSA }

func (k rsaPublic) Equal(other PublicKey) bool {
	o, ok := other.(rsaPublic)
	return ok && k.key.Equal(o.key)
}

func (k rsaPublic) verify(payload, sig []byte) bool {
	digest := sha256.Sum256(payload)
	return rsa.VerifyPKCS1v15(k.key, crypto.SHA256, digest[:], sig) == nil
}

func (k rsaPublic) pemBlock() (*pem.Block, error) {
	der, err := x509.MarshalPKIXPublicKey(k.key)
	if err != nil {
		return nil, fmt.Errorf("%w: encode rsa public key: %w", ErrIdentity, err)
	}
	return &pem.Block{Type: pemPublicKey, Bytes: der}, nil
}

type secpPrivate struct{ key *secp256k1.PrivateKey }

func (k secpPrivate) Type() KeyType     { return KeySecp256k1 }
func (k secpPrivate) Public() PublicKey { return secpPublic{k.key.PubKey()} }

func (k secpPrivate) sign(payload []byte) ([]byte, error) {
	digest := sha256.Sum256(payload)
	return ecdsa.Sign(k.key, digest[:]).Serialize(), nil
}

func (k secpPrivate) pemBlock() (*pem.Block, error) {
	return &pem.Block{Type: pemSecp256k1PrivateKey, Bytes: k.key.Serialize()}, nil
}

type secpPublic struct{ key *secp256k1.PublicKey }

func (k secpPublic) Type() KeyType { return KeySecp256k1 }

func (k secpPublic) Equal(other PublicKey) bool {
	o, ok := other.(secpPublic)
	return ok && bytes.Equal(k.key.SerializeCompressed(), o.key.SerializeCompressed())
}

func (k secpPublic) verify(payload, sig []byte) bool {
	parsed, err := ecdsa.ParseDERSignature(sig)
	if err != nil {
		return false
	}
	digest := sha256.Sum256(payload)
	return parsed.Verify(digest[:], k.key)
}

func (k secpPublic) pemBlock() (*pem.Block, error) {
	return &pem.Block{Type: pemSecp256k1PublicKey, Bytes: k.key.SerializeCompressed()}, nil
}

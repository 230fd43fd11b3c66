package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeyType(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyType
		wantErr bool
	}{
		{"", KeyEd25519, false},
		{"ed25519", KeyEd25519, false},
		{"rsa", KeyRSA, false},
		{"secp256k1", KeySecp256k1, false},
		{"dsa", "", true},
		{"RSA", "", true},
	}
	for _, test := range tests {
		got, err := ParseKeyType(test.in)
		if test.wantErr {
			require.ErrorIs(t, err, ErrIdentity, "input %q", test.in)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
}

// TestKeyPEMRoundTrip encodes and decodes both halves of a keypair of every
// supported type.
func TestKeyPEMRoundTrip(t *testing.T) {
	for _, kt := range KeyTypes() {
		t.Run(string(kt), func(t *testing.T) {
			priv, err := GenerateKey(kt)
			require.NoError(t, err)
			require.Equal(t, kt, priv.Type())

			encoded, err := EncodePrivateKeyPEM(priv)
			require.NoError(t, err)
			decoded, err := ParsePrivateKeyPEM(encoded)
			require.NoError(t, err)
			require.Equal(t, kt, decoded.Type())
			require.True(t, decoded.Public().Equal(priv.Public()))

			pubPEM, err := EncodePublicKeyPEM(priv.Public())
			require.NoError(t, err)
			pub, err := ParsePublicKeyPEM(pubPEM)
			require.NoError(t, err)
			require.True(t, pub.Equal(priv.Public()))
		})
	}
}

func TestPublicKeyEqualAcrossTypes(t *testing.T) {
	a, err := GenerateKey(KeyEd25519)
	require.NoError(t, err)
	b, err := GenerateKey(KeySecp256k1)
	require.NoError(t, err)
	c, err := GenerateKey(KeyEd25519)
	require.NoError(t, err)

	require.False(t, a.Public().Equal(b.Public()))
	require.False(t, b.Public().Equal(a.Public()))
	require.False(t, a.Public().Equal(c.Public()))
}

// TestParsePKCS1RSAKey accepts the traditional OpenSSL RSA encodings.
func TestParsePKCS1RSAKey(t *testing.T) {
	raw, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(raw),
	})
	priv, err := ParsePrivateKeyPEM(privPEM)
	require.NoError(t, err)
	require.Equal(t, KeyRSA, priv.Type())

	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PUBLIC KEY",
		Bytes: x509.MarshalPKCS1PublicKey(&raw.PublicKey),
	})
	pub, err := ParsePublicKeyPEM(pubPEM)
	require.NoError(t, err)
	require.True(t, pub.Equal(priv.Public()))
}

// curveOrder returns the secp256k1 group order N, the smallest out of range
// private scalar.
func curveOrder(t *testing.T) []byte {
	t.Helper()
	n, err := hex.DecodeString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")
	require.NoError(t, err)
	return n
}

func TestParseKeyRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"no pem", []byte("hello")},
		{"unknown block", pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: []byte{1}})},
		{"bad pkcs8", pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte{1, 2, 3}})},
		{"short secp256k1", pem.EncodeToMemory(&pem.Block{Type: "SECP256K1 PRIVATE KEY", Bytes: []byte{1, 2, 3}})},
		{"zero secp256k1", pem.EncodeToMemory(&pem.Block{Type: "SECP256K1 PRIVATE KEY", Bytes: make([]byte, 32)})},
		{"secp256k1 group order", pem.EncodeToMemory(&pem.Block{Type: "SECP256K1 PRIVATE KEY", Bytes: curveOrder(t)})},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParsePrivateKeyPEM(test.data)
			require.ErrorIs(t, err, ErrIdentity)
			_, err = ParsePublicKeyPEM(test.data)
			require.ErrorIs(t, err, ErrIdentity)
		})
	}
}

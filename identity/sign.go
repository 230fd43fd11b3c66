package identity

import (
	"encoding/hex"

	"github.com/luca-patrignani/scoreledger/ledger"
)

// Sign signs the canonical payload of b with key and returns the lowercase hex
// signature. The proof of work and signature fields are not part of the signed
// data.
func Sign(b *ledger.ScoreBlock, key PrivateKey) (string, error) {
	sig, err := key.sign(b.CanonicalPayload())
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether sig is a valid signature by key over the canonical
// payload of b. Malformed hex, an empty signature, or a signature of the wrong
// shape all verify as false.
func Verify(b *ledger.ScoreBlock, key PublicKey, sig string) bool {
	if sig == "" || key == nil {
		return false
	}
	raw, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return key.verify(b.CanonicalPayload(), raw)
}

// Package identity manages the per-username keypairs that sign score blocks
// and verifies those signatures.
//
// # Key Material
//
// The private key lives in a single local file whose first line is the
// username and whose remainder is a PEM block. Only one identity is active
// per installation: switching usernames replaces the private key. Public
// keys are published as <username>_public.pem in a shared directory so that
// anyone replaying the ledger can verify signatures.
//
// Regenerating a key never deletes a published public key. The previous key
// is archived as <username>_public.<n>.pem and stays available to
// verification, so blocks signed before a regeneration keep verifying.
//
// # Key Types
//
//   - ed25519: PKCS#8 / PKIX PEM, the default
//   - rsa: 2048-bit, PKCS#8 / PKIX PEM, PKCS#1 v1.5 signatures over SHA-256
//   - secp256k1: raw key bytes in SECP256K1 PEM blocks, DER ECDSA over SHA-256
package identity

// Package ledger implements the append-only score ledger: hash-chained,
// proof-of-work mined score blocks stored one record per line in a shared
// text file.
//
// # Core Components
//
// ScoreBlock: A single game-over result linked to the previous block of the
// same username through its proof-of-work hash.
//
// Ledger: The durable, strictly-append file of serialized blocks. Every query
// re-reads the file, so record order on disk is the only ordering signal.
//
// Mine: Nonce search producing a SHA-256 digest with the required number of
// leading zero hex digits.
//
// ValidateChain: Replays a per-username sequence of blocks, checking genesis,
// hash linkage, proof-of-work and signatures.
//
// # Canonical Payload
//
// Both the proof-of-work hash and the signature cover the same bytes:
//
//	username|score|timestamp|prev_hash|nonce
//
// with integers printed in base 10. The proof-of-work and signature fields are
// never part of the payload.
//
// # Security Properties
//
//   - Tamper detection: changing any payload field changes the hash, which
//     breaks both the proof-of-work and the signature
//   - Linkage: a block's prev_hash commits to the previous block of the same
//     username, or to 64 zeros for the genesis block
//   - Authenticity: signatures are checked through a SignatureVerifier, which
//     resolves the identity's published public key
package ledger

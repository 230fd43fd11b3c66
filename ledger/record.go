package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"
)

// recordFields lists the keys of a ledger line in the order they must appear.
var recordFields = [...]string{
	"username", "score", "timestamp", "proof_of_work", "signature", "prev_hash", "nonce",
}

// MarshalRecord serializes the block as a single ledger line, without the
// trailing newline. Fields are written in the fixed order
// username, score, timestamp, proof_of_work, signature, prev_hash, nonce.
func (b *ScoreBlock) MarshalRecord() ([]byte, error) {
	username, err := json.Marshal(b.Username)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, 256+len(b.Signature))
	buf = append(buf, `{"username":`...)
	buf = append(buf, username...)
	buf = append(buf, `, "score":`...)
	buf = strconv.AppendInt(buf, b.Score, 10)
	buf = append(buf, `, "timestamp":`...)
	buf = strconv.AppendInt(buf, b.Timestamp, 10)
	buf = append(buf, `, "proof_of_work":"`...)
	buf = append(buf, b.ProofOfWork...)
	buf = append(buf, `", "signature":"`...)
	buf = append(buf, b.Signature...)
	buf = append(buf, `", "prev_hash":"`...)
	buf = append(buf, b.PrevHash...)
	buf = append(buf, `", "nonce":`...)
	buf = strconv.AppendUint(buf, uint64(b.Nonce), 10)
	buf = append(buf, '}')
	return buf, nil
}

// ParseRecord decodes one ledger line. The keys must be exactly those the
// writer emits, spelled the same and in the same order, each once. Every value
// must have the right type, hashes must be 64 hex digits, the signature must be
// hex and the username at most MaxUsernameLen bytes. Whitespace between tokens
// is ignored.
func ParseRecord(line []byte) (ScoreBlock, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ScoreBlock{}, ruleError(ErrParse, "malformed record: not an object")
	}

	var b ScoreBlock
	values := [len(recordFields)]any{
		&b.Username, &b.Score, &b.Timestamp, &b.ProofOfWork, &b.Signature, &b.PrevHash, &b.Nonce,
	}
	for i, name := range recordFields {
		tok, err := dec.Token()
		if err != nil {
			return ScoreBlock{}, ruleError(ErrParse, fmt.Sprintf("malformed record: %v", err))
		}
		key, ok := tok.(string)
		if !ok {
			return ScoreBlock{}, missingField(name)
		}
		if key != name {
			str := fmt.Sprintf("record has field %q where %q is expected", key, name)
			return ScoreBlock{}, ruleError(ErrParse, str)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return ScoreBlock{}, ruleError(ErrParse, fmt.Sprintf("malformed record: %v", err))
		}
		if bytes.Equal(raw, []byte("null")) {
			return ScoreBlock{}, ruleError(ErrParse, fmt.Sprintf("field %q is null", name))
		}
		if err := json.Unmarshal(raw, values[i]); err != nil {
			return ScoreBlock{}, ruleError(ErrParse, fmt.Sprintf("field %q: %v", name, err))
		}
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return ScoreBlock{}, ruleError(ErrParse, "record has fields after nonce")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ScoreBlock{}, ruleError(ErrParse, "trailing data after record")
	}

	if err := b.checkFields(); err != nil {
		return ScoreBlock{}, err
	}
	return b, nil
}

func missingField(name string) error {
	return ruleError(ErrParse, fmt.Sprintf("record is missing field %q", name))
}

// checkFields enforces the textual grammar shared by the writer and the
// parser, so that every appended block can be read back.
func (b *ScoreBlock) checkFields() error {
	if !utf8.ValidString(b.Username) {
		return ruleError(ErrParse, fmt.Sprintf("username %q is not valid UTF-8", b.Username))
	}
	if len(b.Username) > MaxUsernameLen {
		str := fmt.Sprintf("username is %d bytes, max %d", len(b.Username), MaxUsernameLen)
		return ruleError(ErrParse, str)
	}
	if !isHex(b.ProofOfWork) || len(b.ProofOfWork) != HashLen {
		return ruleError(ErrParse, fmt.Sprintf("proof_of_work %q is not %d hex digits", b.ProofOfWork, HashLen))
	}
	if !isHex(b.PrevHash) || len(b.PrevHash) != HashLen {
		return ruleError(ErrParse, fmt.Sprintf("prev_hash %q is not %d hex digits", b.PrevHash, HashLen))
	}
	if !isHex(b.Signature) || len(b.Signature)%2 != 0 {
		return ruleError(ErrParse, "signature is not an even-length hex string")
	}
	return nil
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case '0' <= c && c <= '9':
		case 'a' <= c && c <= 'f':
		case 'A' <= c && c <= 'F':
		default:
			return false
		}
	}
	return true
}

package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	dErrors "civictrust/pkg/domain-errors"
)

// DigestSize is the byte length of a SHA-256 digest.
const DigestSize = sha256.Size

// HexDigest is a SHA-256 digest rendered as 64 lowercase hex characters.
// Leaf hashes and Merkle roots both use this type.
type HexDigest string

// ParseHexDigest validates a 64-hex-character digest. Uppercase input is
// folded to lowercase so equal digests compare equal as strings.
func ParseHexDigest(s string) (HexDigest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != hex.EncodedLen(DigestSize) {
		return "", dErrors.New(dErrors.CodeValidation, "digest must be 64 hex characters")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", dErrors.New(dErrors.CodeValidation, "digest must be hex encoded")
	}
	return HexDigest(s), nil
}

// DigestFromBytes renders a raw 32-byte digest.
func DigestFromBytes(b []byte) (HexDigest, error) {
	if len(b) != DigestSize {
		return "", dErrors.New(dErrors.CodeValidation, "digest must be 32 bytes")
	}
	return HexDigest(hex.EncodeToString(b)), nil
}

// SumSHA256 hashes data and returns its digest.
func SumSHA256(data []byte) HexDigest {
	sum := sha256.Sum256(data)
	return HexDigest(hex.EncodeToString(sum[:]))
}

// Bytes decodes the digest. Only valid for digests produced by this package.
func (d HexDigest) Bytes() ([]byte, error) {
	b, err := hex.DecodeString(string(d))
	if err != nil || len(b) != DigestSize {
		return nil, dErrors.New(dErrors.CodeValidation, "malformed digest")
	}
	return b, nil
}

func (d HexDigest) String() string {
	return string(d)
}

func (d HexDigest) IsZero() bool {
	return d == ""
}

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// scrypt parameters. N=32768 keeps derivation around 100ms on current
// hardware while staying memory-hard.
const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	saltLen   = 16
	digestLen = 64
	hashDelim = "."
)

// ErrCorruptHash reports a stored credential that cannot be parsed.
// Callers must surface it to the client as an ordinary authentication
// failure; it is distinguished only for server-side logging.
var ErrCorruptHash = errors.New("auth: corrupt stored credential")

// HashPassword derives a salted scrypt digest of the password and returns
// the stored form "hex(digest).hex(salt)". The delimiter cannot appear in
// either hex half, so the split on verify is unambiguous.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, digestLen)
	if err != nil {
		return "", fmt.Errorf("derive digest: %w", err)
	}

	return hex.EncodeToString(digest) + hashDelim + hex.EncodeToString(salt), nil
}

// VerifyPassword re-derives the digest for candidate using the salt from
// the stored form and compares in constant time. A malformed stored form
// returns ErrCorruptHash, never a silent non-match.
func VerifyPassword(candidate, stored string) (bool, error) {
	digestHex, saltHex, ok := strings.Cut(stored, hashDelim)
	if !ok {
		return false, ErrCorruptHash
	}

	digest, err := hex.DecodeString(digestHex)
	if err != nil || len(digest) != digestLen {
		return false, ErrCorruptHash
	}
	salt, err := hex.DecodeString(saltHex)
	if err != nil || len(salt) == 0 {
		return false, ErrCorruptHash
	}

	derived, err := scrypt.Key([]byte(candidate), salt, scryptN, scryptR, scryptP, digestLen)
	if err != nil {
		return false, fmt.Errorf("derive digest: %w", err)
	}

	return subtle.ConstantTimeCompare(digest, derived) == 1, nil
}

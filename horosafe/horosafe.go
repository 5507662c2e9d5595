// Package horosafe provides the security primitives shared by the progsync
// binaries: secret validation and derivation, identifier checks and bounded
// reads of remote response bodies.
package horosafe

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLen is the minimum acceptable length for symmetric secrets (JWT
// HS256 keys). 32 bytes = 256 bits.
const MinSecretLen = 32

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// MaxIdentifierLen bounds identifiers accepted from the network.
const MaxIdentifierLen = 256

// ErrSecretTooShort is returned when a secret does not meet MinSecretLen.
var ErrSecretTooShort = fmt.Errorf("horosafe: secret must be at least %d bytes", MinSecretLen)

// ErrEmptyIdentifier is returned by ValidateIdentifier for "".
var ErrEmptyIdentifier = errors.New("horosafe: identifier must not be empty")

// ValidateSecret checks that secret is at least MinSecretLen bytes.
func ValidateSecret(secret []byte) error {
	if len(secret) < MinSecretLen {
		return ErrSecretTooShort
	}
	return nil
}

// DeriveKey expands an operator-supplied passphrase of any length into a
// MinSecretLen-byte key with HKDF-SHA256. info separates keys derived from
// the same passphrase for different purposes.
func DeriveKey(passphrase, info string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("horosafe: empty passphrase")
	}
	key := make([]byte, MinSecretLen)
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("horosafe: derive key: %w", err)
	}
	return key, nil
}

// ValidateIdentifier rejects identifiers that contain characters unsuitable
// for keys, file names or URL query values. Allows alphanumeric, underscore,
// hyphen and dot.
func ValidateIdentifier(s string) error {
	if s == "" {
		return ErrEmptyIdentifier
	}
	if len(s) > MaxIdentifierLen {
		return fmt.Errorf("horosafe: identifier too long (max %d)", MaxIdentifierLen)
	}
	for _, r := range s {
		if !isIdentChar(r) {
			return fmt.Errorf("horosafe: invalid character %q in identifier", r)
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r and fails when the limit is
// exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	lr := io.LimitReader(r, maxBytes+1)
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("horosafe: response exceeds %d bytes", maxBytes)
	}
	return data, nil
}

func isIdentChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.'
}

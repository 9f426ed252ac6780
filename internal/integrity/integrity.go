package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrMismatch reports that a file's content no longer matches its recorded
// checksum. Callers treat this as a cache miss, not a crash.
var ErrMismatch = errors.New("integrity mismatch")

// Checksum returns the lowercase SHA-256 hex digest of the file at path.
func Checksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("integrity: open %q: %w", path, err)
	}
	defer file.Close()

	return ChecksumReader(file)
}

// ChecksumReader drains r and returns the SHA-256 hex digest of its content.
func ChecksumReader(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", fmt.Errorf("integrity: hash content: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Validate recomputes the checksum of path and compares it against expected.
// A disagreement returns an error wrapping ErrMismatch; I/O failures are
// returned as-is.
func Validate(path, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return errors.New("integrity: expected checksum is empty")
	}
	actual, err := Checksum(path)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: %q expected %s, got %s", ErrMismatch, path, expected, actual)
	}
	return nil
}

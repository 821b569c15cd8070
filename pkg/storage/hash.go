package storage

import (
	"crypto/sha1" //nolint:gosec // content addressing, not authentication
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashLength = 2 * sha1.Size

// HashFile returns the lowercase hex SHA-1 digest of the file contents,
// computed by streaming rather than loading the file into memory.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hashing: %w", err)
	}
	defer file.Close() //nolint:errcheck

	return HashReader(file)
}

// HashReader returns the lowercase hex SHA-1 digest of everything in r.
func HashReader(r io.Reader) (string, error) {
	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidHash reports whether the string is a well-formed content hash:
// exactly 40 lowercase hex characters. Anything else is rejected before any
// path construction so a hash can never escape the store layout.
func ValidHash(hash string) bool {
	if len(hash) != hashLength {
		return false
	}
	for _, r := range hash {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}

package sha1

import (
	"bytes"
	cryptosha1 "crypto/sha1" //nolint:gosec
	"encoding/hex"
	"io"
	"os"
	"strings"

	"golang.org/x/xerrors"
)

const NotAvailable = "N/A"

// Parse extracts the digest from the content of a `.sha1` file.
func Parse(data []byte) string {
	data = bytes.TrimSpace(data)

	// Handle empty SHA1 files
	if len(data) == 0 {
		return NotAvailable
	}

	// Some servers write `<digest>  <filename>`, take the first valid digest
	for _, part := range strings.Fields(string(data)) {
		if len(part) == 40 && isHexString(part) {
			return strings.ToLower(part)
		}
	}
	return NotAvailable
}

// Sum returns the hex encoded SHA-1 digest of r.
func Sum(r io.Reader) (string, error) {
	h := cryptosha1.New() //nolint:gosec
	if _, err := io.Copy(h, r); err != nil {
		return "", xerrors.Errorf("unable to hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the hex encoded SHA-1 digest of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", xerrors.Errorf("failed to open file: %w", err)
	}
	defer f.Close()
	return Sum(f)
}

// isHexString checks if a string contains only hex characters
func isHexString(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

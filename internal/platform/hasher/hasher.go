// Package hasher computes content digests of uploaded report files. The
// digest is a streaming SHA-256 over the byte stream, so identical bytes
// always yield the identical hex string regardless of file size.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// SumReader consumes r to EOF and returns the hex-encoded SHA-256 digest.
func SumReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile opens path and returns the hex-encoded SHA-256 digest of its
// contents. I/O failures are surfaced, never swallowed.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return SumReader(f)
}

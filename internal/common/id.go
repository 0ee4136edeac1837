package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashFile returns the hex SHA-256 of a file's bytes. This is the identity
// key for imported videos: byte-identical files hash the same regardless of
// path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VideoIDFromHash derives the stable content-addressed video ID from a file
// hash. Format: vid_<first 16 hex chars>
func VideoIDFromHash(fileHash string) string {
	if len(fileHash) > 16 {
		fileHash = fileHash[:16]
	}
	return "vid_" + fileHash
}

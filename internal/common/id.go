package common

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
)

// NewTableID generates a unique table ID with the "tbl_" prefix
// Format: tbl_<uuid>
func NewTableID() string {
	return "tbl_" + uuid.New().String()
}

// NewRelationshipID generates a unique relationship ID with the "rel_" prefix
// Format: rel_<uuid>
func NewRelationshipID() string {
	return "rel_" + uuid.New().String()
}

// NewFileID generates a unique file ID with the "file_" prefix
func NewFileID() string {
	return "file_" + uuid.New().String()
}

// FileDigest returns the hex sha256 of a file's contents.
// Used to derive stable file ids and extraction cache keys.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileIDFromDigest derives a deterministic file id from a content digest
func FileIDFromDigest(digest string) string {
	if len(digest) > 32 {
		digest = digest[:32]
	}
	return "file_" + digest
}
